package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vnfood/foodctl/pkg/foodctl/client"
	"github.com/vnfood/foodctl/pkg/foodctl/output"
)

func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage your prediction history",
	}
	cmd.AddCommand(
		newHistoryListCommand(),
		newHistorySaveCommand(),
		newHistoryDeleteCommand(),
		newHistoryClearCommand(),
	)
	return cmd
}

func newHistoryListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent predictions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			return withClient(cmd.Context(), rt, func(c *apiClient) error {
				items, err := c.History().List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return rt.write(items, func(w io.Writer) { output.WriteHistoryTable(w, items) })
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries")
	return cmd
}

func newHistorySaveCommand() *cobra.Command {
	var (
		food       string
		confidence float64
	)
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Record a prediction in your history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			return withClient(cmd.Context(), rt, func(c *apiClient) error {
				item, err := c.History().Save(cmd.Context(), client.SaveHistoryRequest{
					FoodName:   food,
					Confidence: confidence,
					Language:   rt.Language(),
				})
				if err != nil {
					return err
				}
				return rt.write(item, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "Saved %s (%s)\n", item.FoodName, item.ID)
				})
			})
		},
	}
	cmd.Flags().StringVar(&food, "food", "", "Dish name")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "Confidence in percent")
	_ = cmd.MarkFlagRequired("food")
	return cmd
}

func newHistoryDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			return withClient(cmd.Context(), rt, func(c *apiClient) error {
				if err := c.History().Delete(cmd.Context(), args[0]); err != nil {
					if client.IsNotFound(err) {
						return fmt.Errorf("history entry %s not found", args[0])
					}
					return err
				}
				_, _ = fmt.Fprintf(rt.Writer(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newHistoryClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete your whole history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			return withClient(cmd.Context(), rt, func(c *apiClient) error {
				if err := c.History().Clear(cmd.Context()); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(rt.Writer(), "History cleared")
				return nil
			})
		},
	}
}
