package cmd

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vnfood/foodctl/pkg/foodctl/client"
	"github.com/vnfood/foodctl/pkg/foodctl/output"
)

func NewFoodCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "food",
		Short: "Browse the food catalog",
	}
	cmd.AddCommand(newFoodSearchCommand(), newFoodGetCommand())
	return cmd
}

func newFoodSearchCommand() *cobra.Command {
	var opts client.FoodSearchOptions
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search dishes by name or description",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			opts.Query = strings.Join(args, " ")
			opts.Language = rt.Language()
			return withClient(cmd.Context(), rt, func(c *apiClient) error {
				page, err := c.Foods().Search(cmd.Context(), opts)
				if err != nil {
					return err
				}
				return rt.write(page, func(w io.Writer) { output.WriteFoodTable(w, page) })
			})
		},
	}
	cmd.Flags().StringVar(&opts.Region, "region", "", "Region filter (Bắc, Trung, Nam)")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&opts.PerPage, "per-page", 12, "Results per page")
	return cmd
}

func newFoodGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show one dish",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			return withClient(cmd.Context(), rt, func(c *apiClient) error {
				info, err := c.Foods().Get(cmd.Context(), strings.Join(args, " "), rt.Language())
				if err != nil {
					return err
				}
				return rt.write(info, func(w io.Writer) { output.WriteFoodDetail(w, info) })
			})
		},
	}
}
