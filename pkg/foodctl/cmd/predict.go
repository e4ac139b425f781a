package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vnfood/foodctl/pkg/foodctl/client"
	"github.com/vnfood/foodctl/pkg/foodctl/output"
)

func NewPredictCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "predict <image>",
		Short: "Recognize the dish in an image",
		Long: "Upload an image for recognition. When logged in, the server also " +
			"records the result in your history.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open image: %w", err)
			}
			defer func() {
				_ = file.Close()
			}()
			return withClient(cmd.Context(), rt, func(c *apiClient) error {
				prediction, err := c.Predictions().Predict(cmd.Context(), client.PredictRequest{
					Filename: filepath.Base(args[0]),
					Image:    file,
					Language: rt.Language(),
				})
				if err != nil {
					return err
				}
				return rt.write(prediction, func(w io.Writer) { output.WritePredictionTable(w, prediction) })
			})
		},
	}
}
