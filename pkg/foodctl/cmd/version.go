package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vnfood/foodctl/pkg/foodctl/output"
	"github.com/vnfood/foodctl/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show foodctl version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetBuildInfo()

			rt, _ := getRuntime(cmd)
			writer := cmd.OutOrStdout()
			format := ""
			if rt != nil {
				writer = rt.Writer()
				format = rt.outputFormat
			}
			spec, err := output.Parse(format)
			if err != nil {
				return err
			}
			if spec.Format == output.FormatTable {
				_, _ = fmt.Fprintln(writer, info.String())
				return nil
			}
			return output.WriteObject(writer, spec, info)
		},
	}
}
