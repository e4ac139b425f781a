package main

import (
	"fmt"
	"os"

	foodctlcmd "github.com/vnfood/foodctl/pkg/foodctl/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := foodctlcmd.DefaultConfig()
	root := foodctlcmd.NewRootCommand(cfg)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintf(cfg.ErrorWriter, "Error: %v\n", err)
		return 1
	}
	return 0
}
