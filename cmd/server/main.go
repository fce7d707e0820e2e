package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	root.SilenceUsage = true
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Smart garden irrigation gateway",
		Long:  "Decides when and how long to water each garden zone from sensor readings and two trained models.",
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(decideCmd())
	cmd.AddCommand(modelsCmd())

	return cmd
}
