package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/stepbnb"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of stepbnb",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "stepbnb version %s\n", strings.TrimSpace(stepbnb.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
