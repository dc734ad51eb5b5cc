package main

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/wiktlex/internal/app"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("wiktlex version %s\n", app.BuildVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
