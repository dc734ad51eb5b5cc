package main

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/wiktlex/internal/app"
)

var indexFlags overrides

var indexCmd = &cobra.Command{
	Use:   "index [dump]",
	Short: "Build the page index only",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args, &indexFlags)
		if err != nil {
			return err
		}
		cfg.Pipeline.IndexOnly = true
		return withApp(cmd.Context(), cfg, func(a *app.App) error {
			return a.Run(cmd.Context())
		})
	},
}

func init() {
	indexFlags.register(indexCmd)
	rootCmd.AddCommand(indexCmd)
}
