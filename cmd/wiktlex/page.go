package main

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/wiktlex/internal/app"
)

var pageFlags overrides

var pageCmd = &cobra.Command{
	Use:   "page <title-or-file>",
	Short: "Extract a single page",
	Long: `Extracts one page and prints its entries. The argument is a file
containing wikitext (an optional first line "TITLE: <title>" sets the
title) or a title looked up in an existing page index.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, nil, &pageFlags)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), cfg, func(a *app.App) error {
			_, err := a.ExtractPage(cmd.Context(), args[0], cmd.OutOrStdout())
			return err
		})
	},
}

func init() {
	pageFlags.register(pageCmd)
	rootCmd.AddCommand(pageCmd)
}
