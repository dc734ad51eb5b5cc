package main

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/wiktlex/internal/app"
)

var runFlags overrides

var runCmd = &cobra.Command{
	Use:   "run [dump]",
	Short: "Index a dump and extract all entries",
	Long: `Builds the page index from the dump (unless --reuse-index finds one),
collects thesaurus relations, extracts every page in parallel and finally
synthesises entries for words that only appear in the thesaurus.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args, &runFlags)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), cfg, func(a *app.App) error {
			return a.Run(cmd.Context())
		})
	},
}

func init() {
	runFlags.register(runCmd)
	rootCmd.AddCommand(runCmd)
}
