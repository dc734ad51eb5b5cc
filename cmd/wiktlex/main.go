// Command wiktlex extracts dictionary entries from a Wiktionary XML dump.
//
// Subcommands:
//
//	run [dump]             index the dump and extract every page
//	index [dump]           build the page index only
//	page <title-or-file>   extract a single page for debugging
//	version                print the build version
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/wiktlex/internal/app"
	"github.com/heartmarshall/wiktlex/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "wiktlex",
	Short: "Extract dictionary entries from Wiktionary dumps",
	Long: `wiktlex indexes a Wiktionary XML dump, extracts structured entries
from every page and writes them as JSON lines, optionally also to
PostgreSQL and Kafka.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "wiktlex:", err)
		os.Exit(1)
	}
}

// overrides holds flag values that replace loaded configuration.
type overrides struct {
	out            string
	errorsPath     string
	workers        int
	humanReadable  bool
	reuseIndex     bool
	skipExtraction bool
	noThesaurus    bool
	languageCodes  []string
}

func (o *overrides) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.out, "out", "", "entry output path, - for stdout")
	f.StringVar(&o.errorsPath, "errors", "", "diagnostics report path")
	f.IntVar(&o.workers, "workers", 0, "number of extraction workers (default: CPU count)")
	f.BoolVar(&o.humanReadable, "human-readable", false, "indent JSON output")
	f.BoolVar(&o.reuseIndex, "reuse-index", false, "reuse an existing page index")
	f.BoolVar(&o.skipExtraction, "skip-extraction", false, "stop after indexing and cross-referencing")
	f.BoolVar(&o.noThesaurus, "no-thesaurus", false, "skip thesaurus cross-referencing")
	f.StringSliceVar(&o.languageCodes, "language-code", nil, "only emit entries for this language code (repeatable)")
}

// apply copies changed flags onto cfg and revalidates it.
func (o *overrides) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("out") {
		cfg.Output.Path = o.out
	}
	if f.Changed("errors") {
		cfg.Output.ReportPath = o.errorsPath
	}
	if f.Changed("workers") {
		cfg.Pipeline.Workers = o.workers
	}
	if f.Changed("human-readable") {
		cfg.Output.HumanReadable = o.humanReadable
	}
	if f.Changed("reuse-index") {
		cfg.Corpus.ReuseIndex = o.reuseIndex
	}
	if f.Changed("skip-extraction") {
		cfg.Pipeline.SkipExtraction = o.skipExtraction
	}
	if f.Changed("no-thesaurus") {
		cfg.Pipeline.ExtractThesaurus = !o.noThesaurus
	}
	if f.Changed("language-code") {
		cfg.Pipeline.LanguageCodesRaw = strings.Join(o.languageCodes, ",")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}
	return nil
}

// loadConfig reads the configuration and applies the dump argument and flag
// overrides.
func loadConfig(cmd *cobra.Command, args []string, o *overrides) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.Corpus.DumpPath = args[0]
	}
	if o != nil {
		if err := o.apply(cmd, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// withApp builds the application for cfg, runs fn and closes it.
func withApp(ctx context.Context, cfg *config.Config, fn func(*app.App) error) error {
	logger := app.NewLogger(cfg.Log)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("close page index", slog.String("error", cerr.Error()))
		}
	}()

	return fn(a)
}
