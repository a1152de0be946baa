package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/maltedev/grocery-scraper/internal/config"
	"github.com/maltedev/grocery-scraper/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	log     *slog.Logger
	logFile io.Closer

	flagLocation string
	flagHeadless bool
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "grocery-scraper",
	Short:         "grocery-scraper collects the product catalog of a quick-commerce grocery site.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("location") {
			cfg.Site.LocationQuery = flagLocation
		}
		if flags.Changed("headless") {
			cfg.Browser.Headless = flagHeadless
		}
		if flags.Changed("log-level") {
			cfg.Logging.Level = flagLogLevel
		}

		if cfg.Logging.File == "" {
			log = logger.New(cfg.Logging.Level, cfg.Logging.Format)
		} else {
			log, logFile, err = logger.NewFile(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
			if err != nil {
				return err
			}
		}
		slog.SetDefault(log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagLocation, "location", "", "Delivery location to select before scraping (overrides SITE_LOCATION)")
	pf.BoolVar(&flagHeadless, "headless", true, "Run the browser without a window (overrides BROWSER_HEADLESS)")
	pf.StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if log != nil {
			log.Error("command failed", "error", err)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
