package commands

import (
	"fmt"
	"regexp"

	"github.com/maltedev/grocery-scraper/internal/browser"
	"github.com/maltedev/grocery-scraper/internal/logmine"
	"github.com/spf13/cobra"
)

var (
	mineLog     string
	mineOut     string
	minePattern string

	sortIn  string
	sortOut string

	manualURL string
)

func init() {
	mineLogCmd.Flags().StringVar(&mineLog, "log", "", "Log file to scan (defaults to LOG_FILE)")
	mineLogCmd.Flags().StringVarP(&mineOut, "out", "o", "failed_product_ids.txt", "File to write the identifiers to")
	mineLogCmd.Flags().StringVar(&minePattern, "pattern", "", "Regular expression with one capture group for the identifier")

	sortIDsCmd.Flags().StringVar(&sortIn, "in", "failed_product_ids.txt", "File with one number per line")
	sortIDsCmd.Flags().StringVarP(&sortOut, "out", "o", "sorted_failed_product_ids.txt", "File to write the sorted numbers to")

	manualCmd.Flags().StringVar(&manualURL, "url", "", "Page to open (defaults to the site's base URL)")

	rootCmd.AddCommand(mineLogCmd, sortIDsCmd, manualCmd)
}

var mineLogCmd = &cobra.Command{
	Use:   "mine-log",
	Short: "Extract identifiers of forbidden detail fetches from a scrape log.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := mineLog
		if path == "" {
			path = cfg.Logging.File
		}

		pattern := logmine.DefaultPattern
		if minePattern != "" {
			var err error
			if pattern, err = regexp.Compile(minePattern); err != nil {
				return fmt.Errorf("invalid pattern: %w", err)
			}
		}

		ids, err := logmine.ExtractFile(path, mineOut, pattern)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			log.Info("no failed identifiers found", "log", path)
			return nil
		}
		log.Info("failed identifiers written", "count", len(ids), "file", mineOut)
		return nil
	},
}

var sortIDsCmd = &cobra.Command{
	Use:   "sort-ids",
	Short: "Sort a file of numbers numerically.",
	RunE: func(cmd *cobra.Command, args []string) error {
		nums, err := logmine.SortFile(sortIn, sortOut)
		if err != nil {
			return err
		}
		log.Info("sorted numbers written", "count", len(nums), "file", sortOut)
		return nil
	},
}

var manualCmd = &cobra.Command{
	Use:   "manual",
	Short: "Open a visible browser on the persistent profile for manual interaction.",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := manualURL
		if url == "" {
			url = cfg.Site.BaseURL
		}
		return browser.OpenForManualInteraction(cmd.Context(), browser.OptionsFromConfig(cfg.Browser), url, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}
