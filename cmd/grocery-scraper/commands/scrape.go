package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/maltedev/grocery-scraper/internal/models"
	"github.com/maltedev/grocery-scraper/internal/pipeline"
	"github.com/maltedev/grocery-scraper/internal/storage"
	"github.com/spf13/cobra"
)

var (
	runMaxCategories int
	runResume        bool
	runListing       int
	runDetail        int
	runCategories    string

	categoriesOut string

	discoverCategories string

	detailsIDs string
)

func init() {
	f := runCmd.Flags()
	f.IntVar(&runMaxCategories, "max-categories", 0, "Stop after this many categories, 0 for all")
	f.BoolVar(&runResume, "resume", false, "Skip categories already in the identifiers file")
	f.IntVar(&runListing, "listing-concurrency", 0, "Concurrent listing pages")
	f.IntVar(&runDetail, "detail-concurrency", 0, "Concurrent detail fetches")
	f.StringVar(&runCategories, "categories", "", "JSON file of categories to use instead of the categories page")

	categoriesCmd.Flags().StringVarP(&categoriesOut, "out", "o", "categories.json", "File to write the categories to")

	discoverCmd.Flags().StringVar(&discoverCategories, "categories", "", "JSON file of categories to use instead of the categories page")
	discoverCmd.Flags().IntVar(&runMaxCategories, "max-categories", 0, "Stop after this many categories, 0 for all")
	discoverCmd.Flags().BoolVar(&runResume, "resume", false, "Skip categories already in the identifiers file")
	discoverCmd.Flags().IntVar(&runListing, "listing-concurrency", 0, "Concurrent listing pages")

	detailsCmd.Flags().StringVar(&detailsIDs, "ids", "", "File of product identifiers (one per line or JSON)")
	detailsCmd.Flags().IntVar(&runDetail, "detail-concurrency", 0, "Concurrent detail fetches")
	detailsCmd.MarkFlagRequired("ids")

	rootCmd.AddCommand(runCmd, categoriesCmd, discoverCmd, detailsCmd)
}

func applyRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("max-categories") {
		cfg.Discovery.MaxCategories = runMaxCategories
	}
	if flags.Changed("resume") {
		cfg.Output.Resume = runResume
	}
	if flags.Changed("listing-concurrency") {
		cfg.Discovery.ListingConcurrency = runListing
	}
	if flags.Changed("detail-concurrency") {
		cfg.Detail.Concurrency = runDetail
	}
}

func readCategories(path string) ([]models.Category, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	categories := []models.Category{}
	if err := json.Unmarshal(data, &categories); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return categories, nil
}

func printSummary(cmd *cobra.Command, summary *pipeline.Summary) {
	if summary == nil {
		return
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.Encode(summary)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape categories, discover product identifiers and fetch every product page.",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyRunFlags(cmd)
		ctx := cmd.Context()

		categories, err := readCategories(runCategories)
		if err != nil {
			return err
		}

		s, err := buildStack(ctx, stackOptions{browser: true, sinks: true})
		if err != nil {
			return err
		}
		defer s.Close()

		summary, err := s.pipeline.Run(ctx, pipeline.RunInput{
			RunID:      uuid.New().String(),
			StartURL:   cfg.Site.CategoriesURL,
			Location:   cfg.Site.LocationQuery,
			Categories: categories,
		})
		printSummary(cmd, summary)
		return err
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Select the delivery location and list the category pages.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := buildStack(ctx, stackOptions{browser: true})
		if err != nil {
			return err
		}
		defer s.Close()

		categories, err := s.pipeline.Categories(ctx, cfg.Site.CategoriesURL, cfg.Site.LocationQuery)
		if err != nil {
			return err
		}
		if err := storage.WriteJSONAtomic(categoriesOut, categories, "  "); err != nil {
			return err
		}
		log.Info("categories written", "count", len(categories), "file", categoriesOut)
		return nil
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Collect product identifiers from every category listing without fetching details.",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyRunFlags(cmd)
		ctx := cmd.Context()

		categories, err := readCategories(discoverCategories)
		if err != nil {
			return err
		}

		s, err := buildStack(ctx, stackOptions{browser: true})
		if err != nil {
			return err
		}
		defer s.Close()

		if categories == nil {
			categories, err = s.pipeline.Categories(ctx, cfg.Site.CategoriesURL, cfg.Site.LocationQuery)
			if err != nil {
				return err
			}
		}

		ids, summary, err := s.pipeline.DiscoverIDs(ctx, categories)
		printSummary(cmd, summary)
		log.Info("identifiers written", "count", len(ids), "file", cfg.Output.IDsFile)
		return err
	},
}

var detailsCmd = &cobra.Command{
	Use:   "details --ids <file>",
	Short: "Fetch product pages for a list of identifiers, e.g. ones mined from a log.",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyRunFlags(cmd)
		ctx := cmd.Context()

		ids, err := storage.ReadIDList(detailsIDs)
		if err != nil {
			return err
		}

		s, err := buildStack(ctx, stackOptions{sinks: true})
		if err != nil {
			return err
		}
		defer s.Close()

		summary, err := s.pipeline.FetchDetails(ctx, uuid.New().String(), ids)
		printSummary(cmd, summary)
		return err
	},
}
