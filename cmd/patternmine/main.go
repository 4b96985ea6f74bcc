package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwhitaker/patternmine/internal/config"
	"github.com/jwhitaker/patternmine/internal/database"
	"github.com/jwhitaker/patternmine/internal/ingest"
	"github.com/jwhitaker/patternmine/internal/pipeline"
	"github.com/jwhitaker/patternmine/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "patternmine",
	Short:   "Mine success patterns from marketplace observations",
	Long:    "patternmine digs through historical design and listing observations, validates recurring patterns statistically, and scores niches and niche fusions as market opportunities.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(mineCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(nichesCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("patternmine", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/patternmine/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to tune mining thresholds and the data directory.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Evidence:")
		fmt.Printf("  Observations: %d\n", stats.TotalObservations)
		fmt.Printf("  Listings: %d\n", stats.TotalListings)
		fmt.Println("\nKnowledge:")
		fmt.Printf("  Active insights: %d\n", stats.ActiveInsights)
		fmt.Printf("  Niche aggregates: %d\n", stats.NicheAggregates)
		fmt.Printf("  Fusion candidates: %d\n", stats.FusionCandidates)
		fmt.Println("\nActivity:")
		fmt.Printf("  Mining runs: %d\n", stats.Runs)
		fmt.Printf("  Rank history entries: %d\n", stats.RankHistoryEntries)
		return nil
	},
}

// --- import command ---

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an observation/listing JSON export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := ingest.NewImporter(db).ImportFile(args[0])
		if err != nil {
			return err
		}

		fmt.Println("Import complete:")
		fmt.Printf("  Observations: %d\n", result.Observations)
		fmt.Printf("  Listings: %d\n", result.Listings)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)
		fmt.Printf("  Invalid records skipped: %d\n", result.Skipped)
		return nil
	},
}

// --- mine command ---

var dryRun bool

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Run the mining pipeline: mine -> aggregate -> spikes -> fusion",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db)

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun()
		} else {
			result = pipe.Run(context.Background())
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if dryRun || result.Skipped {
			return nil
		}

		fmt.Printf("\nRun %s: %d created, %d refreshed, %d rejected in %s\n",
			result.RunID, result.Created, result.Updated, result.Rejected, result.Elapsed.Round(time.Millisecond))
		if len(result.Errors) > 0 {
			fmt.Printf("%d errors; latest: %s\n", len(result.Errors), result.Errors[len(result.Errors)-1])
		}
		fmt.Println("Run 'patternmine serve' to browse the insights.")
		return nil
	},
}

func init() {
	mineCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local retrieval server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- niches command ---

var nichesCmd = &cobra.Command{
	Use:   "niches",
	Short: "Inspect analyzed niches",
}

var nichesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all analyzed niches",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		aggs, err := db.ListNicheAggregates()
		if err != nil {
			return err
		}
		if len(aggs) == 0 {
			fmt.Println("No niches analyzed yet. Import data and run: patternmine mine")
			return nil
		}

		fmt.Printf("%-24s %8s %-14s %-8s %5s\n", "NICHE", "LISTINGS", "SATURATION", "VERDICT", "SCORE")
		for _, a := range aggs {
			fmt.Printf("%-24s %8d %-14s %-8s %5.0f\n",
				a.Niche, a.ListingCount, a.Saturation, a.Recommendation, a.OpportunityScore)
		}
		return nil
	},
}

func init() {
	nichesCmd.AddCommand(nichesListCmd)
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "patternmine.db")
	return database.Open(dbPath)
}
