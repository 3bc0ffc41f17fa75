package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/drafter"
	"github.com/sells-group/outreach-cli/internal/extract"
	"github.com/sells-group/outreach-cli/internal/pipeline"
	"github.com/sells-group/outreach-cli/internal/scrape"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "outreach-cli",
	Short: "Cold outreach pipeline: scrape leads, draft emails, review, send, monitor replies",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if err := config.InitLogger(cfg.Log); err != nil {
			return err
		}
		if problems := cfg.Validate(); len(problems) > 0 {
			for _, p := range problems {
				fmt.Fprintln(os.Stderr, "config:", p)
			}
			return eris.New("invalid configuration")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// openStore opens the configured backend and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	var s store.Store
	var err error
	switch cfg.Store.Driver {
	case "postgres":
		s, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		s, err = store.NewSQLite(cfg.Store.DatabaseURL)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newCrawler(depth int) *scrape.Crawler {
	if depth <= 0 {
		depth = cfg.Scrape.MaxDepth
	}
	return scrape.NewCrawler(scrape.Options{
		MaxDepth: depth,
		MaxPages: cfg.Scrape.MaxPages,
		Timeout:  time.Duration(cfg.Scrape.TimeoutSecs) * time.Second,
	})
}

// newPipeline wires the two pipeline stages over the store. Nothing in
// the wiring can send email.
func newPipeline(s store.Store, depth int) (*pipeline.Pipeline, error) {
	templates, err := drafter.LoadTemplates()
	if err != nil {
		return nil, err
	}
	client := anthropic.NewClient(cfg.Anthropic.Key)
	return pipeline.New(
		s,
		newCrawler(depth),
		extract.NewExtractor(extract.NewNetResolver()),
		drafter.NewAnalyzer(client, cfg.Anthropic.AnalyzeModel),
		drafter.NewDrafter(client, cfg.Anthropic.DrafterModel, templates),
	), nil
}

func printStageResults(results []pipeline.StageResult) {
	for _, res := range results {
		if res.Err != nil {
			fmt.Printf("%-16s FAILED after %s: %v\n", res.Name, res.Duration.Round(time.Millisecond), res.Err)
			continue
		}
		fmt.Printf("%-16s %s (%s)\n", res.Name, res.Summary, res.Duration.Round(time.Millisecond))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
