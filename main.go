package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"places-reviews/chart"
	"places-reviews/config"
	"places-reviews/models"
	"places-reviews/scraper/googlemaps"
	"places-reviews/services"
	"places-reviews/storage"
	"places-reviews/utils"
)

const usage = `usage:
  places-reviews [collect] [query ...]   look up queries and write the dataset
  places-reviews chart                   aggregate and chart a stored dataset`

func main() {
	cfg := config.Load()
	logger := utils.NewLogger(utils.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := os.Args[1:]
	cmd := "collect"
	if len(args) > 0 && (args[0] == "collect" || args[0] == "chart") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "collect":
		err = collect(ctx, cfg, logger, args)
	case "chart":
		err = chartDataset(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("%v", err)
		if errors.Is(err, config.ErrMissingAPIKey) {
			fmt.Fprintln(os.Stderr, "Set GOOGLE_API_KEY or provide "+cfg.KeyConfigPath+` with a "google" entry.`)
		}
		os.Exit(1)
	}
}

func collect(ctx context.Context, cfg *config.Config, logger *utils.Logger, args []string) error {
	apiKey, err := cfg.ResolveAPIKey()
	if err != nil {
		return err
	}

	queries := args
	if len(queries) == 0 && cfg.QueriesFile != "" {
		if queries, err = cfg.LoadQueries(cfg.QueriesFile); err != nil {
			return err
		}
	}
	queries = services.NewCleaner(logger).CleanQueries(queries)
	if len(queries) == 0 {
		return fmt.Errorf("no queries given\n%s", usage)
	}

	logger.Info("=== Places review collection starting ===")
	logger.Info("Config — dataset: %s | queries: %d | concurrency: %d | rate: %dms",
		cfg.DatasetName, len(queries), cfg.MaxConcurrency, cfg.RateLimitMs)

	client := googlemaps.NewClient(googlemaps.Options{
		BaseURL:  cfg.PlacesBaseURL,
		APIKey:   apiKey,
		Language: cfg.PlacesLanguage,
		Timeout:  cfg.HTTPTimeout,
	}, logger)

	pipeline := services.NewPipeline(client, client, logger, services.PipelineOptions{
		MaxConcurrency: cfg.MaxConcurrency,
		RateLimitMs:    cfg.RateLimitMs,
	})

	run := pipeline.NewRun()
	if cfg.Append {
		existing, err := storage.LoadDataset(cfg.OutputDir, cfg.DatasetName)
		switch {
		case err == nil:
			logger.Info("Appending to dataset %s (%d queries, %d businesses, %d reviews)",
				cfg.DatasetName, len(existing.Queries), len(existing.Businesses), len(existing.Reviews))
			run = pipeline.ResumeRun(existing)
		case errors.Is(err, os.ErrNotExist):
			logger.Info("Dataset %s does not exist yet — starting a new one", cfg.DatasetName)
		default:
			return err
		}
	}

	if err := run.Collect(ctx, queries); err != nil {
		return fmt.Errorf("collect aborted: %w", err)
	}
	ds := run.Dataset()
	ds.Name = cfg.DatasetName

	if n := len(ds.Warnings); n > 0 {
		logger.Warn("Run finished with %d warnings — data is partial", n)
	}

	csvWriter, err := storage.NewCSVWriter(cfg.OutputDir, cfg.DatasetName)
	if err != nil {
		return err
	}
	defer csvWriter.Close()

	if err := csvWriter.Write(ds); err != nil {
		return err
	}
	logger.Info("Dataset saved to %s", csvWriter.Dir())

	reviews := ds.Reviews
	if cfg.PostgresEnabled {
		pgWriter, err := storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
		} else {
			defer pgWriter.Close()
			if err := pgWriter.Write(ds); err != nil {
				logger.Error("PostgreSQL write failed: %v", err)
			} else {
				logger.Info("Run %s stored in PostgreSQL", ds.RunID)
				if stored, err := pgWriter.FetchReviews(ds.Name, ds.RunID); err != nil {
					logger.Error("Failed to fetch reviews from DB for insights: %v", err)
				} else {
					reviews = stored
				}
			}
		}
	}

	return report(ctx, cfg, logger, ds, reviews)
}

func chartDataset(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	ds, err := storage.LoadDataset(cfg.OutputDir, cfg.DatasetName)
	if err != nil {
		return err
	}

	reviews := ds.Reviews
	switch {
	case !cfg.PostgresEnabled:
	case ds.RunID == "":
		logger.Warn("Dataset %s has no run id, charting CSV reviews", ds.Name)
	default:
		pgWriter, err := storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL, charting CSV reviews: %v", err)
		} else {
			defer pgWriter.Close()
			var src storage.ReviewSource = pgWriter
			if stored, err := src.FetchReviews(ds.Name, ds.RunID); err != nil {
				logger.Error("Failed to fetch reviews from DB: %v", err)
			} else {
				reviews = stored
			}
		}
	}

	return report(ctx, cfg, logger, ds, reviews)
}

// report aggregates reviews, prints the insight report and writes the chart.
func report(ctx context.Context, cfg *config.Config, logger *utils.Logger, ds *models.Dataset, reviews []*models.ReviewRecord) error {
	freq, err := services.ParseFrequency(cfg.ChartFrequency)
	if err != nil {
		return err
	}

	buckets, warnings, err := services.NewAggregator(logger).Aggregate(reviews, freq,
		services.DateRange{Start: cfg.ChartStart, End: cfg.ChartEnd}, cfg.ChartMinCount)
	if err != nil {
		return err
	}

	insights := services.NewInsightService(logger)
	insights.Print(insights.Generate(ds, buckets, warnings, freq))

	title := fmt.Sprintf("%s: mean rating per %s", cfg.DatasetName, freq)
	layout := map[services.Frequency]string{services.Year: "2006", services.Month: "2006-01", services.Day: "2006-01-02"}[freq]
	htmlPath, err := chart.WriteHTML(filepath.Join(cfg.OutputDir, cfg.DatasetName, "rating_chart.html"),
		buckets, title, layout)
	if err != nil {
		return err
	}
	logger.Info("Chart written to %s", htmlPath)

	if cfg.ChartPNG {
		pngPath := filepath.Join(filepath.Dir(htmlPath), "rating_chart.png")
		if err := chart.RenderPNG(ctx, htmlPath, pngPath, cfg.ChromeBin); err != nil {
			logger.Error("PNG rendering failed: %v", err)
		} else {
			logger.Info("Chart image written to %s", pngPath)
		}
	}
	return nil
}
