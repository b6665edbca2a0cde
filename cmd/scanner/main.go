package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RondoWright/weather/internal/alerts"
	"github.com/RondoWright/weather/internal/config"
	"github.com/RondoWright/weather/internal/engine"
	"github.com/RondoWright/weather/internal/estimator"
	"github.com/RondoWright/weather/internal/forecast"
	"github.com/RondoWright/weather/internal/market"
	"github.com/RondoWright/weather/internal/observ"
	"github.com/RondoWright/weather/internal/paper"
	sig "github.com/RondoWright/weather/internal/signal"
)

var (
	cfgFile string
	mode    string
	once    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scanner",
		Short: "Weather prediction-market signal scanner",
		Long:  "Scans prediction markets for weather questions, compares forecast-derived probabilities against quoted prices, and optionally paper-trades the resulting signals.",
		RunE:  run,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", envOr("BOT_CONFIG_PATH", "config/config.yaml"), "config YAML path")
	rootCmd.Flags().StringVar(&mode, "mode", envOr("BOT_MODE", "alert"), "scan | alert | paper")
	rootCmd.Flags().BoolVar(&once, "once", false, "run one scan and exit")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	switch mode {
	case "scan", "alert", "paper":
	default:
		return fmt.Errorf("invalid mode %q (want scan, alert or paper)", mode)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	observ.SetLevel(cfg.Bot.LogLevel)
	observ.Log("scanner_starting", map[string]any{"mode": mode, "config": cfgFile})

	marketClient := market.NewClient(market.Config{
		GammaURL:        cfg.Polymarket.GammaURL,
		ScanLimit:       cfg.Bot.ScanLimit,
		MinLiquidity:    cfg.Polymarket.MinLiquidity,
		WeatherKeywords: cfg.Polymarket.WeatherKeywords,
		TimeoutSeconds:  cfg.Bot.RequestTimeoutSeconds,
	})
	forecastClient := forecast.NewClient(forecast.Config{
		GeocodeURL:     cfg.Weather.GeocodeURL,
		ForecastURL:    cfg.Weather.ForecastURL,
		TimeoutSeconds: cfg.Bot.RequestTimeoutSeconds,
	})
	est := estimator.New(cfg.Weather.LookaheadHours)
	thresholds := sig.Thresholds{
		MinEdgeBps:    cfg.Signal.MinEdgeBps,
		MinConfidence: cfg.Signal.MinConfidence,
		MinLiquidity:  cfg.Polymarket.MinLiquidity,
	}

	sinks := alerts.Multi{&alerts.WriterSink{W: os.Stdout}}
	if cfg.Alerts.SlackWebhookURL != "" {
		sinks = append(sinks, alerts.NewSlackSink(
			cfg.Alerts.SlackWebhookURL,
			time.Duration(cfg.Alerts.DedupeWindowSeconds)*time.Second,
		))
	}

	var paperEngine *paper.Engine
	if cfg.Paper.Enabled || mode == "paper" {
		paperEngine, err = paper.NewEngine(paper.Config{
			StatePath:        cfg.Paper.StatePath,
			StartingCashUSD:  cfg.Paper.StartingCashUSD,
			PositionSizeUSD:  cfg.Paper.PositionSizeUSD,
			MaxOpenPositions: cfg.Paper.MaxOpenPositions,
			CloseEdgeBps:     cfg.Paper.CloseEdgeBps,
		})
		if err != nil {
			// A corrupt ledger must stop the process, not reset history.
			return fmt.Errorf("paper engine: %w", err)
		}
	}

	scanner := engine.NewScanner(marketClient, forecastClient, est, thresholds, sinks, paperEngine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	interval := time.Duration(cfg.Bot.ScanIntervalSeconds) * time.Second
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}

	for {
		payload, err := scanner.RunCycle(ctx)
		if err != nil {
			observ.Error("cycle_failed", map[string]any{"error": err.Error()})
		} else if data, jerr := json.Marshal(payload); jerr == nil {
			fmt.Println(string(data))
		}

		if once || mode == "scan" {
			break
		}

		select {
		case <-time.After(interval):
		case s := <-sigChan:
			observ.Log("scanner_stopping", map[string]any{"signal": s.String()})
			cancel()
			observ.Log("counters", anyMap(observ.DumpCounters()))
			return nil
		}
	}

	observ.Log("counters", anyMap(observ.DumpCounters()))
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func anyMap(in map[string]int64) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
