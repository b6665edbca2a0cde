package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Bot.ScanIntervalSeconds != 300 {
		t.Fatalf("scan interval = %d", c.Bot.ScanIntervalSeconds)
	}
	if c.Signal.MinEdgeBps != 300 || c.Signal.MinConfidence != 0.55 {
		t.Fatalf("signal defaults = %+v", c.Signal)
	}
	if c.Paper.StartingCashUSD != 1000 || c.Paper.MaxOpenPositions != 5 {
		t.Fatalf("paper defaults = %+v", c.Paper)
	}
	if len(c.Polymarket.WeatherKeywords) == 0 {
		t.Fatal("want default keywords")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
bot:
  scan_interval_seconds: 60
  log_level: debug
polymarket:
  min_liquidity: 2500
signal:
  min_edge_bps: 500
paper:
  enabled: true
  position_size_usd: 25
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Bot.ScanIntervalSeconds != 60 || c.Bot.LogLevel != "debug" {
		t.Fatalf("bot = %+v", c.Bot)
	}
	if c.Polymarket.MinLiquidity != 2500 {
		t.Fatalf("min liquidity = %v", c.Polymarket.MinLiquidity)
	}
	if c.Signal.MinEdgeBps != 500 {
		t.Fatalf("min edge = %d", c.Signal.MinEdgeBps)
	}
	if !c.Paper.Enabled || c.Paper.PositionSizeUSD != 25 {
		t.Fatalf("paper = %+v", c.Paper)
	}
	// Untouched sections keep their defaults.
	if c.Weather.LookaheadHours != 72 {
		t.Fatalf("lookahead = %d", c.Weather.LookaheadHours)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("signal:\n  min_edge_bps: 500\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SIGNAL_MIN_EDGE_BPS", "800")
	t.Setenv("PAPER_ENABLED", "true")
	t.Setenv("POLYMARKET_WEATHER_KEYWORDS", "rain, snow ,heatwave")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Signal.MinEdgeBps != 800 {
		t.Fatalf("min edge = %d, want env override", c.Signal.MinEdgeBps)
	}
	if !c.Paper.Enabled {
		t.Fatal("PAPER_ENABLED=true must enable paper trading")
	}
	want := []string{"rain", "snow", "heatwave"}
	if len(c.Polymarket.WeatherKeywords) != len(want) {
		t.Fatalf("keywords = %v", c.Polymarket.WeatherKeywords)
	}
	for i, kw := range want {
		if c.Polymarket.WeatherKeywords[i] != kw {
			t.Fatalf("keywords = %v, want %v", c.Polymarket.WeatherKeywords, want)
		}
	}
}

func TestLoad_MalformedYAMLIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("bot: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("want parse error")
	}
}

func TestLoad_RejectsOutOfRangeConfidence(t *testing.T) {
	t.Setenv("SIGNAL_MIN_CONFIDENCE", "1.5")
	if _, err := Load(""); err == nil {
		t.Fatal("want validation error for confidence above 1")
	}
}
