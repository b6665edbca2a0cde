package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Bot struct {
	ScanIntervalSeconds   int    `yaml:"scan_interval_seconds"`
	ScanLimit             int    `yaml:"scan_limit"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	LogLevel              string `yaml:"log_level"`
}

type Polymarket struct {
	GammaURL        string   `yaml:"gamma_url"`
	MinLiquidity    float64  `yaml:"min_liquidity"`
	WeatherKeywords []string `yaml:"weather_keywords"`
}

type Weather struct {
	GeocodeURL     string `yaml:"geocode_url"`
	ForecastURL    string `yaml:"forecast_url"`
	LookaheadHours int    `yaml:"lookahead_hours"`
}

type Signal struct {
	MinEdgeBps    int     `yaml:"min_edge_bps"`
	MinConfidence float64 `yaml:"min_confidence"`
}

type Paper struct {
	Enabled          bool    `yaml:"enabled"`
	StatePath        string  `yaml:"state_path"`
	StartingCashUSD  float64 `yaml:"starting_cash_usd"`
	PositionSizeUSD  float64 `yaml:"position_size_usd"`
	MaxOpenPositions int     `yaml:"max_open_positions"`
	CloseEdgeBps     int     `yaml:"close_edge_bps"`
}

type Alerts struct {
	SlackWebhookURL     string `yaml:"slack_webhook_url"`
	DedupeWindowSeconds int    `yaml:"dedupe_window_seconds"`
}

type Root struct {
	Bot        Bot        `yaml:"bot"`
	Polymarket Polymarket `yaml:"polymarket"`
	Weather    Weather    `yaml:"weather"`
	Signal     Signal     `yaml:"signal"`
	Paper      Paper      `yaml:"paper"`
	Alerts     Alerts     `yaml:"alerts"`
}

func defaultKeywords() []string {
	return []string{
		"weather", "temperature", "rain", "snow", "precip",
		"hurricane", "wind", "degrees", "hot", "cold",
	}
}

// Load reads the YAML config at path, fills defaults for anything the
// file leaves unset, then applies environment overrides. A missing
// file is not an error: defaults plus environment apply.
func Load(path string) (Root, error) {
	var c Root
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &c); err != nil {
				return c, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyDefaults(&c)
	applyEnvOverrides(&c)

	if c.Signal.MinConfidence < 0 || c.Signal.MinConfidence > 1 {
		return c, fmt.Errorf("signal.min_confidence must be in [0,1], got %v", c.Signal.MinConfidence)
	}
	if c.Paper.PositionSizeUSD <= 0 {
		return c, fmt.Errorf("paper.position_size_usd must be positive, got %v", c.Paper.PositionSizeUSD)
	}
	return c, nil
}

func applyDefaults(c *Root) {
	if c.Bot.ScanIntervalSeconds == 0 {
		c.Bot.ScanIntervalSeconds = 300
	}
	if c.Bot.ScanLimit == 0 {
		c.Bot.ScanLimit = 75
	}
	if c.Bot.RequestTimeoutSeconds == 0 {
		c.Bot.RequestTimeoutSeconds = 12
	}
	if c.Bot.LogLevel == "" {
		c.Bot.LogLevel = "info"
	}
	if c.Polymarket.GammaURL == "" {
		c.Polymarket.GammaURL = "https://gamma-api.polymarket.com/markets"
	}
	if c.Polymarket.MinLiquidity == 0 {
		c.Polymarket.MinLiquidity = 1000
	}
	if len(c.Polymarket.WeatherKeywords) == 0 {
		c.Polymarket.WeatherKeywords = defaultKeywords()
	}
	if c.Weather.GeocodeURL == "" {
		c.Weather.GeocodeURL = "https://geocoding-api.open-meteo.com/v1/search"
	}
	if c.Weather.ForecastURL == "" {
		c.Weather.ForecastURL = "https://api.open-meteo.com/v1/forecast"
	}
	if c.Weather.LookaheadHours == 0 {
		c.Weather.LookaheadHours = 72
	}
	if c.Signal.MinEdgeBps == 0 {
		c.Signal.MinEdgeBps = 300
	}
	if c.Signal.MinConfidence == 0 {
		c.Signal.MinConfidence = 0.55
	}
	if c.Paper.StatePath == "" {
		c.Paper.StatePath = "data/paper_state.json"
	}
	if c.Paper.StartingCashUSD == 0 {
		c.Paper.StartingCashUSD = 1000
	}
	if c.Paper.PositionSizeUSD == 0 {
		c.Paper.PositionSizeUSD = 50
	}
	if c.Paper.MaxOpenPositions == 0 {
		c.Paper.MaxOpenPositions = 5
	}
	if c.Paper.CloseEdgeBps == 0 {
		c.Paper.CloseEdgeBps = 100
	}
	if c.Alerts.DedupeWindowSeconds == 0 {
		c.Alerts.DedupeWindowSeconds = 900
	}
}

func applyEnvOverrides(c *Root) {
	setInt := func(key string, dst *int) {
		if raw := os.Getenv(key); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				*dst = v
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if raw := os.Getenv(key); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				*dst = v
			}
		}
	}
	setString := func(key string, dst *string) {
		if raw := os.Getenv(key); raw != "" {
			*dst = raw
		}
	}
	setBool := func(key string, dst *bool) {
		if raw := os.Getenv(key); raw != "" {
			switch strings.ToLower(raw) {
			case "1", "true", "yes":
				*dst = true
			case "0", "false", "no":
				*dst = false
			}
		}
	}

	setInt("BOT_SCAN_INTERVAL_SECONDS", &c.Bot.ScanIntervalSeconds)
	setInt("BOT_SCAN_LIMIT", &c.Bot.ScanLimit)
	setInt("BOT_REQUEST_TIMEOUT_SECONDS", &c.Bot.RequestTimeoutSeconds)
	setString("BOT_LOG_LEVEL", &c.Bot.LogLevel)

	setString("POLYMARKET_GAMMA_URL", &c.Polymarket.GammaURL)
	setFloat("POLYMARKET_MIN_LIQUIDITY", &c.Polymarket.MinLiquidity)
	if raw := os.Getenv("POLYMARKET_WEATHER_KEYWORDS"); raw != "" {
		var kws []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				kws = append(kws, part)
			}
		}
		if len(kws) > 0 {
			c.Polymarket.WeatherKeywords = kws
		}
	}

	setString("WEATHER_GEOCODE_URL", &c.Weather.GeocodeURL)
	setString("WEATHER_FORECAST_URL", &c.Weather.ForecastURL)
	setInt("WEATHER_LOOKAHEAD_HOURS", &c.Weather.LookaheadHours)

	setInt("SIGNAL_MIN_EDGE_BPS", &c.Signal.MinEdgeBps)
	setFloat("SIGNAL_MIN_CONFIDENCE", &c.Signal.MinConfidence)

	setBool("PAPER_ENABLED", &c.Paper.Enabled)
	setString("PAPER_STATE_PATH", &c.Paper.StatePath)
	setFloat("PAPER_STARTING_CASH_USD", &c.Paper.StartingCashUSD)
	setFloat("PAPER_POSITION_SIZE_USD", &c.Paper.PositionSizeUSD)
	setInt("PAPER_MAX_OPEN_POSITIONS", &c.Paper.MaxOpenPositions)
	setInt("PAPER_CLOSE_EDGE_BPS", &c.Paper.CloseEdgeBps)

	setString("SLACK_WEBHOOK_URL", &c.Alerts.SlackWebhookURL)
}
