// Package forecast wraps the Open-Meteo geocoding and forecast APIs
// behind the narrow snapshot contract the estimator consumes.
package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Config holds the forecast client settings.
type Config struct {
	GeocodeURL         string
	ForecastURL        string
	TimeoutSeconds     int
	RateLimitPerMinute int
	ForecastDays       int
}

// Client is a rate-limited HTTP client for Open-Meteo.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func NewClient(cfg Config) *Client {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 12
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 60
	}
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = 16
	}
	return &Client{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60), 1),
	}
}

// Resolve geocodes the first city candidate that returns a match.
// Failing to resolve any candidate is not an error in the cycle sense:
// the caller skips the market.
func (c *Client) Resolve(ctx context.Context, candidates []string) (Location, error) {
	for _, city := range candidates {
		loc, ok, err := c.geocode(ctx, city)
		if err != nil {
			return Location{}, err
		}
		if ok {
			return loc, nil
		}
	}
	return Location{}, fmt.Errorf("no geocoding match for candidates %v", candidates)
}

func (c *Client) geocode(ctx context.Context, city string) (Location, bool, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return Location{}, false, err
	}
	u, err := url.Parse(c.cfg.GeocodeURL)
	if err != nil {
		return Location{}, false, fmt.Errorf("geocode url: %w", err)
	}
	q := u.Query()
	q.Set("name", city)
	q.Set("count", "1")
	q.Set("language", "en")
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	var payload struct {
		Results []struct {
			Name      string  `json:"name"`
			Country   string  `json:"country"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, u.String(), &payload); err != nil {
		return Location{}, false, err
	}
	if len(payload.Results) == 0 {
		return Location{}, false, nil
	}
	r := payload.Results[0]
	name := r.Name
	if name == "" {
		name = city
	}
	return Location{Name: name, Country: r.Country, Latitude: r.Latitude, Longitude: r.Longitude}, true, nil
}

// Fetch pulls the hourly forecast for a location. A response with no
// usable hourly series yields an error; partially populated series are
// returned as-is for the estimator to down-weight.
func (c *Client) Fetch(ctx context.Context, loc Location) (*Snapshot, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	u, err := url.Parse(c.cfg.ForecastURL)
	if err != nil {
		return nil, fmt.Errorf("forecast url: %w", err)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))
	q.Set("hourly", "temperature_2m,precipitation_probability,wind_speed_10m")
	q.Set("forecast_days", strconv.Itoa(c.cfg.ForecastDays))
	q.Set("timezone", "UTC")
	u.RawQuery = q.Encode()

	var payload struct {
		Hourly struct {
			Time          []string  `json:"time"`
			Temperature2m []float64 `json:"temperature_2m"`
			PrecipProb    []float64 `json:"precipitation_probability"`
			WindSpeed10m  []float64 `json:"wind_speed_10m"`
		} `json:"hourly"`
	}
	if err := c.getJSON(ctx, u.String(), &payload); err != nil {
		return nil, err
	}
	if len(payload.Hourly.Time) == 0 {
		return nil, fmt.Errorf("no hourly forecast for %s", loc.Label())
	}

	times := make([]time.Time, 0, len(payload.Hourly.Time))
	for _, raw := range payload.Hourly.Time {
		t, err := time.ParseInLocation("2006-01-02T15:04", raw, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse forecast timestamp %q: %w", raw, err)
		}
		times = append(times, t)
	}

	return &Snapshot{
		Location:   loc,
		FetchedAt:  time.Now().UTC(),
		Times:      times,
		TempsC:     payload.Hourly.Temperature2m,
		PrecipProb: payload.Hourly.PrecipProb,
		WindKmh:    payload.Hourly.WindSpeed10m,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, resp.Request.URL.Host)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
