// Package market fetches active prediction markets from the Polymarket
// Gamma API and filters them down to liquid weather candidates.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Config holds the market client settings.
type Config struct {
	GammaURL           string
	ScanLimit          int
	MinLiquidity       float64
	WeatherKeywords    []string
	TimeoutSeconds     int
	RateLimitPerMinute int
}

// Client is a rate-limited HTTP client for the Gamma markets endpoint.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a market client, filling conservative defaults for
// anything unset.
func NewClient(cfg Config) *Client {
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = 75
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 12
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 30
	}
	return &Client{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60), 1),
	}
}

// ActiveMarkets fetches currently open markets, keeps the ones whose
// question matches a weather keyword and whose liquidity clears the
// floor, and returns them sorted by liquidity descending. Any fetch or
// decode failure is returned to the caller: the scan cycle must abort
// rather than act on a partial market list.
func (c *Client) ActiveMarkets(ctx context.Context) ([]Snapshot, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(c.cfg.GammaURL)
	if err != nil {
		return nil, fmt.Errorf("gamma url: %w", err)
	}
	q := u.Query()
	q.Set("active", "true")
	q.Set("archived", "false")
	q.Set("closed", "false")
	q.Set("limit", strconv.Itoa(c.cfg.ScanLimit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gamma api status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	raw, err := normalizeMarkets(body)
	if err != nil {
		return nil, err
	}

	var out []Snapshot
	for _, m := range raw {
		snap, ok := c.parseMarket(m)
		if !ok {
			continue
		}
		out = append(out, snap)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Liquidity > out[j].Liquidity })
	return out, nil
}

// normalizeMarkets accepts either a bare array or an object wrapping
// the array under a well-known key.
func normalizeMarkets(body []byte) ([]map[string]any, error) {
	var list []map[string]any
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("parse markets payload: %w", err)
	}
	for _, key := range []string{"markets", "data", "results"} {
		if rawList, ok := wrapper[key]; ok {
			if err := json.Unmarshal(rawList, &list); err == nil {
				return list, nil
			}
		}
	}
	return nil, fmt.Errorf("markets payload has no recognizable list")
}

func (c *Client) parseMarket(m map[string]any) (Snapshot, bool) {
	question := strings.TrimSpace(asString(m["question"]))
	if question == "" {
		question = strings.TrimSpace(asString(m["title"]))
	}
	if question == "" || !c.matchesKeyword(question) {
		return Snapshot{}, false
	}

	yes, ok := extractYesPrice(m)
	if !ok {
		return Snapshot{}, false
	}
	liquidity := extractLiquidity(m)
	if liquidity < c.cfg.MinLiquidity {
		return Snapshot{}, false
	}

	id := asString(m["id"])
	if id == "" {
		id = asString(m["conditionId"])
	}
	if id == "" {
		id = asString(m["slug"])
	}
	if id == "" {
		id = question
	}

	return Snapshot{
		ID:        id,
		Question:  question,
		YesPrice:  yes,
		NoPrice:   1 - yes,
		Liquidity: liquidity,
		CloseTime: extractCloseTime(m),
	}, true
}

func (c *Client) matchesKeyword(question string) bool {
	lower := strings.ToLower(question)
	for _, kw := range c.cfg.WeatherKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// extractYesPrice handles the two shapes Gamma serves: a direct
// yesPrice field, or parallel outcomes/outcomePrices arrays that may
// themselves arrive as JSON-encoded strings.
func extractYesPrice(m map[string]any) (float64, bool) {
	for _, key := range []string{"yesPrice", "yes_price"} {
		if v, ok := m[key]; ok {
			price, err := asFloat(v)
			if err == nil && price >= 0 && price <= 1 {
				return price, true
			}
			return 0, false
		}
	}

	outcomes := asList(m["outcomes"])
	prices := asList(firstNonNil(m["outcomePrices"], m["outcome_prices"]))
	if len(outcomes) == 0 || len(outcomes) != len(prices) {
		return 0, false
	}
	for i, outcome := range outcomes {
		if strings.EqualFold(strings.TrimSpace(asString(outcome)), "yes") {
			price, err := asFloat(prices[i])
			if err == nil && price >= 0 && price <= 1 {
				return price, true
			}
			return 0, false
		}
	}
	return 0, false
}

func extractLiquidity(m map[string]any) float64 {
	for _, key := range []string{"liquidity", "liquidityNum", "liquidityClob", "volume", "volumeNum"} {
		if v, ok := m[key]; ok {
			if f, err := asFloat(v); err == nil {
				return f
			}
		}
	}
	return 0
}

func extractCloseTime(m map[string]any) time.Time {
	for _, key := range []string{"endDate", "end_date_iso", "endDateIso", "closeTime"} {
		raw := asString(m[key])
		if raw == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(t, 64)
	case json.Number:
		return t.Float64()
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

// asList decodes list-ish values, including lists serialized as JSON
// strings ("[\"Yes\",\"No\"]"), which Gamma does for outcome fields.
func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case string:
		var out []any
		if err := json.Unmarshal([]byte(t), &out); err == nil {
			return out
		}
	}
	return nil
}

func firstNonNil(vs ...any) any {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}
