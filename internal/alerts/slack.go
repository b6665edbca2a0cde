package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/RondoWright/weather/internal/signal"
)

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

// SlackSink posts signals to an incoming-webhook URL. Repeated signals
// for the same market and direction are suppressed inside the dedupe
// window so a persistent edge does not spam the channel every cycle.
type SlackSink struct {
	webhookURL   string
	dedupeWindow time.Duration
	httpClient   *http.Client

	mu       sync.Mutex
	lastSent map[string]time.Time // marketID|direction -> last emit
}

func NewSlackSink(webhookURL string, dedupeWindow time.Duration) *SlackSink {
	return &SlackSink{
		webhookURL:   webhookURL,
		dedupeWindow: dedupeWindow,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		lastSent:     map[string]time.Time{},
	}
}

func (s *SlackSink) Emit(sig *signal.Signal) error {
	key := sig.MarketID + "|" + string(sig.Direction)
	now := time.Now()

	s.mu.Lock()
	if last, ok := s.lastSent[key]; ok && now.Sub(last) < s.dedupeWindow {
		s.mu.Unlock()
		return nil
	}
	s.lastSent[key] = now
	s.mu.Unlock()

	color := "good"
	if sig.Direction == signal.BuyNo {
		color = "warning"
	}
	msg := slackMessage{
		Text: fmt.Sprintf("%s %s (edge %d bps)", sig.Direction, sig.Question, sig.EdgeBps),
		Attachments: []slackAttachment{{
			Color: color,
			Fields: []slackField{
				{Title: "Market", Value: sig.MarketID, Short: true},
				{Title: "Edge (bps)", Value: fmt.Sprintf("%d", sig.EdgeBps), Short: true},
				{Title: "Model", Value: fmt.Sprintf("%.3f", sig.ModelProbability), Short: true},
				{Title: "Quoted", Value: fmt.Sprintf("%.3f", sig.MarketYesPrice), Short: true},
				{Title: "Confidence", Value: fmt.Sprintf("%.2f", sig.Confidence), Short: true},
				{Title: "Liquidity", Value: fmt.Sprintf("$%.0f", sig.Liquidity), Short: true},
			},
		}},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook status %d", resp.StatusCode)
	}
	return nil
}
