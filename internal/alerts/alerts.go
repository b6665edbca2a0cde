// Package alerts delivers emitted signals to external sinks. The
// core's responsibility ends at producing the record; a sink failure
// is logged, never propagated into the scan cycle.
package alerts

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/RondoWright/weather/internal/observ"
	"github.com/RondoWright/weather/internal/signal"
)

// Sink receives emitted signal records.
type Sink interface {
	Emit(sig *signal.Signal) error
}

// WriterSink writes each signal as one JSON line, typically to stdout.
type WriterSink struct {
	W io.Writer
}

func (s *WriterSink) Emit(sig *signal.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.W, string(data))
	return err
}

// Multi fans a signal out to several sinks; the first error is
// returned after all sinks were attempted.
type Multi []Sink

func (m Multi) Emit(sig *signal.Signal) error {
	var firstErr error
	for _, s := range m {
		if err := s.Emit(sig); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Dispatch sends a signal to the sink and records the outcome. Used by
// the engine so alert failures degrade to log lines.
func Dispatch(sink Sink, sig *signal.Signal) {
	if sink == nil {
		return
	}
	if err := sink.Emit(sig); err != nil {
		observ.Warn("alert_emit_failed", map[string]any{
			"market_id": sig.MarketID,
			"error":     err.Error(),
		})
		observ.IncCounter("alert_errors_total", nil)
		return
	}
	observ.IncCounter("alerts_sent_total", nil)
}
