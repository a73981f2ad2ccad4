// internal/tabstops/recorder.go
package tabstops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Event is one observed tab stop.
type Event struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	// Target locates the focused element; each successive selector drills into a nested frame.
	Target []string `json:"target" yaml:"target"`
	HTML   string   `json:"html" yaml:"html"`
}

// Key identifies the element an event refers to.
func (e Event) Key() string {
	return strings.Join(e.Target, " ;; ")
}

// Navigator drives keyboard focus on a page.
type Navigator interface {
	PressTab(ctx context.Context) error
	// FocusedElement reports false when nothing on the page holds focus.
	FocusedElement(ctx context.Context) (Event, bool, error)
}

// StopReason says why a recording ended.
type StopReason string

const (
	StopCycle    StopReason = "cycle"
	StopLeftPage StopReason = "left_page"
	StopMaxStops StopReason = "max_stops"
)

// Recording is the ordered list of stops reached by pressing Tab from the top of the page.
type Recording struct {
	Events []Event    `json:"events" yaml:"events"`
	Stop   StopReason `json:"stop" yaml:"stop"`
}

// Recorder presses Tab at a bounded rate and records where focus lands.
type Recorder struct {
	nav     Navigator
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRecorder paces presses at least interval apart. A zero interval does not pace.
func NewRecorder(nav Navigator, interval time.Duration, logger *zap.Logger) *Recorder {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Recorder{
		nav:     nav,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("tab_recorder"),
	}
}

// Record presses Tab until focus returns to the first stop seen again, leaves the page, or
// maxStops stops were recorded. onEvent, when set, sees every new stop as it is recorded.
func (r *Recorder) Record(ctx context.Context, maxStops int, onEvent func(Event)) (Recording, error) {
	var rec Recording
	seen := make(map[string]bool)

	for {
		if maxStops > 0 && len(rec.Events) >= maxStops {
			rec.Stop = StopMaxStops
			break
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return rec, fmt.Errorf("tab recording interrupted: %w", err)
		}
		if err := r.nav.PressTab(ctx); err != nil {
			return rec, fmt.Errorf("failed to press tab: %w", err)
		}
		ev, ok, err := r.nav.FocusedElement(ctx)
		if err != nil {
			return rec, fmt.Errorf("failed to read focused element: %w", err)
		}
		if !ok {
			rec.Stop = StopLeftPage
			break
		}
		if seen[ev.Key()] {
			rec.Stop = StopCycle
			break
		}
		seen[ev.Key()] = true
		rec.Events = append(rec.Events, ev)
		r.logger.Debug("Recorded tab stop.", zap.Int("order", len(rec.Events)), zap.Strings("target", ev.Target))
		if onEvent != nil {
			onEvent(ev)
		}
	}

	r.logger.Info("Tab recording finished.", zap.Int("stops", len(rec.Events)), zap.String("reason", string(rec.Stop)))
	return rec, nil
}
