// internal/report/report.go
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/focusmap/internal/tabstops"
)

// Mode names the backend a page was analysed with.
type Mode string

const (
	ModeStatic Mode = "static"
	ModeLive   Mode = "live"
)

// Stop is one observed tab stop, numbered from 1.
type Stop struct {
	Position  int       `json:"position" yaml:"position"`
	Target    []string  `json:"target" yaml:"target"`
	HTML      string    `json:"html,omitempty" yaml:"html,omitempty"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	// Problem is empty for a stop in the expected order, otherwise "out_of_order" or "unexpected".
	Problem string `json:"problem,omitempty" yaml:"problem,omitempty"`
}

const (
	ProblemOutOfOrder = "out_of_order"
	ProblemUnexpected = "unexpected"
)

// PageReport is the outcome of analysing one target.
type PageReport struct {
	Target     string              `json:"target" yaml:"target"`
	Location   string              `json:"location,omitempty" yaml:"location,omitempty"`
	Mode       Mode                `json:"mode" yaml:"mode"`
	Expected   []string            `json:"expected" yaml:"expected"`
	Stops      []Stop              `json:"stops" yaml:"stops"`
	StopReason tabstops.StopReason `json:"stop_reason,omitempty" yaml:"stop_reason,omitempty"`
	Missing    []string            `json:"missing,omitempty" yaml:"missing,omitempty"`
	Passed     bool                `json:"passed" yaml:"passed"`
	Overlay    string              `json:"overlay,omitempty" yaml:"overlay,omitempty"`
	Screenshot string              `json:"screenshot,omitempty" yaml:"screenshot,omitempty"`
	Error      string              `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time           `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time           `json:"finished_at" yaml:"finished_at"`
}

// NewPageReport builds the page section from a recording and its analysis.
func NewPageReport(target string, mode Mode, rec tabstops.Recording, a tabstops.Analysis) PageReport {
	problems := make(map[int]string, len(a.OutOfOrder)+len(a.Unexpected))
	for _, i := range a.OutOfOrder {
		problems[i] = ProblemOutOfOrder
	}
	for _, i := range a.Unexpected {
		problems[i] = ProblemUnexpected
	}

	stops := make([]Stop, len(a.Observed))
	for i, ev := range a.Observed {
		stops[i] = Stop{
			Position:  i + 1,
			Target:    ev.Target,
			HTML:      ev.HTML,
			Timestamp: ev.Timestamp,
			Problem:   problems[i],
		}
	}
	return PageReport{
		Target:     target,
		Mode:       mode,
		Expected:   a.Expected,
		Stops:      stops,
		StopReason: rec.Stop,
		Missing:    a.Missing,
		Passed:     a.Passed(),
	}
}

// Failed reports a page that errored or whose order did not match.
func (p PageReport) Failed() bool {
	return p.Error != "" || !p.Passed
}

// Summary counts page outcomes.
type Summary struct {
	Pages   int `json:"pages" yaml:"pages"`
	Passed  int `json:"passed" yaml:"passed"`
	Failed  int `json:"failed" yaml:"failed"`
	Errored int `json:"errored" yaml:"errored"`
}

// Report is one run over one or more targets.
type Report struct {
	ID        string       `json:"id" yaml:"id"`
	Tool      string       `json:"tool" yaml:"tool"`
	Version   string       `json:"version" yaml:"version"`
	CreatedAt time.Time    `json:"created_at" yaml:"created_at"`
	Summary   Summary      `json:"summary" yaml:"summary"`
	Pages     []PageReport `json:"pages" yaml:"pages"`
}

// New assigns a fresh id and computes the summary.
func New(version string, createdAt time.Time, pages []PageReport) *Report {
	r := &Report{
		ID:        uuid.NewString(),
		Tool:      "focusmap",
		Version:   version,
		CreatedAt: createdAt.UTC(),
		Pages:     pages,
	}
	r.Summarize()
	return r
}

// Summarize recomputes Summary from Pages.
func (r *Report) Summarize() {
	s := Summary{Pages: len(r.Pages)}
	for _, p := range r.Pages {
		switch {
		case p.Error != "":
			s.Errored++
		case p.Passed:
			s.Passed++
		default:
			s.Failed++
		}
	}
	r.Summary = s
}

// Failed reports whether any page failed or errored.
func (r *Report) Failed() bool {
	return r.Summary.Failed > 0 || r.Summary.Errored > 0
}
