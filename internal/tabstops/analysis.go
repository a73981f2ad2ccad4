// internal/tabstops/analysis.go
package tabstops

import (
	"github.com/xkilldash9x/focusmap/internal/dom"
	"github.com/xkilldash9x/focusmap/internal/tabbable"
	"github.com/xkilldash9x/focusmap/internal/visualization"
)

// ExpectedTargets returns the unique selector of every tabbable element in tab order.
// ids is the document the classifier reads, so duplicated ids fall back to positional paths.
func ExpectedTargets(c *tabbable.Classifier, ids dom.IDCounter) []string {
	sorted := c.GetSortedTabbableElements()
	out := make([]string, len(sorted))
	for i, e := range sorted {
		out[i] = dom.UniqueSelector(e.Element, ids)
	}
	return out
}

// Analysis compares the tab order a page should have with the one observed.
type Analysis struct {
	Expected []string `json:"expected" yaml:"expected"`
	Observed []Event  `json:"observed" yaml:"observed"`
	// Missing lists expected targets that focus never reached, in expected order.
	Missing []string `json:"missing" yaml:"missing"`
	// OutOfOrder holds indexes into Observed of stops reached earlier than their expected position.
	OutOfOrder []int `json:"out_of_order" yaml:"out_of_order"`
	// Unexpected holds indexes into Observed of stops that are not expected at all.
	Unexpected []int `json:"unexpected" yaml:"unexpected"`
}

// Passed reports whether the observed order matched the expected one exactly.
func (a Analysis) Passed() bool {
	return len(a.Missing) == 0 && len(a.OutOfOrder) == 0 && len(a.Unexpected) == 0
}

// Analyze checks observed stops against the expected targets. A stop is out of order when
// an earlier observed stop comes later in the expected order.
func Analyze(expected []string, observed []Event) Analysis {
	a := Analysis{Expected: expected, Observed: observed}

	position := make(map[string]int, len(expected))
	for i, target := range expected {
		if _, dup := position[target]; !dup {
			position[target] = i
		}
	}

	reached := make(map[string]bool, len(observed))
	furthest := -1
	for i, ev := range observed {
		key := lastFragment(ev.Target)
		pos, ok := position[key]
		if !ok {
			a.Unexpected = append(a.Unexpected, i)
			continue
		}
		reached[key] = true
		if pos < furthest {
			a.OutOfOrder = append(a.OutOfOrder, i)
			continue
		}
		furthest = pos
	}

	for _, target := range expected {
		if !reached[target] {
			a.Missing = append(a.Missing, target)
		}
	}
	return a
}

// ElementResults converts the analysis into drawer data: every observed stop in order,
// with failures flagged, followed by the missing stops.
func (a Analysis) ElementResults() []visualization.ElementResult {
	failed := make(map[int]bool, len(a.OutOfOrder)+len(a.Unexpected))
	for _, i := range a.OutOfOrder {
		failed[i] = true
	}
	for _, i := range a.Unexpected {
		failed[i] = true
	}

	out := make([]visualization.ElementResult, 0, len(a.Observed)+len(a.Missing))
	for i, ev := range a.Observed {
		result := visualization.ElementResult{
			Target:   append([]string(nil), ev.Target...),
			TabOrder: i + 1,
			ItemType: visualization.ItemTabbed,
		}
		if failed[i] {
			result.IsFailure = true
			result.ItemType = visualization.ItemErrored
		}
		out = append(out, result)
	}
	for _, target := range a.Missing {
		out = append(out, visualization.ElementResult{
			Target:    []string{target},
			IsFailure: true,
			ItemType:  visualization.ItemMissing,
		})
	}
	return out
}

// EventResults converts stops into drawer data without any failure analysis.
func EventResults(events []Event) []visualization.ElementResult {
	return Analysis{Observed: events}.ElementResults()
}

func lastFragment(target []string) string {
	if len(target) == 0 {
		return ""
	}
	return target[len(target)-1]
}
