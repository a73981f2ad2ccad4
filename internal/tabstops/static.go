// internal/tabstops/static.go
package tabstops

import (
	"context"
	"time"

	"github.com/xkilldash9x/focusmap/internal/dom"
	"github.com/xkilldash9x/focusmap/internal/dom/htmldoc"
	"github.com/xkilldash9x/focusmap/internal/tabbable"
)

// StaticNavigator simulates Tab presses on a parsed document by walking the computed tab order.
// Past the last stop focus leaves the page, as it does for the browser chrome, and the next
// press starts over.
type StaticNavigator struct {
	doc        *htmldoc.Document
	classifier *tabbable.Classifier
	now        func() time.Time

	order    []tabbable.Element
	position int
	loaded   bool
}

func NewStaticNavigator(doc *htmldoc.Document, classifier *tabbable.Classifier) *StaticNavigator {
	return &StaticNavigator{doc: doc, classifier: classifier, now: time.Now, position: -1}
}

// WithClock replaces the timestamp source.
func (n *StaticNavigator) WithClock(now func() time.Time) *StaticNavigator {
	n.now = now
	return n
}

func (n *StaticNavigator) PressTab(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !n.loaded {
		n.order = n.classifier.GetSortedTabbableElements()
		n.loaded = true
	}
	n.position++
	if n.position >= len(n.order) {
		n.position = -1
		n.doc.Focus(nil)
		return nil
	}
	n.doc.Focus(n.order[n.position].Element)
	return nil
}

func (n *StaticNavigator) FocusedElement(ctx context.Context) (Event, bool, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, false, err
	}
	el := n.doc.CurrentFocusedElement()
	if el == nil || el == n.doc.Body() {
		return Event{}, false, nil
	}
	return EventFor(n.doc, el, n.now()), true, nil
}

// EventFor describes el as a tab stop observed at t.
func EventFor(doc *htmldoc.Document, el dom.Element, t time.Time) Event {
	return Event{
		Timestamp: t,
		Target:    []string{dom.UniqueSelector(el, doc)},
		HTML:      doc.HTML(el),
	}
}
