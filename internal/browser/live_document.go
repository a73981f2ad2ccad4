// internal/browser/live_document.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/focusmap/internal/dom"
)

// ErrElementNotFound is returned when a decoration targets an element the page no longer has.
var ErrElementNotFound = errors.New("element not found in page")

// Evaluator runs a script in the page and decodes its result into res.
type Evaluator interface {
	Evaluate(ctx context.Context, script string, res any) error
}

// LiveDocument implements dom.Document over a snapshot of a rendered page. Reads are served
// from the snapshot; decorations are applied to the page and mirrored into the snapshot.
// Call Refresh after the page changes to pick up new geometry.
type LiveDocument struct {
	eval   Evaluator
	logger *zap.Logger

	mu    sync.RWMutex
	snap  snapshot
	nodes []*liveElement
}

var _ dom.Document = (*LiveDocument)(nil)

type snapshot struct {
	ScrollX        float64      `json:"scrollX"`
	ScrollY        float64      `json:"scrollY"`
	DocumentWidth  float64      `json:"documentWidth"`
	DocumentHeight float64      `json:"documentHeight"`
	Focused        int          `json:"focused"`
	Elements       []nodeRecord `json:"elements"`
}

type nodeRecord struct {
	Tag          string            `json:"tag"`
	Attrs        map[string]string `json:"attrs"`
	Parent       int               `json:"parent"`
	Prev         int               `json:"prev"`
	Style        styleRecord       `json:"style"`
	OffsetWidth  float64           `json:"offsetWidth"`
	OffsetHeight float64           `json:"offsetHeight"`
	Rect         dom.Rect          `json:"rect"`
	Rects        []dom.Rect        `json:"rects"`
}

type styleRecord struct {
	Display    string `json:"display"`
	Visibility string `json:"visibility"`
	Position   string `json:"position"`
}

// liveElement is a snapshot node. Wrappers are recreated on every Refresh.
type liveElement struct {
	doc *LiveDocument
	i   int
}

func (e *liveElement) record() *nodeRecord { return &e.doc.snap.Elements[e.i] }

func (e *liveElement) TagName() string { return e.record().Tag }

func (e *liveElement) Attribute(name string) (string, bool) {
	v, ok := e.record().Attrs[strings.ToLower(name)]
	return v, ok
}

func (e *liveElement) Parent() dom.Element { return e.doc.at(e.record().Parent) }

func (e *liveElement) PreviousElementSibling() dom.Element { return e.doc.at(e.record().Prev) }

func (e *liveElement) String() string { return "<" + e.record().Tag + ">" }

// NewLiveDocument takes the first snapshot of the page behind eval.
func NewLiveDocument(ctx context.Context, eval Evaluator, logger *zap.Logger) (*LiveDocument, error) {
	d := &LiveDocument{eval: eval, logger: logger.Named("live_document")}
	if err := d.Refresh(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Refresh re-reads the page. Elements obtained before the call must not be used afterwards.
func (d *LiveDocument) Refresh(ctx context.Context) error {
	var raw string
	if err := d.eval.Evaluate(ctx, snapshotScript, &raw); err != nil {
		return fmt.Errorf("failed to snapshot page: %w", err)
	}
	var snap snapshot
	if err := json.UnmarshalFromString(raw, &snap); err != nil {
		return fmt.Errorf("failed to decode page snapshot: %w", err)
	}
	if err := snap.validate(); err != nil {
		return fmt.Errorf("invalid page snapshot: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.snap = snap
	d.nodes = make([]*liveElement, len(snap.Elements))
	for i := range snap.Elements {
		d.nodes[i] = &liveElement{doc: d, i: i}
	}
	d.logger.Debug("Page snapshot taken.", zap.Int("elements", len(snap.Elements)))
	return nil
}

// validate rejects links that would point outside the element list or forward in document order.
func (s *snapshot) validate() error {
	for i, n := range s.Elements {
		if n.Parent >= i || n.Prev >= i || n.Parent < -1 || n.Prev < -1 {
			return fmt.Errorf("element %d has an out of order link", i)
		}
		if n.Attrs == nil {
			s.Elements[i].Attrs = map[string]string{}
		}
	}
	if s.Focused >= len(s.Elements) {
		s.Focused = -1
	}
	return nil
}

func (d *LiveDocument) at(i int) dom.Element {
	if i < 0 || i >= len(d.nodes) {
		return nil
	}
	return d.nodes[i]
}

func (d *LiveDocument) record(el dom.Element) *nodeRecord {
	le, ok := el.(*liveElement)
	if !ok || le == nil || le.doc != d || le.i >= len(d.nodes) || d.nodes[le.i] != le {
		return nil
	}
	return le.record()
}

// -- dom.Utils --

func (d *LiveDocument) ComputedStyle(el dom.Element) dom.Style {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r := d.record(el)
	if r == nil {
		return dom.Style{}
	}
	return dom.Style{Display: r.Style.Display, Visibility: r.Style.Visibility, Position: r.Style.Position}
}

func (d *LiveDocument) OffsetHeight(el dom.Element) float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if r := d.record(el); r != nil {
		return r.OffsetHeight
	}
	return 0
}

func (d *LiveDocument) OffsetWidth(el dom.Element) float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if r := d.record(el); r != nil {
		return r.OffsetWidth
	}
	return 0
}

func (d *LiveDocument) ClientRects(el dom.Element) []dom.Rect {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if r := d.record(el); r != nil {
		return slices.Clone(r.Rects)
	}
	return nil
}

func (d *LiveDocument) BoundingClientRect(el dom.Element) dom.Rect {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if r := d.record(el); r != nil {
		return r.Rect
	}
	return dom.Rect{}
}

func (d *LiveDocument) QuerySelector(selector string) dom.Element {
	list, err := dom.Compile(selector)
	if err != nil {
		d.logger.Debug("Ignoring unparsable selector.", zap.String("selector", selector), zap.Error(err))
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, n := range d.nodes {
		if dom.Matches(n, list) {
			return n
		}
	}
	return nil
}

// CountID returns how many snapshot elements carry id.
func (d *LiveDocument) CountID(id string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.countID(id)
}

// countID is CountID for callers that already hold d.mu.
func (d *LiveDocument) countID(id string) int {
	count := 0
	for _, n := range d.nodes {
		if v, ok := n.Attribute("id"); ok && v == id {
			count++
		}
	}
	return count
}

// lockedIDs counts ids while the caller holds d.mu.
type lockedIDs struct{ d *LiveDocument }

func (l lockedIDs) CountID(id string) int { return l.d.countID(id) }

func (d *LiveDocument) QuerySelectorAll(selector string) []dom.Element {
	list, err := dom.Compile(selector)
	if err != nil {
		d.logger.Debug("Ignoring unparsable selector.", zap.String("selector", selector), zap.Error(err))
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []dom.Element
	for _, n := range d.nodes {
		if dom.Matches(n, list) {
			out = append(out, n)
		}
	}
	return out
}

func (d *LiveDocument) ElementMatches(el dom.Element, selector string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.record(el) == nil {
		return false
	}
	return dom.MatchesSelector(el, selector)
}

// CurrentFocusedElement returns the element focused when the snapshot was taken, or the body.
func (d *LiveDocument) CurrentFocusedElement() dom.Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if el := d.at(d.snap.Focused); el != nil {
		return el
	}
	return d.body()
}

func (d *LiveDocument) TagName(el dom.Element) string {
	if el == nil {
		return ""
	}
	return el.TagName()
}

// -- dom.Document --

func (d *LiveDocument) Body() dom.Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.body()
}

func (d *LiveDocument) body() dom.Element {
	for i, n := range d.snap.Elements {
		if n.Tag == "body" && n.Parent == 0 {
			return d.nodes[i]
		}
	}
	return nil
}

func (d *LiveDocument) DocumentElement() dom.Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.at(0)
}

func (d *LiveDocument) Metrics() dom.Metrics {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return dom.Metrics{
		ScrollX:        d.snap.ScrollX,
		ScrollY:        d.snap.ScrollY,
		DocumentWidth:  d.snap.DocumentWidth,
		DocumentHeight: d.snap.DocumentHeight,
	}
}

func (d *LiveDocument) AddClass(ctx context.Context, el dom.Element, class string) error {
	return d.toggleClass(ctx, el, class, true)
}

func (d *LiveDocument) RemoveClass(ctx context.Context, el dom.Element, class string) error {
	return d.toggleClass(ctx, el, class, false)
}

func (d *LiveDocument) toggleClass(ctx context.Context, el dom.Element, class string, add bool) error {
	d.mu.RLock()
	r := d.record(el)
	var selector string
	if r != nil {
		selector = dom.UniqueSelector(el, lockedIDs{d})
	}
	d.mu.RUnlock()
	if r == nil {
		return fmt.Errorf("toggle class %q: %w", class, ErrElementNotFound)
	}

	script, err := invoke(classFunction, classArgs{Selector: selector, ClassName: class, Add: add})
	if err != nil {
		return err
	}
	var found bool
	if err := d.eval.Evaluate(ctx, script, &found); err != nil {
		return fmt.Errorf("failed to update class %q on %s: %w", class, selector, err)
	}
	if !found {
		return fmt.Errorf("toggle class %q on %s: %w", class, selector, ErrElementNotFound)
	}

	d.mu.Lock()
	mirrorClass(r, class, add)
	d.mu.Unlock()
	return nil
}

// mirrorClass applies the classList change to the snapshot copy of the attribute.
func mirrorClass(r *nodeRecord, class string, add bool) {
	fields := strings.Fields(r.Attrs["class"])
	has := slices.Contains(fields, class)
	switch {
	case add && !has:
		fields = append(fields, class)
	case !add && has:
		fields = slices.DeleteFunc(fields, func(f string) bool { return f == class })
	default:
		return
	}
	if len(fields) == 0 {
		delete(r.Attrs, "class")
		return
	}
	r.Attrs["class"] = strings.Join(fields, " ")
}

// InjectOverlay appends the overlay to the page. Overlays never appear in snapshots.
func (d *LiveDocument) InjectOverlay(ctx context.Context, overlay dom.Overlay) error {
	if overlay.ID == "" {
		return fmt.Errorf("overlay requires an id")
	}
	tag := strings.ToLower(overlay.Tag)
	if tag == "" {
		tag = "div"
	}
	script, err := invoke(overlayFunction, overlayArgs{
		ID:         overlay.ID,
		Tag:        tag,
		Attributes: overlay.Attributes,
		Content:    overlay.Content,
	})
	if err != nil {
		return err
	}
	if err := d.eval.Evaluate(ctx, script, nil); err != nil {
		return fmt.Errorf("failed to inject overlay %q: %w", overlay.ID, err)
	}
	d.logger.Debug("Injected overlay.", zap.String("id", overlay.ID), zap.String("tag", tag))
	return nil
}

func (d *LiveDocument) RemoveOverlay(ctx context.Context, id string) error {
	script, err := invoke(overlayFunction, overlayArgs{ID: id, Remove: true})
	if err != nil {
		return err
	}
	if err := d.eval.Evaluate(ctx, script, nil); err != nil {
		return fmt.Errorf("failed to remove overlay %q: %w", id, err)
	}
	return nil
}
