// internal/visualization/svg_drawer.go
package visualization

import (
	"context"
	"fmt"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/xkilldash9x/focusmap/internal/dom"
	"github.com/xkilldash9x/focusmap/internal/tabbable"
)

const (
	// TabStopsContainerID identifies the overlay holding the tab order SVG.
	TabStopsContainerID  = "insights-tab-stops"
	tabStopsContainerCSS = "position: absolute; top: 0; left: 0; pointer-events: none; z-index: 2147483647"
	svgNamespace         = "http://www.w3.org/2000/svg"
)

// SVGDrawer paints the tab order as circles joined by lines on an SVG overlay.
//
// Items are kept between updates. A new generation of results only recomputes the
// indicators from the first changed position on, plus the last item, whose styling
// depends on it being last.
type SVGDrawer struct {
	doc       dom.Document
	utils     *DrawerUtils
	formatter Formatter[SVGConfiguration]
	creator   *FocusIndicatorCreator
	filter    *FilterFactory
	logger    *zap.Logger

	items   []*TabbedItem
	flags   FeatureFlags
	drawn   bool
	enabled bool
}

func NewSVGDrawer(doc dom.Document, formatter Formatter[SVGConfiguration], classifier *tabbable.Classifier, logger *zap.Logger) *SVGDrawer {
	utils := NewDrawerUtils(doc)
	filter := NewFilterFactory(TabStopsContainerID)
	return &SVGDrawer{
		doc:       doc,
		utils:     utils,
		formatter: formatter,
		creator:   NewFocusIndicatorCreator(NewCenterPositionCalculator(utils, classifier), NewShapeFactory(), filter),
		filter:    filter,
		logger:    logger.Named("svg_drawer"),
	}
}

func (d *SVGDrawer) Initialize(ctx context.Context, data InitData) error {
	if err := d.EraseLayout(ctx); err != nil {
		return err
	}
	d.items = nil
	d.flags = data.FeatureFlags
	d.UpdateTabbedElements(data.Data)
	return nil
}

// Update merges a newer generation of results without erasing, redrawing when enabled.
func (d *SVGDrawer) Update(ctx context.Context, data InitData) error {
	d.flags = data.FeatureFlags
	d.UpdateTabbedElements(data.Data)
	if !d.enabled {
		return nil
	}
	return d.render(ctx)
}

// UpdateTabbedElements replaces the item list with results. Items before the first position
// whose selector, tab order or failure state changed keep their indicators.
func (d *SVGDrawer) UpdateTabbedElements(results []ElementResult) {
	previousLast := len(d.items) - 1
	newLast := len(results) - 1
	changed := false

	for pos, result := range results {
		var old *TabbedItem
		if pos < len(d.items) {
			old = d.items[pos]
		}
		selector := lastFragment(result.Target)

		if changed || pos == previousLast || pos == newLast || !sameItem(old, selector, result) {
			changed = true
			item := &TabbedItem{
				Element:      d.resolve(selector),
				Selector:     selector,
				TabOrder:     result.TabOrder,
				IsFailure:    result.IsFailure,
				ItemType:     result.ItemType,
				shouldRedraw: true,
			}
			if old != nil {
				d.items[pos] = item
			} else {
				d.items = append(d.items, item)
			}
			continue
		}
		old.shouldRedraw = false
	}
	if len(results) < len(d.items) {
		clear(d.items[len(results):])
		d.items = d.items[:len(results)]
	}
}

func sameItem(old *TabbedItem, selector string, result ElementResult) bool {
	return old != nil &&
		old.Selector == selector &&
		old.TabOrder == result.TabOrder &&
		old.IsFailure == result.IsFailure &&
		old.ItemType == result.ItemType
}

func (d *SVGDrawer) resolve(selector string) dom.Element {
	if selector == "" {
		return nil
	}
	el := d.doc.QuerySelector(selector)
	if el == nil {
		d.logger.Debug("Tab stop target did not resolve.", zap.String("selector", selector))
	}
	return el
}

func (d *SVGDrawer) DrawLayout(ctx context.Context) error {
	if d.enabled {
		return nil
	}
	if err := d.render(ctx); err != nil {
		return err
	}
	d.enabled = true
	return nil
}

func (d *SVGDrawer) EraseLayout(ctx context.Context) error {
	if d.drawn {
		if err := d.doc.RemoveOverlay(ctx, TabStopsContainerID); err != nil {
			return fmt.Errorf("failed to remove tab stops overlay: %w", err)
		}
		d.drawn = false
	}
	for _, item := range d.items {
		item.shouldRedraw = true
	}
	d.enabled = false
	return nil
}

func (d *SVGDrawer) IsOverlayEnabled() bool {
	return d.enabled
}

// Items returns a snapshot of the current items.
func (d *SVGDrawer) Items() []TabbedItem {
	out := make([]TabbedItem, len(d.items))
	for i, item := range d.items {
		out[i] = *item
	}
	return out
}

func (d *SVGDrawer) render(ctx context.Context) error {
	// The previous overlay is measured as page content, so it goes before anything is measured.
	if d.drawn {
		if err := d.doc.RemoveOverlay(ctx, TabStopsContainerID); err != nil {
			return fmt.Errorf("failed to remove tab stops overlay: %w", err)
		}
		d.drawn = false
	}

	d.updateIndicators(ctx)

	markup, err := d.buildSVG()
	if err != nil {
		return err
	}
	err = d.doc.InjectOverlay(ctx, dom.Overlay{
		ID:  TabStopsContainerID,
		Tag: "div",
		Attributes: map[string]string{
			"class": TabStopsContainerID,
			"style": tabStopsContainerCSS,
		},
		Content: markup,
	})
	if err != nil {
		return fmt.Errorf("failed to inject tab stops overlay: %w", err)
	}
	d.drawn = true
	d.logger.Debug("Drew tab stops.", zap.Int("items", len(d.items)))
	return nil
}

func (d *SVGDrawer) updateIndicators(ctx context.Context) {
	var tabOrdered, failures []*TabbedItem
	for _, item := range d.items {
		if item.TabOrder > 0 {
			tabOrdered = append(tabOrdered, item)
		}
		if item.IsFailure {
			failures = append(failures, item)
		}
	}

	for i, item := range tabOrdered {
		if !item.shouldRedraw {
			continue
		}
		var prev *TabbedItem
		if i > 0 {
			prev = tabOrdered[i-1]
		}
		item.indicator = d.creator.CreateFocusIndicator(item, prev, i == len(tabOrdered)-1, d.formatter)
	}

	renderer := d.formatter.DialogRenderer()
	for _, item := range failures {
		if !item.shouldRedraw {
			continue
		}
		failure := d.creator.CreateFocusIndicatorForFailure(item, d.formatter)
		if failure != nil {
			// An errored stop that was reached keeps the line leading into it.
			if item.indicator != nil {
				failure.Line = item.indicator.Line
			}
			item.indicator = failure
		}
		if renderer != nil {
			renderer.Render(ctx, ElementResult{
				Target:    []string{item.Selector},
				TabOrder:  item.TabOrder,
				IsFailure: true,
				ItemType:  item.ItemType,
			}, d.flags)
		}
	}

	for _, item := range d.items {
		item.shouldRedraw = false
	}
}

func (d *SVGDrawer) buildSVG() (string, error) {
	width, height := d.utils.DocumentSize()

	svg := etree.NewElement("svg")
	svg.CreateAttr("xmlns", svgNamespace)
	svg.CreateAttr("width", formatNumber(width)+"px")
	svg.CreateAttr("height", formatNumber(height)+"px")
	svg.CreateElement("defs").AddChild(d.filter.CreateFilter())

	for _, item := range d.items {
		for _, el := range item.indicator.Elements() {
			svg.AddChild(el.Copy())
		}
	}

	doc := etree.NewDocument()
	doc.SetRoot(svg)
	markup, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("failed to serialize tab stops svg: %w", err)
	}
	return markup, nil
}
