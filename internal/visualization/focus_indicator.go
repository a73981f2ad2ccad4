// internal/visualization/focus_indicator.go
package visualization

import (
	"strconv"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/focusmap/internal/dom"
)

// FocusIndicator is the set of SVG elements drawn for one tab stop. Any part may be nil.
type FocusIndicator struct {
	Circle        *etree.Element
	Line          *etree.Element
	TabIndexLabel *etree.Element
	FailureLabel  *etree.Element
}

// Elements returns the non-nil parts in paint order.
func (f *FocusIndicator) Elements() []*etree.Element {
	if f == nil {
		return nil
	}
	var out []*etree.Element
	for _, el := range []*etree.Element{f.Line, f.Circle, f.TabIndexLabel, f.FailureLabel} {
		if el != nil {
			out = append(out, el)
		}
	}
	return out
}

// TabbedItem is one entry of the tab order visualization.
type TabbedItem struct {
	Element  dom.Element
	Selector string
	// TabOrder is 0 for items that were never reached.
	TabOrder  int
	IsFailure bool
	ItemType  ItemType

	shouldRedraw bool
	indicator    *FocusIndicator
}

// FocusIndicatorCreator turns tabbed items into focus indicators.
type FocusIndicatorCreator struct {
	centers *CenterPositionCalculator
	shapes  *ShapeFactory
	filter  *FilterFactory
}

func NewFocusIndicatorCreator(centers *CenterPositionCalculator, shapes *ShapeFactory, filter *FilterFactory) *FocusIndicatorCreator {
	return &FocusIndicatorCreator{centers: centers, shapes: shapes, filter: filter}
}

// CreateFocusIndicator builds the indicator of a reached tab stop. The last item is the
// focused one: it gets the focused styling, no label, and a line from its predecessor
// whenever the two are consecutive. Earlier items get a line only when solid lines are on.
// It returns nil when the item has no position.
func (c *FocusIndicatorCreator) CreateFocusIndicator(item, prev *TabbedItem, isLast bool, formatter Formatter[SVGConfiguration]) *FocusIndicator {
	if item == nil || item.Element == nil {
		return nil
	}
	center := c.centers.GetElementCenterPosition(item.Element)
	if center == nil {
		return nil
	}
	config := formatter.DrawerConfiguration(item.Element)

	if isLast {
		return &FocusIndicator{
			Circle: c.shapes.CreateCircle(*center, config.FocusedCircle),
			Line:   c.createLine(item, prev, *center, config.FocusedLine, config.FocusedCircle.Radius(), true),
		}
	}

	indicator := &FocusIndicator{
		Circle: c.shapes.CreateCircle(*center, config.Circle),
		Line:   c.createLine(item, prev, *center, config.Line, config.Circle.Radius(), config.Line.ShowSolidFocusLine),
	}
	if config.TabIndexLabel.ShowTabIndexedLabel {
		indicator.TabIndexLabel = c.shapes.CreateTabIndexLabel(*center, config.TabIndexLabel, strconv.Itoa(item.TabOrder))
	}
	return indicator
}

func (c *FocusIndicatorCreator) createLine(item, prev *TabbedItem, center dom.Point, config LineConfiguration, radius float64, enabled bool) *etree.Element {
	if !enabled || breaksGraph(item, prev) {
		return nil
	}
	prevCenter := c.centers.GetElementCenterPosition(prev.Element)
	if prevCenter == nil {
		return nil
	}
	return c.shapes.CreateLine(*prevCenter, center, config, c.filter.FilterID(), radius)
}

// CreateFocusIndicatorForFailure builds the indicator of a missing or errored tab stop.
func (c *FocusIndicatorCreator) CreateFocusIndicatorForFailure(item *TabbedItem, formatter Formatter[SVGConfiguration]) *FocusIndicator {
	if item == nil || item.Element == nil {
		return nil
	}
	center := c.centers.GetElementCenterPosition(item.Element)
	if center == nil {
		return nil
	}
	config := formatter.DrawerConfiguration(item.Element)

	circle := config.MissingCircle
	text := "X"
	if item.ItemType == ItemErrored {
		circle = config.ErroredCircle
		text = ""
		if item.TabOrder > 0 {
			text = strconv.Itoa(item.TabOrder)
		}
	}
	return &FocusIndicator{
		Circle:        c.shapes.CreateCircle(*center, circle),
		TabIndexLabel: c.shapes.CreateTabIndexLabel(*center, config.ErroredTabIndexLabel, text),
		FailureLabel:  c.shapes.CreateFailureLabel(*center, config.FailureBox),
	}
}

// breaksGraph reports whether item does not directly follow prev in tab order.
func breaksGraph(item, prev *TabbedItem) bool {
	return prev == nil || prev.Element == nil || prev.TabOrder != item.TabOrder-1
}
