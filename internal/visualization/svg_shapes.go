// internal/visualization/svg_shapes.go
package visualization

import (
	"math"
	"strconv"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/focusmap/internal/dom"
)

// SVG class names shared with the overlay stylesheet and with callers that inspect the overlay.
const (
	FocusIndicatorClass     = "insights-svg-focus-indicator"
	FocusIndicatorTextClass = "insights-svg-focus-indicator-text"
	LineClass               = "insights-svg-line"
	FailureLabelClass       = "insights-highlight-text failure-label"
)

// lineBuffer keeps line ends clear of the circle stroke.
const lineBuffer = 4

// ShapeFactory builds the SVG elements of a focus indicator.
type ShapeFactory struct{}

func NewShapeFactory() *ShapeFactory {
	return &ShapeFactory{}
}

// CreateLine joins two centers, trimmed by circleRadius plus a small buffer at both ends.
func (f *ShapeFactory) CreateLine(source, destination dom.Point, config LineConfiguration, filterID string, circleRadius float64) *etree.Element {
	line := etree.NewElement("line")
	line.CreateAttr("class", LineClass)

	from := adjustedPoint(source, destination, circleRadius+lineBuffer)
	to := adjustedPoint(destination, source, circleRadius+lineBuffer)
	line.CreateAttr("x1", formatNumber(from.X))
	line.CreateAttr("y1", formatNumber(from.Y))
	line.CreateAttr("x2", formatNumber(to.X))
	line.CreateAttr("y2", formatNumber(to.Y))

	applyStroke(line, config.StrokeConfiguration)
	line.CreateAttr("filter", "url(#"+filterID+")")
	return line
}

func (f *ShapeFactory) CreateCircle(center dom.Point, config CircleConfiguration) *etree.Element {
	circle := etree.NewElement("ellipse")
	circle.CreateAttr("class", FocusIndicatorClass)
	circle.CreateAttr("cx", formatNumber(center.X))
	circle.CreateAttr("cy", formatNumber(center.Y))
	circle.CreateAttr("rx", config.EllipseRx)
	circle.CreateAttr("ry", config.EllipseRy)
	circle.CreateAttr("fill", config.Fill)
	applyStroke(circle, config.StrokeConfiguration)
	return circle
}

// CreateTabIndexLabel places text just below the center so it reads as centered in the circle.
func (f *ShapeFactory) CreateTabIndexLabel(center dom.Point, config TextConfiguration, text string) *etree.Element {
	label := etree.NewElement("text")
	label.CreateAttr("class", FocusIndicatorTextClass)
	label.CreateAttr("x", formatNumber(center.X))
	label.CreateAttr("y", formatNumber(center.Y+5))
	label.CreateAttr("fill", config.FontColor)
	label.CreateAttr("text-anchor", config.TextAnchor)
	label.SetText(text)
	return label
}

// CreateFailureLabel builds the badge drawn at the upper right of a failed tab stop.
func (f *ShapeFactory) CreateFailureLabel(center dom.Point, config FailureBoxConfig) *etree.Element {
	group := etree.NewElement("g")

	box := group.CreateElement("rect")
	box.CreateAttr("class", FailureLabelClass)
	box.CreateAttr("x", formatNumber(center.X+10))
	box.CreateAttr("y", formatNumber(center.Y-20))
	box.CreateAttr("fill", config.Background)
	setOptional(box, "width", config.BoxWidth)
	setOptional(box, "height", config.BoxWidth)
	setOptional(box, "rx", config.CornerRadius)

	text := group.CreateElement("text")
	text.CreateAttr("class", FailureLabelClass)
	text.CreateAttr("x", formatNumber(center.X+13.5))
	text.CreateAttr("y", formatNumber(center.Y-12))
	text.CreateAttr("fill", config.FontColor)
	setOptional(text, "font-size", config.FontSize)
	setOptional(text, "font-weight", config.FontWeight)
	text.SetText(config.Text)

	return group
}

func applyStroke(el *etree.Element, config StrokeConfiguration) {
	el.CreateAttr("stroke", config.Stroke)
	el.CreateAttr("stroke-width", config.StrokeWidth)
	if config.StrokeDasharray != "" {
		el.CreateAttr("stroke-dasharray", config.StrokeDasharray)
	} else {
		el.RemoveAttr("stroke-dasharray")
	}
}

func setOptional(el *etree.Element, key, value string) {
	if value != "" {
		el.CreateAttr(key, value)
	}
}

// adjustedPoint moves source towards destination by distance.
func adjustedPoint(source, destination dom.Point, distance float64) dom.Point {
	angle := math.Atan2(destination.Y-source.Y, destination.X-source.X)
	return dom.Point{
		X: source.X + distance*math.Cos(angle),
		Y: source.Y + distance*math.Sin(angle),
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
