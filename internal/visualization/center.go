// internal/visualization/center.go
package visualization

import (
	"math"
	"strings"

	"github.com/xkilldash9x/focusmap/internal/dom"
	"github.com/xkilldash9x/focusmap/internal/tabbable"
)

// Area shapes after alias normalization.
const (
	shapeRect    = "rect"
	shapeCircle  = "circle"
	shapePoly    = "poly"
	shapeDefault = "default"
)

var shapeAliases = map[string]string{
	"":          shapeRect,
	"rect":      shapeRect,
	"rectangle": shapeRect,
	"circle":    shapeCircle,
	"circ":      shapeCircle,
	"poly":      shapePoly,
	"polygon":   shapePoly,
	"default":   shapeDefault,
}

// CenterPositionCalculator computes where a tab stop's indicator is anchored.
type CenterPositionCalculator struct {
	utils      *DrawerUtils
	classifier *tabbable.Classifier
}

func NewCenterPositionCalculator(utils *DrawerUtils, classifier *tabbable.Classifier) *CenterPositionCalculator {
	return &CenterPositionCalculator{utils: utils, classifier: classifier}
}

// GetElementCenterPosition returns the container-relative center of el floored to whole
// pixels, or nil when el is nil, outside the document, or an area without a mapped image.
func (c *CenterPositionCalculator) GetElementCenterPosition(el dom.Element) *dom.Point {
	if el == nil {
		return nil
	}
	doc := c.utils.Document()
	if doc.TagName(el) == "area" {
		return c.areaCenter(el)
	}

	rect := doc.BoundingClientRect(el)
	if c.utils.IsOutsideOfDocument(rect) {
		return nil
	}
	return floorPoint(c.boxCenter(el, rect))
}

func (c *CenterPositionCalculator) boxCenter(el dom.Element, rect dom.Rect) dom.Point {
	offset := c.utils.DocumentOffset(el)
	return dom.Point{
		X: c.utils.ContainerLeftOffset(offset) + c.utils.ContainerWidth(offset, rect.Width)/2,
		Y: c.utils.ContainerTopOffset(offset) + c.utils.ContainerHeight(offset, rect.Height)/2,
	}
}

func (c *CenterPositionCalculator) areaCenter(area dom.Element) *dom.Point {
	img := c.classifier.GetMappedImage(c.classifier.GetAncestorMap(area))
	if img == nil {
		return nil
	}
	rect := c.utils.Document().BoundingClientRect(img)
	if c.utils.IsOutsideOfDocument(rect) {
		return nil
	}

	shape, _ := area.Attribute("shape")
	rawCoords, _ := area.Attribute("coords")
	delta, ok := shapeCenter(shape, rawCoords)
	if !ok {
		return floorPoint(c.boxCenter(img, rect))
	}

	offset := c.utils.DocumentOffset(img)
	return floorPoint(dom.Point{
		X: c.utils.ContainerLeftOffset(offset) + delta.X,
		Y: c.utils.ContainerTopOffset(offset) + delta.Y,
	})
}

// shapeCenter returns the center of an area shape relative to its image. It reports false
// when the whole image should be used instead.
func shapeCenter(shape, rawCoords string) (dom.Point, bool) {
	normalized, known := shapeAliases[strings.ToLower(strings.TrimSpace(shape))]
	if !known || normalized == shapeDefault {
		return dom.Point{}, false
	}
	coords, ok := parseCoords(rawCoords)
	if !ok {
		return dom.Point{}, false
	}

	switch normalized {
	case shapeRect:
		if len(coords) < 4 {
			return dom.Point{}, false
		}
		return dom.Point{X: (coords[0] + coords[2]) / 2, Y: (coords[1] + coords[3]) / 2}, true
	case shapeCircle:
		// The radius does not move the center.
		if len(coords) < 2 {
			return dom.Point{}, false
		}
		return dom.Point{X: coords[0], Y: coords[1]}, true
	default:
		pairs := len(coords) / 2
		if pairs == 0 {
			return dom.Point{}, false
		}
		var sum dom.Point
		for i := 0; i < pairs; i++ {
			sum.X += coords[2*i]
			sum.Y += coords[2*i+1]
		}
		return dom.Point{X: sum.X / float64(pairs), Y: sum.Y / float64(pairs)}, true
	}
}

// parseCoords splits an area coords list on commas and whitespace. Any token that is not an
// integer invalidates the whole list.
func parseCoords(raw string) ([]float64, bool) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f'
	})
	if len(fields) == 0 {
		return nil, false
	}
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		n, ok := dom.ParseInteger(f)
		if !ok {
			return nil, false
		}
		out = append(out, float64(n))
	}
	return out, true
}

func floorPoint(p dom.Point) *dom.Point {
	return &dom.Point{X: math.Floor(p.X), Y: math.Floor(p.Y)}
}
