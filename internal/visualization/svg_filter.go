// internal/visualization/svg_filter.go
package visualization

import (
	"strconv"

	"github.com/beevik/etree"
)

const filterIDSuffix = "solid-shadow"

// FilterFactory builds the solid white halo that keeps lines readable over any page.
type FilterFactory struct {
	prefix string
}

func NewFilterFactory(prefix string) *FilterFactory {
	return &FilterFactory{prefix: prefix}
}

func (f *FilterFactory) FilterID() string {
	return f.prefix + "-" + filterIDSuffix
}

type offsetParams struct {
	dx, dy int
	result string
}

// CreateFilter dilates the source graphic, shifts the dilation one pixel in each direction,
// floods the merged shadow white and draws the source on top.
func (f *FilterFactory) CreateFilter() *etree.Element {
	filter := newFe("filter").
		param("id", f.FilterID()).
		param("filterUnits", "userSpaceOnUse").
		build()

	filter.AddChild(newFe("feMorphology").
		param("in", "SourceGraphic").
		param("operator", "dilate").
		param("radius", "1").
		param("result", "expand").
		build())

	offsets := []offsetParams{
		{dx: 1, dy: 0, result: "shadow_1"},
		{dx: -1, dy: 0, result: "shadow_2"},
		{dx: 0, dy: 1, result: "shadow_3"},
		{dx: 0, dy: -1, result: "shadow_4"},
	}
	mergeIns := make([]string, 0, len(offsets)+1)
	for _, o := range offsets {
		filter.AddChild(newFe("feOffset").
			param("in", "expand").
			param("dx", strconv.Itoa(o.dx)).
			param("dy", strconv.Itoa(o.dy)).
			param("result", o.result).
			build())
		mergeIns = append(mergeIns, o.result)
	}
	mergeIns = append(mergeIns, "expand")

	filter.AddChild(mergeElement(mergeIns, "shadow"))
	filter.AddChild(newFe("feFlood").param("flood-color", "white").build())
	filter.AddChild(newFe("feComposite").
		param("operator", "in").
		param("result", "shadow").
		param("in2", "shadow").
		build())
	filter.AddChild(mergeElement([]string{"shadow", "SourceGraphic"}, ""))
	return filter
}

func mergeElement(ins []string, result string) *etree.Element {
	b := newFe("feMerge").param("result", result)
	for _, in := range ins {
		b.child(newFe("feMergeNode").param("in", in).build())
	}
	return b.build()
}

// feBuilder sets attributes in call order and skips empty values.
type feBuilder struct {
	tag      string
	params   [][2]string
	children []*etree.Element
}

func newFe(tag string) *feBuilder {
	return &feBuilder{tag: tag}
}

func (b *feBuilder) param(key, value string) *feBuilder {
	b.params = append(b.params, [2]string{key, value})
	return b
}

func (b *feBuilder) child(el *etree.Element) *feBuilder {
	b.children = append(b.children, el)
	return b
}

func (b *feBuilder) build() *etree.Element {
	el := etree.NewElement(b.tag)
	for _, p := range b.params {
		if p[1] != "" {
			el.CreateAttr(p[0], p[1])
		}
	}
	for _, c := range b.children {
		el.AddChild(c)
	}
	return el
}
