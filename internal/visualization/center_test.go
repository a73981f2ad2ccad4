// internal/visualization/center_test.go
package visualization_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/focusmap/internal/dom"
	"github.com/xkilldash9x/focusmap/internal/dom/htmldoc"
	"github.com/xkilldash9x/focusmap/internal/tabbable"
	"github.com/xkilldash9x/focusmap/internal/visualization"
)

func parseDoc(t *testing.T, src string, opts ...htmldoc.Option) *htmldoc.Document {
	t.Helper()
	opts = append([]htmldoc.Option{htmldoc.WithLogger(zaptest.NewLogger(t))}, opts...)
	doc, err := htmldoc.ParseString(src, opts...)
	require.NoError(t, err)
	return doc
}

func newCalculator(doc *htmldoc.Document) *visualization.CenterPositionCalculator {
	return visualization.NewCenterPositionCalculator(visualization.NewDrawerUtils(doc), tabbable.New(doc))
}

// mappedImage places a 145x126 image at document offset (10,10) with one area.
func mappedImage(bodyStyle, areaAttrs string) string {
	return fmt.Sprintf(`<html><body style="%s"><img id="img" src="planets.gif" width="145" height="126" usemap="#planetmap"><map name="planetmap"><area id="area" %s href="sun.htm"></map></body></html>`, bodyStyle, areaAttrs)
}

func TestAreaCenterPosition(t *testing.T) {
	tests := []struct {
		name  string
		attrs string
		want  dom.Point
	}{
		{"rect", `shape="rect" coords="0,0,82,126"`, dom.Point{X: 51, Y: 73}},
		{"circle ignores radius", `shape="circle" coords="90,58,3"`, dom.Point{X: 100, Y: 68}},
		{"polygon centroid", `shape="poly" coords="10,20,80,60,0,40"`, dom.Point{X: 40, Y: 50}},
		{"missing shape is rect", `coords="0,0,82,126"`, dom.Point{X: 51, Y: 73}},
		{"aliases are case insensitive", `shape="CIRC" coords="90,58,3"`, dom.Point{X: 100, Y: 68}},
		{"rectangle alias", `shape="rectangle" coords="0,0,82,126"`, dom.Point{X: 51, Y: 73}},
		{"polygon alias with spaces", `shape="polygon" coords="10 20, 80 60, 0 40"`, dom.Point{X: 40, Y: 50}},
		{"dangling polygon coordinate", `shape="poly" coords="10,20,80,60,5"`, dom.Point{X: 55, Y: 50}},
		{"fractional centers floor", `shape="rect" coords="0,0,5,5"`, dom.Point{X: 12, Y: 12}},
		{"default covers the image", `shape="default"`, dom.Point{X: 82, Y: 73}},
		{"unknown shape", `shape="star" coords="0,0,82,126"`, dom.Point{X: 82, Y: 73}},
		{"invalid coords", `shape="rect" coords="a,b,c,d"`, dom.Point{X: 82, Y: 73}},
		{"too few rect coords", `shape="rect" coords="0,0,82"`, dom.Point{X: 82, Y: 73}},
		{"too few circle coords", `shape="circle" coords="90"`, dom.Point{X: 82, Y: 73}},
		{"missing coords", `shape="poly"`, dom.Point{X: 82, Y: 73}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseDoc(t, mappedImage("margin:10px", tt.attrs))
			img := doc.QuerySelector("#img")
			require.Equal(t, dom.Rect{X: 10, Y: 10, Width: 145, Height: 126}, doc.BoundingClientRect(img))

			got := newCalculator(doc).GetElementCenterPosition(doc.QuerySelector("#area"))
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestAreaCenterPositionRelativeToPositionedBody(t *testing.T) {
	doc := parseDoc(t, mappedImage("margin:10px;position:relative", `shape="rect" coords="0,0,82,126"`))
	got := newCalculator(doc).GetElementCenterPosition(doc.QuerySelector("#area"))
	require.NotNil(t, got)
	assert.Equal(t, dom.Point{X: 41, Y: 63}, *got)
}

func TestAreaWithoutMappedImageHasNoCenter(t *testing.T) {
	tests := map[string]string{
		"no map":       `<body><area id="area" shape="rect" coords="0,0,5,5" href="x"></body>`,
		"unused map":   `<body><map name="m"><area id="area" shape="rect" coords="0,0,5,5" href="x"></map></body>`,
		"hidden image": `<body><img usemap="#m" width="5" height="5" style="display:none"><map name="m"><area id="area" href="x"></map></body>`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			doc := parseDoc(t, src)
			assert.Nil(t, newCalculator(doc).GetElementCenterPosition(doc.QuerySelector("#area")))
		})
	}
}

func TestElementCenterPosition(t *testing.T) {
	tests := []struct {
		name string
		body string
		opts []htmldoc.Option
		want *dom.Point
	}{
		{
			name: "block",
			body: `<div id="target" style="width:100px;height:50px"></div>`,
			want: &dom.Point{X: 50, Y: 25},
		},
		{
			name: "scroll does not move document coordinates",
			body: `<div style="height:2000px"></div><div id="target" style="width:100px;height:50px"></div>`,
			opts: []htmldoc.Option{htmldoc.WithScroll(0, 300)},
			want: &dom.Point{X: 50, Y: 2025},
		},
		{
			name: "fractional center floors",
			body: `<div id="target" style="width:5px;height:5px"></div>`,
			want: &dom.Point{X: 2, Y: 2},
		},
		{
			name: "clipped at the left edge",
			body: `<div id="target" style="position:absolute;left:-50px;top:0;width:100px;height:10px"></div>`,
			want: &dom.Point{X: 25, Y: 5},
		},
		{
			name: "outside the document",
			body: `<div id="target" style="position:absolute;left:-500px;top:0;width:100px;height:10px"></div>`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseDoc(t, `<html><body style="margin:0">`+tt.body+`</body></html>`, tt.opts...)
			got := newCalculator(doc).GetElementCenterPosition(doc.QuerySelector("#target"))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCenterOfNilElement(t *testing.T) {
	doc := parseDoc(t, `<body></body>`)
	assert.Nil(t, newCalculator(doc).GetElementCenterPosition(nil))
}

func TestDrawerUtils(t *testing.T) {
	doc := parseDoc(t, `<html><body style="margin:0"></body></html>`, htmldoc.WithViewport(800, 600))
	utils := visualization.NewDrawerUtils(doc)

	assert.Equal(t, dom.Point{}, utils.ContainerOrigin())
	w, h := utils.DocumentSize()
	assert.Equal(t, 800.0, w)
	assert.Equal(t, 600.0, h)

	assert.Equal(t, 10.0, utils.ContainerWidth(dom.Point{X: 790}, 100))
	assert.Equal(t, 0.0, utils.ContainerWidth(dom.Point{X: 900}, 100))
	assert.Equal(t, 30.0, utils.ContainerHeight(dom.Point{Y: -70}, 100))
	assert.Equal(t, 0.0, utils.ContainerLeftOffset(dom.Point{X: -5}))

	assert.True(t, utils.IsOutsideOfDocument(dom.Rect{X: -20, Y: 0, Width: 10, Height: 10}))
	assert.True(t, utils.IsOutsideOfDocument(dom.Rect{X: 0, Y: 601, Width: 10, Height: 10}))
	assert.False(t, utils.IsOutsideOfDocument(dom.Rect{X: -5, Y: 0, Width: 10, Height: 10}))
}
