// internal/visualization/formatter.go
package visualization

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/focusmap/internal/dom"
)

// Formatter yields the styling constants one visualization kind draws with.
type Formatter[C any] interface {
	DrawerConfiguration(el dom.Element) C
	// DialogRenderer returns nil for kinds without a detail view.
	DialogRenderer() DialogRenderer
}

// DialogRenderer presents the details of a single result.
type DialogRenderer interface {
	Render(ctx context.Context, result ElementResult, flags FeatureFlags)
}

// ClassConfiguration decorates a single element with a class backed by an injected stylesheet.
type ClassConfiguration struct {
	ClassName  string
	Stylesheet string
}

// StyleOverlayID is the id of the stylesheet overlay backing the class.
func (c ClassConfiguration) StyleOverlayID() string {
	return c.ClassName + "-style"
}

// StrokeConfiguration is shared by every stroked SVG shape. An empty dasharray draws a solid stroke.
type StrokeConfiguration struct {
	Stroke          string
	StrokeWidth     string
	StrokeDasharray string
}

type CircleConfiguration struct {
	StrokeConfiguration
	Fill      string
	EllipseRx string
	EllipseRy string
}

// Radius is the horizontal radius as a number, 0 when it does not parse.
func (c CircleConfiguration) Radius() float64 {
	r, _ := dom.ParseFloatPrefix(c.EllipseRx)
	return r
}

type LineConfiguration struct {
	StrokeConfiguration
	ShowSolidFocusLine bool
}

type TextConfiguration struct {
	FontColor           string
	TextAnchor          string
	ShowTabIndexedLabel bool
}

// FailureBoxConfig styles the badge next to a failed tab stop. Empty optional fields are omitted.
type FailureBoxConfig struct {
	Background   string
	FontColor    string
	Text         string
	BoxWidth     string
	FontSize     string
	FontWeight   string
	CornerRadius string
}

// SVGConfiguration styles the tab order visualization.
type SVGConfiguration struct {
	Circle               CircleConfiguration
	FocusedCircle        CircleConfiguration
	ErroredCircle        CircleConfiguration
	MissingCircle        CircleConfiguration
	Line                 LineConfiguration
	FocusedLine          LineConfiguration
	TabIndexLabel        TextConfiguration
	ErroredTabIndexLabel TextConfiguration
	FailureBox           FailureBoxConfig
}

// Class names of the simple visualization kinds.
const (
	BodyHighlightClass  = "insights-highlight-body"
	GreyscaleClass      = "insights-grey-scale-container"
	PseudoSelectorClass = "insights-pseudo-selector-style-container"
)

// classFormatter serves a fixed class configuration.
type classFormatter struct {
	config ClassConfiguration
}

func (f classFormatter) DrawerConfiguration(dom.Element) ClassConfiguration { return f.config }

func (f classFormatter) DialogRenderer() DialogRenderer { return nil }

// NewClassFormatter returns a formatter that always yields config.
func NewClassFormatter(config ClassConfiguration) Formatter[ClassConfiguration] {
	return classFormatter{config: config}
}

func NewBodyFormatter() Formatter[ClassConfiguration] {
	return NewClassFormatter(ClassConfiguration{
		ClassName:  BodyHighlightClass,
		Stylesheet: "." + BodyHighlightClass + " { outline: 5px dashed #C71585 !important; outline-offset: -5px !important; }",
	})
}

func NewColorFormatter() Formatter[ClassConfiguration] {
	return NewClassFormatter(ClassConfiguration{
		ClassName:  GreyscaleClass,
		Stylesheet: "." + GreyscaleClass + " { filter: grayscale(100%) !important; }",
	})
}

func NewPseudoSelectorFormatter() Formatter[ClassConfiguration] {
	return NewClassFormatter(ClassConfiguration{
		ClassName: PseudoSelectorClass,
		Stylesheet: "." + PseudoSelectorClass + " *::before, ." + PseudoSelectorClass + " *::after" +
			" { outline: 2px dashed #C71585 !important; color: #C71585 !important; }",
	})
}

// DefaultSVGConfiguration returns the tab stop styling with solid lines and labels switched on.
func DefaultSVGConfiguration() SVGConfiguration {
	base := CircleConfiguration{
		StrokeConfiguration: StrokeConfiguration{Stroke: "#777777", StrokeWidth: "2"},
		Fill:                "#ffffff",
		EllipseRx:           "16",
		EllipseRy:           "16",
	}
	focused := base
	focused.Stroke = "#C71585"
	errored := base
	errored.Stroke = "#E81123"
	errored.StrokeWidth = "3"
	missing := errored
	missing.StrokeDasharray = "2 2"

	return SVGConfiguration{
		Circle:        base,
		FocusedCircle: focused,
		ErroredCircle: errored,
		MissingCircle: missing,
		Line: LineConfiguration{
			StrokeConfiguration: StrokeConfiguration{Stroke: "#777777", StrokeWidth: "2"},
			ShowSolidFocusLine:  true,
		},
		FocusedLine: LineConfiguration{
			StrokeConfiguration: StrokeConfiguration{Stroke: "#C71585", StrokeWidth: "3", StrokeDasharray: "7 3"},
		},
		TabIndexLabel:        TextConfiguration{FontColor: "#000000", TextAnchor: "middle", ShowTabIndexedLabel: true},
		ErroredTabIndexLabel: TextConfiguration{FontColor: "#E81123", TextAnchor: "middle", ShowTabIndexedLabel: true},
		FailureBox: FailureBoxConfig{
			Background:   "#E81123",
			FontColor:    "#FFFFFF",
			Text:         "!",
			BoxWidth:     "8px",
			FontSize:     "10",
			FontWeight:   "400",
			CornerRadius: "4",
		},
	}
}

// TabStopsFormatter styles the tab order visualization and reports failures through a dialog renderer.
type TabStopsFormatter struct {
	config   SVGConfiguration
	renderer DialogRenderer
}

func NewTabStopsFormatter(config SVGConfiguration, renderer DialogRenderer) *TabStopsFormatter {
	return &TabStopsFormatter{config: config, renderer: renderer}
}

func (f *TabStopsFormatter) DrawerConfiguration(dom.Element) SVGConfiguration { return f.config }

func (f *TabStopsFormatter) DialogRenderer() DialogRenderer { return f.renderer }

// LoggingDialogRenderer reports failure details to the log instead of an interactive dialog.
type LoggingDialogRenderer struct {
	logger *zap.Logger
}

func NewLoggingDialogRenderer(logger *zap.Logger) *LoggingDialogRenderer {
	return &LoggingDialogRenderer{logger: logger.Named("dialog")}
}

func (r *LoggingDialogRenderer) Render(_ context.Context, result ElementResult, flags FeatureFlags) {
	fields := []zap.Field{
		zap.Strings("target", result.Target),
		zap.Stringer("item_type", result.ItemType),
	}
	if result.TabOrder > 0 {
		fields = append(fields, zap.Int("tab_order", result.TabOrder))
	}
	if len(flags) > 0 {
		fields = append(fields, zap.Any("feature_flags", flags))
	}
	r.logger.Warn("Tab stop failure.", fields...)
}
