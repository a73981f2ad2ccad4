// internal/visualization/class_drawer.go
package visualization

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/focusmap/internal/dom"
)

// ClassDrawer decorates a single resolved element with a class and injects the stylesheet
// that gives the class its look.
type ClassDrawer struct {
	doc       dom.Document
	formatter Formatter[ClassConfiguration]
	resolve   TargetResolver
	logger    *zap.Logger

	target   dom.Element
	selector string

	// What DrawLayout actually applied, so erase undoes exactly that.
	styleInjected bool
	classAdded    dom.Element
	appliedConfig ClassConfiguration
	enabled       bool
}

func NewClassDrawer(doc dom.Document, formatter Formatter[ClassConfiguration], resolve TargetResolver, logger *zap.Logger) *ClassDrawer {
	return &ClassDrawer{
		doc:       doc,
		formatter: formatter,
		resolve:   resolve,
		logger:    logger,
	}
}

// NewBodyDrawer highlights the element named by the first fragment of the first result.
func NewBodyDrawer(doc dom.Document, logger *zap.Logger) *ClassDrawer {
	return NewClassDrawer(doc, NewBodyFormatter(), FirstTarget, logger.Named("body_drawer"))
}

// NewColorDrawer greyscales the element named by the first fragment of the first result.
func NewColorDrawer(doc dom.Document, logger *zap.Logger) *ClassDrawer {
	return NewClassDrawer(doc, NewColorFormatter(), FirstTarget, logger.Named("color_drawer"))
}

// NewPseudoSelectorDrawer outlines generated content under the element named by the
// last fragment of the first result.
func NewPseudoSelectorDrawer(doc dom.Document, logger *zap.Logger) *ClassDrawer {
	return NewClassDrawer(doc, NewPseudoSelectorFormatter(), LastTarget, logger.Named("pseudo_selector_drawer"))
}

func (d *ClassDrawer) Initialize(ctx context.Context, data InitData) error {
	if err := d.EraseLayout(ctx); err != nil {
		return err
	}
	d.target = nil
	d.selector = d.resolve(data.Data)
	if d.selector == "" {
		return nil
	}
	d.target = d.doc.QuerySelector(d.selector)
	if d.target == nil {
		d.logger.Debug("Target did not resolve, nothing to draw.", zap.String("selector", d.selector))
	}
	return nil
}

func (d *ClassDrawer) DrawLayout(ctx context.Context) error {
	if d.enabled || d.target == nil {
		return nil
	}
	config := d.formatter.DrawerConfiguration(d.target)
	d.appliedConfig = config

	if config.Stylesheet != "" {
		err := d.doc.InjectOverlay(ctx, dom.Overlay{
			ID:      config.StyleOverlayID(),
			Tag:     "style",
			Content: config.Stylesheet,
		})
		if err != nil {
			return fmt.Errorf("failed to inject %s stylesheet: %w", config.ClassName, err)
		}
		d.styleInjected = true
	}

	// A class the page already carries belongs to the page; erase must leave it.
	if !hasClass(d.target, config.ClassName) {
		if err := d.doc.AddClass(ctx, d.target, config.ClassName); err != nil {
			if eraseErr := d.undo(ctx); eraseErr != nil {
				d.logger.Warn("Failed to roll back a partial draw.", zap.Error(eraseErr))
			}
			return fmt.Errorf("failed to add class %s: %w", config.ClassName, err)
		}
		d.classAdded = d.target
	}
	d.enabled = true
	d.logger.Debug("Drew layout.", zap.String("selector", d.selector), zap.String("class", config.ClassName))
	return nil
}

func (d *ClassDrawer) EraseLayout(ctx context.Context) error {
	if err := d.undo(ctx); err != nil {
		return err
	}
	d.enabled = false
	return nil
}

// undo removes whatever the last draw applied.
func (d *ClassDrawer) undo(ctx context.Context) error {
	if d.classAdded != nil {
		if err := d.doc.RemoveClass(ctx, d.classAdded, d.appliedConfig.ClassName); err != nil {
			return fmt.Errorf("failed to remove class %s: %w", d.appliedConfig.ClassName, err)
		}
		d.classAdded = nil
	}
	if d.styleInjected {
		if err := d.doc.RemoveOverlay(ctx, d.appliedConfig.StyleOverlayID()); err != nil {
			return fmt.Errorf("failed to remove %s stylesheet: %w", d.appliedConfig.ClassName, err)
		}
		d.styleInjected = false
	}
	return nil
}

func hasClass(el dom.Element, class string) bool {
	value, _ := el.Attribute("class")
	return slices.Contains(strings.Fields(value), class)
}

func (d *ClassDrawer) IsOverlayEnabled() bool {
	return d.enabled
}
