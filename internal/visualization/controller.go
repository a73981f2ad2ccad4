// internal/visualization/controller.go
package visualization

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/focusmap/internal/dom"
	"github.com/xkilldash9x/focusmap/internal/tabbable"
)

var (
	ErrDrawerRegistered = errors.New("drawer already registered")
	ErrUnknownDrawer    = errors.New("no drawer registered")
)

// Message asks the controller to enable or disable one visualization.
type Message struct {
	ConfigID       string
	Enabled        bool
	ElementResults []ElementResult
	FeatureFlags   FeatureFlags
}

// Controller routes visualization requests to the drawer registered for each config id.
type Controller struct {
	logger *zap.Logger

	mu      sync.Mutex
	drawers map[string]Drawer
}

func NewController(logger *zap.Logger) *Controller {
	return &Controller{
		logger:  logger.Named("drawing_controller"),
		drawers: make(map[string]Drawer),
	}
}

func (c *Controller) Register(id string, drawer Drawer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.drawers[id]; exists {
		return fmt.Errorf("%w: %s", ErrDrawerRegistered, id)
	}
	c.drawers[id] = drawer
	return nil
}

// IDs returns the registered config ids in sorted order.
func (c *Controller) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.drawers))
	for id := range c.drawers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ProcessRequest initializes and draws the drawer for an enabling message, and erases it otherwise.
func (c *Controller) ProcessRequest(ctx context.Context, msg Message) error {
	drawer, err := c.drawer(msg.ConfigID)
	if err != nil {
		return err
	}

	if !msg.Enabled {
		if err := drawer.EraseLayout(ctx); err != nil {
			return fmt.Errorf("failed to disable %s: %w", msg.ConfigID, err)
		}
		c.logger.Debug("Disabled visualization.", zap.String("config_id", msg.ConfigID))
		return nil
	}

	err = drawer.Initialize(ctx, InitData{Data: msg.ElementResults, FeatureFlags: msg.FeatureFlags})
	if err != nil {
		return fmt.Errorf("failed to initialize %s: %w", msg.ConfigID, err)
	}
	if err := drawer.DrawLayout(ctx); err != nil {
		return fmt.Errorf("failed to draw %s: %w", msg.ConfigID, err)
	}
	c.logger.Debug("Enabled visualization.",
		zap.String("config_id", msg.ConfigID),
		zap.Int("results", len(msg.ElementResults)),
		zap.Bool("overlay_enabled", drawer.IsOverlayEnabled()),
	)
	return nil
}

// DisableAll erases every registered drawer, returning the joined errors.
func (c *Controller) DisableAll(ctx context.Context) error {
	var errs []error
	for _, id := range c.IDs() {
		if err := c.ProcessRequest(ctx, Message{ConfigID: id}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) drawer(id string) (Drawer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.drawers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDrawer, id)
	}
	return d, nil
}

// Config ids of the built-in visualizations.
const (
	ConfigBody           = "body"
	ConfigColor          = "color"
	ConfigPseudoSelector = "pseudo-selector"
	ConfigTabStops       = "tab-stops"
)

// NewDocumentController registers one drawer of every built-in kind for doc and returns
// the controller together with its tab stops drawer.
func NewDocumentController(doc dom.Document, classifier *tabbable.Classifier, tabStops Formatter[SVGConfiguration], logger *zap.Logger) (*Controller, *SVGDrawer) {
	c := NewController(logger)
	svg := NewSVGDrawer(doc, tabStops, classifier, logger)
	// Fresh controller, ids are distinct.
	_ = c.Register(ConfigBody, NewBodyDrawer(doc, logger))
	_ = c.Register(ConfigColor, NewColorDrawer(doc, logger))
	_ = c.Register(ConfigPseudoSelector, NewPseudoSelectorDrawer(doc, logger))
	_ = c.Register(ConfigTabStops, svg)
	return c, svg
}
