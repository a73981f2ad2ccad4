// internal/visualization/drawer.go
package visualization

import (
	"context"
	"fmt"
	"strings"
)

// ItemType distinguishes observed tab stops from failures.
type ItemType int

const (
	ItemTabbed ItemType = iota
	ItemMissing
	ItemErrored
)

var itemTypeNames = map[ItemType]string{
	ItemTabbed:  "tabbed",
	ItemMissing: "missing",
	ItemErrored: "errored",
}

func (t ItemType) String() string {
	if name, ok := itemTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ItemType(%d)", int(t))
}

func (t ItemType) MarshalText() ([]byte, error) {
	name, ok := itemTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown item type %d", int(t))
	}
	return []byte(name), nil
}

func (t *ItemType) UnmarshalText(text []byte) error {
	for k, v := range itemTypeNames {
		if strings.EqualFold(v, string(text)) {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown item type %q", text)
}

// ElementResult locates one element for a drawer.
type ElementResult struct {
	// Target is an ordered list of selectors; each successive entry drills into a nested frame.
	Target []string `json:"target" yaml:"target"`
	// TabOrder is the 1-based position in the observed tab order, 0 when the element was never reached.
	TabOrder  int      `json:"tab_order,omitempty" yaml:"tab_order,omitempty"`
	IsFailure bool     `json:"is_failure,omitempty" yaml:"is_failure,omitempty"`
	ItemType  ItemType `json:"item_type" yaml:"item_type"`
}

// FeatureFlags accompany every Initialize and are passed through untouched.
type FeatureFlags map[string]bool

type InitData struct {
	Data         []ElementResult
	FeatureFlags FeatureFlags
}

// Drawer paints one visualization kind onto a document and removes it again.
//
// Initialize always erases first, so no decoration survives a re-scan. EraseLayout
// is the exact inverse of DrawLayout and is safe to call when nothing was drawn.
// Drawers are not safe for concurrent use.
type Drawer interface {
	Initialize(ctx context.Context, data InitData) error
	DrawLayout(ctx context.Context) error
	EraseLayout(ctx context.Context) error
	IsOverlayEnabled() bool
}

// TargetResolver picks the selector fragment a drawer resolves from its data.
// It returns "" when there is nothing to draw.
type TargetResolver func(data []ElementResult) string

// FirstTarget resolves the first fragment of the first result.
func FirstTarget(data []ElementResult) string {
	if len(data) == 0 || len(data[0].Target) == 0 {
		return ""
	}
	return data[0].Target[0]
}

// LastTarget resolves the last fragment of the first result.
func LastTarget(data []ElementResult) string {
	if len(data) == 0 || len(data[0].Target) == 0 {
		return ""
	}
	return data[0].Target[len(data[0].Target)-1]
}

func lastFragment(target []string) string {
	if len(target) == 0 {
		return ""
	}
	return target[len(target)-1]
}
