// internal/browser/scripts.go
package browser

import (
	_ "embed"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// OverlayAttribute marks drawer-owned nodes so snapshots and paths skip them.
const OverlayAttribute = "data-focusmap-overlay"

var (
	//go:embed js/snapshot.js
	snapshotScript string
	//go:embed js/focus.js
	focusScript string
	//go:embed js/reset_focus.js
	resetFocusScript string
	//go:embed js/class.js
	classFunction string
	//go:embed js/overlay.js
	overlayFunction string
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// invoke builds an expression calling fn with args encoded as a JSON literal.
func invoke(fn string, args any) (string, error) {
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode script arguments: %w", err)
	}
	return "(" + fn + ")(" + string(encoded) + ")", nil
}

type classArgs struct {
	Selector  string `json:"selector"`
	ClassName string `json:"className"`
	Add       bool   `json:"add"`
}

type overlayArgs struct {
	ID         string            `json:"id"`
	Tag        string            `json:"tag,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Content    string            `json:"content,omitempty"`
	Remove     bool              `json:"remove,omitempty"`
}
