// internal/visualization/null_drawer.go
package visualization

import "context"

// NullDrawer is the drawer for kinds with nothing to paint. It is never enabled.
type NullDrawer struct{}

func (NullDrawer) Initialize(context.Context, InitData) error { return nil }
func (NullDrawer) DrawLayout(context.Context) error           { return nil }
func (NullDrawer) EraseLayout(context.Context) error          { return nil }
func (NullDrawer) IsOverlayEnabled() bool                     { return false }
