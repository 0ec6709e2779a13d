// Package selection tracks the hovered and selected event plus the
// drill-through target. It is UI interaction state, owned by the
// caller, and depends on nothing else in the engine.
package selection

import "github.com/kubelane/kubelane/internal/types"

// Model is the current selection state.
type Model struct {
	HoveredEventID  string             `json:"hoveredEventId,omitempty"`
	SelectedEventID string             `json:"selectedEventId,omitempty"`
	DrillTarget     *types.ResourceRef `json:"drillTarget,omitempty"`
}

// Hover records the event under the pointer.
func (m *Model) Hover(eventID string) { m.HoveredEventID = eventID }

// ClearHover drops the hover without touching the selection.
func (m *Model) ClearHover() { m.HoveredEventID = "" }

// Select pins an event. Selecting again toggles it off.
func (m *Model) Select(eventID string) {
	if m.SelectedEventID == eventID {
		m.SelectedEventID = ""
		return
	}
	m.SelectedEventID = eventID
}

// Drill sets the resource to open in the detail view.
func (m *Model) Drill(ref types.ResourceRef) {
	r := ref
	m.DrillTarget = &r
}

// Reset clears all selection state.
func (m *Model) Reset() {
	*m = Model{}
}
