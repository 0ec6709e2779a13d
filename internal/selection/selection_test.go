package selection

import (
	"testing"

	"github.com/kubelane/kubelane/internal/types"
)

func TestSelectToggles(t *testing.T) {
	var m Model
	m.Select("ev-1")
	if m.SelectedEventID != "ev-1" {
		t.Fatalf("SelectedEventID = %q, want ev-1", m.SelectedEventID)
	}
	m.Select("ev-1")
	if m.SelectedEventID != "" {
		t.Errorf("selecting the same event should toggle it off, got %q", m.SelectedEventID)
	}

	m.Select("ev-1")
	m.Select("ev-2")
	if m.SelectedEventID != "ev-2" {
		t.Errorf("selecting a different event should replace, got %q", m.SelectedEventID)
	}
}

func TestHoverIndependentOfSelection(t *testing.T) {
	var m Model
	m.Select("ev-1")
	m.Hover("ev-2")
	m.ClearHover()
	if m.HoveredEventID != "" {
		t.Errorf("hover not cleared: %q", m.HoveredEventID)
	}
	if m.SelectedEventID != "ev-1" {
		t.Errorf("clearing hover must not touch selection, got %q", m.SelectedEventID)
	}
}

func TestDrillAndReset(t *testing.T) {
	var m Model
	ref := types.ResourceRef{Kind: "Pod", Namespace: "default", Name: "web-1"}
	m.Drill(ref)
	if m.DrillTarget == nil || *m.DrillTarget != ref {
		t.Fatalf("DrillTarget = %+v, want %+v", m.DrillTarget, ref)
	}

	m.Hover("ev-1")
	m.Select("ev-2")
	m.Reset()
	if m.HoveredEventID != "" || m.SelectedEventID != "" || m.DrillTarget != nil {
		t.Errorf("Reset left state behind: %+v", m)
	}
}
