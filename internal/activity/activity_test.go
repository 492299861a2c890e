package activity

import (
	"fmt"
	"testing"
	"time"

	"github.com/mtzanidakis/evomap/internal/fleet"
)

func node(id, name, task string, status fleet.Status) fleet.Node {
	return fleet.Node{ID: id, Name: name, CurrentTask: task, Status: status}
}

func fixedClock(d *Deriver) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return t0 }
}

func TestDiffAppearanceAndTransition(t *testing.T) {
	prev := map[string]fleet.Status{"a1": fleet.StatusIdle, "gone": fleet.StatusBusy}
	view := []fleet.Node{
		node("a1", "Bot", "", fleet.StatusBusy),
		node("a2", "", "crawl docs", fleet.StatusThinking),
	}

	next, out := Diff(prev, view)

	if len(out) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(out))
	}
	if out[0].Kind != KindChanged || out[0].Text != TextStatusChanged || out[0].Previous != fleet.StatusIdle {
		t.Errorf("unexpected transition for a1: %+v", out[0])
	}
	if out[1].Kind != KindAppeared || out[1].Text != "crawl docs" || out[1].AgentName != "a2" {
		t.Errorf("unexpected transition for a2: %+v", out[1])
	}
	if _, ok := next["gone"]; ok {
		t.Error("absent agent should be dropped from the status map")
	}
	if len(next) != 2 {
		t.Errorf("expected 2 entries in next map, got %d", len(next))
	}
}

func TestDiffUnchangedEmitsNothing(t *testing.T) {
	prev := map[string]fleet.Status{"a1": fleet.StatusBusy}
	_, out := Diff(prev, []fleet.Node{node("a1", "Bot", "new task text", fleet.StatusBusy)})
	if len(out) != 0 {
		t.Errorf("expected no transitions, got %+v", out)
	}
}

func TestAppearanceVersusTransition(t *testing.T) {
	d := NewDeriver(DefaultCapacity)

	out := d.Reconcile([]fleet.Node{node("a1", "Bot", "", fleet.StatusBusy)})
	if len(out) != 1 || out[0].Status != fleet.StatusBusy || out[0].Text != TextConnected {
		t.Fatalf("expected one busy appearance entry, got %+v", out)
	}
	if out[0].Previous != "" {
		t.Errorf("appearance should have no previous status, got %q", out[0].Previous)
	}

	if out := d.Reconcile([]fleet.Node{node("a1", "Bot", "", fleet.StatusBusy)}); len(out) != 0 {
		t.Fatalf("expected no entry for unchanged status, got %+v", out)
	}

	out = d.Reconcile([]fleet.Node{node("a1", "Bot", "", fleet.StatusError)})
	if len(out) != 1 || out[0].Status != fleet.StatusError || out[0].Text != TextStatusChanged {
		t.Fatalf("expected one error entry, got %+v", out)
	}
	if out[0].Previous != fleet.StatusBusy || out[0].Kind != KindChanged {
		t.Errorf("expected change from busy, got %+v", out[0])
	}

	if got := len(d.Messages()); got != 2 {
		t.Errorf("expected 2 log entries, got %d", got)
	}
}

func TestLogBoundAndOrdering(t *testing.T) {
	d := NewDeriver(80)
	fixedClock(d)

	statuses := []fleet.Status{fleet.StatusBusy, fleet.StatusIdle}
	d.Reconcile([]fleet.Node{node("a1", "Bot", "", fleet.StatusIdle)}) // appearance, id 1
	for i := 0; i < 100; i++ {
		task := fmt.Sprintf("step %d", i)
		d.Reconcile([]fleet.Node{node("a1", "Bot", task, statuses[i%2])})
	}

	log := d.Messages()
	if len(log) != 80 {
		t.Fatalf("expected 80 entries, got %d", len(log))
	}
	// 101 entries were emitted; the appearance and the first 20 changes are evicted.
	if log[0].Text != "step 20" {
		t.Errorf("expected oldest retained entry 'step 20', got %q", log[0].Text)
	}
	if log[79].Text != "step 99" {
		t.Errorf("expected newest entry 'step 99', got %q", log[79].Text)
	}
	for i := 1; i < len(log); i++ {
		if log[i].ID != log[i-1].ID+1 {
			t.Fatalf("entries out of order at %d: %d after %d", i, log[i].ID, log[i-1].ID)
		}
	}
}

func TestReconcilePreservesViewOrder(t *testing.T) {
	d := NewDeriver(DefaultCapacity)
	out := d.Reconcile([]fleet.Node{
		node("c", "C", "", fleet.StatusIdle),
		node("a", "A", "", fleet.StatusIdle),
		node("b", "B", "", fleet.StatusIdle),
	})
	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(out))
	}
	for i, want := range []string{"C", "A", "B"} {
		if out[i].AgentName != want {
			t.Errorf("entry %d: expected %s, got %s", i, want, out[i].AgentName)
		}
		if out[i].ID != uint64(i+1) {
			t.Errorf("entry %d: expected id %d, got %d", i, i+1, out[i].ID)
		}
	}
}

func TestDeriversAreIndependent(t *testing.T) {
	d1 := NewDeriver(DefaultCapacity)
	d2 := NewDeriver(DefaultCapacity)
	view := []fleet.Node{node("a1", "Bot", "", fleet.StatusIdle)}

	d1.Reconcile(view)
	d1.Reconcile([]fleet.Node{node("a1", "Bot", "", fleet.StatusBusy)})
	out := d2.Reconcile(view)

	if len(out) != 1 || out[0].ID != 1 {
		t.Errorf("expected second deriver to start at id 1, got %+v", out)
	}
}

func TestMessagesIsCopy(t *testing.T) {
	d := NewDeriver(DefaultCapacity)
	d.Reconcile([]fleet.Node{node("a1", "Bot", "", fleet.StatusIdle)})
	log := d.Messages()
	log[0].Text = "tampered"
	if d.Messages()[0].Text == "tampered" {
		t.Error("Messages() should return a copy")
	}
}
