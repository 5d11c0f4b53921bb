package alerts

import (
	"fmt"
	"testing"
	"time"

	"hostpilot/internal/models"
)

func TestLogEvictsOldestBeyondCapacity(t *testing.T) {
	l := NewLog(DefaultCapacity)
	for i := 0; i < DefaultCapacity+1; i++ {
		l.Append(event(i))
	}
	got := l.All()
	if len(got) != DefaultCapacity {
		t.Fatalf("len = %d, want %d", len(got), DefaultCapacity)
	}
	for i, e := range got {
		if want := fmt.Sprintf("e-%d", i+1); e.ID != want {
			t.Fatalf("entry %d id = %s, want %s", i, e.ID, want)
		}
	}
}

func TestLogManyAppendsStayBounded(t *testing.T) {
	l := NewLog(0)
	batch := make([]models.AlertEvent, 0, 4)
	for i := 0; i < 300; i++ {
		batch = append(batch[:0], event(4*i), event(4*i+1), event(4*i+2), event(4*i+3))
		l.Append(batch...)
		if l.Len() > DefaultCapacity {
			t.Fatalf("log grew to %d", l.Len())
		}
	}
	newest := l.Newest()
	if newest[0].ID != "e-1199" || newest[len(newest)-1].ID != "e-1150" {
		t.Fatalf("unexpected window %s..%s", newest[0].ID, newest[len(newest)-1].ID)
	}
}

func TestLogClearIsIdempotent(t *testing.T) {
	l := NewLog(3)
	l.Append(event(1), event(2))
	l.Clear()
	l.Clear()
	if got := l.All(); len(got) != 0 {
		t.Fatalf("All after Clear = %+v", got)
	}
	l.Append(event(3))
	if got := l.All(); len(got) != 1 || got[0].ID != "e-3" {
		t.Fatalf("All after re-append = %+v", got)
	}
}

func TestLogReturnsCopies(t *testing.T) {
	l := NewLog(3)
	l.Append(event(1))
	got := l.All()
	got[0].ID = "mutated"
	if l.All()[0].ID != "e-1" {
		t.Fatal("caller mutation leaked into log")
	}
}

func event(i int) models.AlertEvent {
	return models.AlertEvent{
		ID:        fmt.Sprintf("e-%d", i),
		Kind:      models.AlertCPUUsage,
		Severity:  models.SeverityWarning,
		Timestamp: time.Unix(int64(i), 0).UTC(),
	}
}
