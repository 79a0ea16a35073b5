package worker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/saverio-kantox/tarearbol"
	"github.com/saverio-kantox/tarearbol/worker"
)

func TestNewDefaults(t *testing.T) {
	d, err := worker.New("w1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID != "w1" {
		t.Errorf("ID = %q, want %q", d.ID, "w1")
	}
	if d.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0 (pool default applies)", d.Timeout)
	}
	if d.Lull != 0 {
		t.Errorf("Lull = %v, want 0 (pool default applies)", d.Lull)
	}

	if got := d.EffectiveTimeout(time.Second); got != time.Second {
		t.Errorf("EffectiveTimeout = %v, want 1s", got)
	}
	if got := d.EffectiveLull(1.1); got != 1.1 {
		t.Errorf("EffectiveLull = %v, want 1.1", got)
	}
}

func TestNewOptions(t *testing.T) {
	d, err := worker.New("w2",
		worker.WithPayload(42),
		worker.WithTimeout(5*time.Second),
		worker.WithLull(2),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Payload != 42 {
		t.Errorf("Payload = %v, want 42", d.Payload)
	}
	if d.EffectiveTimeout(time.Second) != 5*time.Second {
		t.Errorf("EffectiveTimeout = %v, want 5s", d.EffectiveTimeout(time.Second))
	}
	if d.EffectiveLull(1.1) != 2 {
		t.Errorf("EffectiveLull = %v, want 2", d.EffectiveLull(1.1))
	}
}

func TestNewRejectsEmptyID(t *testing.T) {
	_, err := worker.New("")
	if !errors.Is(err, tarearbol.ErrEmptyID) {
		t.Errorf("err = %v, want ErrEmptyID", err)
	}
}

func TestNewRejectsSubUnitLull(t *testing.T) {
	_, err := worker.New("w1", worker.WithLull(0.5))
	if !errors.Is(err, tarearbol.ErrInvalidLull) {
		t.Errorf("err = %v, want ErrInvalidLull", err)
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := worker.New("w1", worker.WithSchedule("not a cron"))
	if err == nil {
		t.Error("expected error for invalid schedule expression")
	}
}

func TestNewAcceptsCronDescriptors(t *testing.T) {
	for _, expr := range []string{"@every 30s", "0 9 * * *"} {
		if _, err := worker.New("w1", worker.WithSchedule(expr)); err != nil {
			t.Errorf("New with schedule %q: %v", expr, err)
		}
	}
}
