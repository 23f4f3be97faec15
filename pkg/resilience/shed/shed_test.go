package shed

import (
	"context"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestLoadShedder_RejectsAtCeiling(t *testing.T) {
	s := New(3, 0)

	for i := 0; i < 3; i++ {
		if !s.TryEnter(PriorityNormal) {
			t.Fatalf("admission %d: expected success", i+1)
		}
	}

	if s.TryEnter(PriorityNormal) {
		t.Error("expected rejection at ceiling")
	}
	if s.Inflight() != 3 {
		t.Errorf("expected 3 in flight, got %d", s.Inflight())
	}

	s.Exit()
	if !s.TryEnter(PriorityNormal) {
		t.Error("expected admission after an exit")
	}

	for i := 0; i < 3; i++ {
		s.Exit()
	}
	if s.Inflight() != 0 {
		t.Errorf("expected 0 in flight after drain, got %d", s.Inflight())
	}
}

func TestLoadShedder_ReservationForHighPriority(t *testing.T) {
	s := New(4, 2)

	// Normal traffic only sees maxInflight - reserved slots.
	if !s.TryEnter(PriorityNormal) {
		t.Fatal("expected first normal admission")
	}
	if !s.TryEnter(PriorityNormal) {
		t.Fatal("expected second normal admission")
	}
	if s.TryEnter(PriorityNormal) {
		t.Error("expected normal traffic rejected at reserved cutoff")
	}

	// High priority can use the reserved slots.
	if !s.TryEnter(PriorityHigh) {
		t.Error("expected high-priority admission into reserved capacity")
	}
	if !s.TryEnter(PriorityHigh) {
		t.Error("expected second high-priority admission")
	}
	if s.TryEnter(PriorityHigh) {
		t.Error("expected high-priority rejection at full ceiling")
	}
}

func TestLoadShedder_NoReservationIgnoresPriority(t *testing.T) {
	s := New(2, 0)

	if !s.TryEnter(PriorityNormal) || !s.TryEnter(PriorityNormal) {
		t.Fatal("expected both normal admissions")
	}
	if s.TryEnter(PriorityHigh) {
		t.Error("without a reservation, priority grants no extra capacity")
	}
}

func TestLoadShedder_ConcurrentAdmissionIsExact(t *testing.T) {
	const ceiling = 16
	const callers = 128

	s := New(ceiling, 0)

	var admitted atomic.Int64
	release := make(chan struct{})
	resolved := make(chan struct{}, callers)

	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			ok := s.TryEnter(PriorityNormal)
			resolved <- struct{}{}
			if !ok {
				return nil
			}
			admitted.Add(1)
			<-release
			s.Exit()
			return nil
		})
	}

	for i := 0; i < callers; i++ {
		<-resolved
	}
	close(release)
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if admitted.Load() != ceiling {
		t.Errorf("expected exactly %d admissions, got %d", ceiling, admitted.Load())
	}
	if s.Inflight() != 0 {
		t.Errorf("expected 0 in flight after drain, got %d", s.Inflight())
	}
}

func TestNew_ClampsReservation(t *testing.T) {
	s := New(2, 5)

	// Reservation never consumes the entire ceiling.
	if !s.TryEnter(PriorityNormal) {
		t.Error("expected at least one slot for normal traffic")
	}
}
