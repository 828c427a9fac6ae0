package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"homeledger/internal/amqp"
	"homeledger/internal/core"
)

type fakeChecker struct {
	mu       sync.Mutex
	full     int
	accounts [][]int64
	drift    []core.Drift
	err      error
}

func (f *fakeChecker) Check(ctx context.Context) ([]core.Drift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.full++
	return f.drift, f.err
}

func (f *fakeChecker) CheckAccounts(ctx context.Context, ids ...int64) ([]core.Drift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts = append(f.accounts, ids)
	return f.drift, f.err
}

func (f *fakeChecker) fullRuns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.full
}

type fakeSource struct {
	events []*amqp.LedgerEvent
	err    error
}

func (s *fakeSource) ConsumeEvents(ctx context.Context, handler amqp.EventHandler) error {
	for _, ev := range s.events {
		if err := handler(ctx, ev); err != nil {
			return err
		}
	}
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestHandleEvent(t *testing.T) {
	checker := &fakeChecker{drift: []core.Drift{{AccountID: 2, Stored: core.Money{Cents: 1}}}}
	w := NewReconcileWorker(checker, time.Hour)

	ev := amqp.NewLedgerEvent(amqp.EventRecordUpdated, 9, 1, 2)
	if err := w.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if len(checker.accounts) != 1 || len(checker.accounts[0]) != 2 {
		t.Fatalf("checked accounts = %v, want [[1 2]]", checker.accounts)
	}
	if checks, drifts := w.Stats(); checks != 1 || drifts != 1 {
		t.Fatalf("Stats() = %d, %d", checks, drifts)
	}

	checker.err = errors.New("database is locked")
	if err := w.HandleEvent(context.Background(), ev); err == nil {
		t.Fatal("expected error so the event is requeued")
	}
}

func TestRunPeriodic(t *testing.T) {
	checker := &fakeChecker{}
	w := NewReconcileWorker(checker, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.RunPeriodic(ctx) }()

	deadline := time.After(2 * time.Second)
	for checker.fullRuns() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d periodic runs", checker.fullRuns())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("RunPeriodic() = %v, want context.Canceled", err)
	}
}

func TestRun(t *testing.T) {
	t.Run("stops cleanly on cancel", func(t *testing.T) {
		checker := &fakeChecker{}
		w := NewReconcileWorker(checker, time.Hour)
		source := &fakeSource{events: []*amqp.LedgerEvent{amqp.NewLedgerEvent(amqp.EventRecordCreated, 1, 1)}}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx, source) }()

		deadline := time.Now().Add(2 * time.Second)
		for {
			checker.mu.Lock()
			full, events := checker.full, len(checker.accounts)
			checker.mu.Unlock()
			if full == 1 && events == 1 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("full=%d events=%d, want 1 and 1", full, events)
			}
			time.Sleep(time.Millisecond)
		}
		cancel()
		if err := <-done; err != nil {
			t.Fatalf("Run() = %v", err)
		}
	})

	t.Run("consumer failure stops the worker", func(t *testing.T) {
		w := NewReconcileWorker(&fakeChecker{}, time.Hour)
		boom := errors.New("access refused")

		err := w.Run(context.Background(), &fakeSource{err: boom})
		if !errors.Is(err, boom) {
			t.Fatalf("Run() = %v, want %v", err, boom)
		}
	})

	t.Run("without source", func(t *testing.T) {
		w := NewReconcileWorker(&fakeChecker{}, time.Hour)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		if err := w.Run(ctx, nil); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Run() = %v, want deadline exceeded", err)
		}
	})
}

func TestCheckAllLogsDuration(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	w := NewReconcileWorker(&fakeChecker{}, time.Hour)
	if err := w.CheckAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{`"duration_ms":`, `"operation":"reconcile"`, `"component":"worker"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}
