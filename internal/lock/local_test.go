package lock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l := NewLocalLock()
	l.clock = func() time.Time { return now }

	tests := []struct {
		name    string
		advance time.Duration
		unlock  bool
		want    bool
	}{
		{"first acquire", 0, false, true},
		{"held", time.Second, false, false},
		{"expired", time.Minute, false, true},
		{"released", 0, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = now.Add(tt.advance)
			if tt.unlock {
				if err := l.Unlock(ctx, "dialog:1"); err != nil {
					t.Fatalf("Unlock: %v", err)
				}
			}
			got, err := l.Lock(ctx, "dialog:1", 30*time.Second)
			if err != nil {
				t.Fatalf("Lock: %v", err)
			}
			if got != tt.want {
				t.Errorf("Lock() = %v, want %v", got, tt.want)
			}
		})
	}

	if ok, _ := l.Lock(ctx, "dialog:2", time.Second); !ok {
		t.Error("keys must be independent")
	}
}

func TestLocalLockConcurrent(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLock()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Lock(ctx, "k", time.Minute); ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("expected exactly one holder, got %d", winners)
	}
}
