package digest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMapOrdered_KeepsInputOrder(t *testing.T) {
	t.Parallel()

	in := []int{5, 1, 4, 2, 3, 0}
	var inflight, peak atomic.Int32
	out, err := mapOrdered(context.Background(), 3, in, func(_ context.Context, i, v int) (int, error) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Duration(v) * time.Millisecond)
		inflight.Add(-1)
		return v * 10, nil
	})
	if err != nil {
		t.Fatalf("mapOrdered: %v", err)
	}
	for i, v := range in {
		if out[i] != v*10 {
			t.Fatalf("out=%v", out)
		}
	}
	if peak.Load() > 3 {
		t.Fatalf("peak concurrency %d exceeds 3", peak.Load())
	}
}

func TestMapOrdered_FirstErrorCancelsRest(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var started atomic.Int32
	_, err := mapOrdered(context.Background(), 1, []int{0, 1, 2, 3}, func(ctx context.Context, i, _ int) (int, error) {
		started.Add(1)
		if i == 1 {
			return 0, boom
		}
		return i, ctx.Err()
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want boom", err)
	}
	if started.Load() != 2 {
		t.Fatalf("started=%d, want 2", started.Load())
	}
}

func TestMapOrdered_ParentCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := mapOrdered(ctx, 2, []int{1, 2}, func(context.Context, int, int) (int, error) { return 0, nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestMapOrdered_Empty(t *testing.T) {
	t.Parallel()

	out, err := mapOrdered(context.Background(), 4, []string(nil), func(context.Context, int, string) (int, error) { return 1, nil })
	if err != nil || len(out) != 0 {
		t.Fatalf("out=%v err=%v", out, err)
	}
}
