package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_CoalescesBursts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDebouncer(ctx, 30*time.Millisecond)
	for i := 0; i < 5; i++ {
		d.Trigger("a.exdf")
		time.Sleep(5 * time.Millisecond)
	}
	d.Trigger("b.txt")

	got := map[string]int{}
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case k := <-d.C:
			got[k]++
		case <-timeout:
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.Equal(t, map[string]int{"a.exdf": 1, "b.txt": 1}, got)

	select {
	case k := <-d.C:
		t.Fatalf("unexpected extra delivery %q", k)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncer_Stop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDebouncer(ctx, time.Hour)
	d.Trigger("x")
	d.Trigger("y")
	require.Equal(t, 2, d.Pending())

	d.Stop()
	assert.Zero(t, d.Pending())
}
