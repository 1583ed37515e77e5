package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hearthside-robotics/homerover/internal/timeutil"
)

func TestCheckpoint(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Checkpoint())
}

func TestMaintainTicksAndStops(t *testing.T) {
	s := openTestStore(t)
	clock := timeutil.NewMockClock(time.Unix(1000, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Maintain(ctx, clock, time.Minute)
		close(done)
	}()

	// Let Maintain register its ticker, then drive one checkpoint.
	time.Sleep(20 * time.Millisecond)
	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Maintain did not return after cancel")
	}
}
