package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestMockClockSetAndAdvance(t *testing.T) {
	start := time.Unix(1000, 0)
	c := NewMockClock(start)

	if !c.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", c.Now(), start)
	}

	c.Advance(time.Minute)
	if got, want := c.Now(), start.Add(time.Minute); !got.Equal(want) {
		t.Errorf("Now() after advance = %v, want %v", got, want)
	}

	c.Set(time.Unix(2000, 0))
	if got := c.Since(time.Unix(1990, 0)); got != 10*time.Second {
		t.Errorf("Since = %v, want 10s", got)
	}
}

func TestMockTickerFiresOnAdvance(t *testing.T) {
	c := NewMockClock(time.Unix(1000, 0))
	ticker := c.NewTicker(time.Minute)
	defer ticker.Stop()

	select {
	case <-ticker.C():
		t.Fatal("ticker fired before interval elapsed")
	default:
	}

	c.Advance(time.Minute)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire after interval elapsed")
	}

	// Stopped tickers stay silent.
	ticker.Stop()
	c.Advance(2 * time.Minute)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestMockTickerTrigger(t *testing.T) {
	c := NewMockClock(time.Unix(1000, 0))
	ticker := c.NewTicker(time.Hour).(*MockTicker)

	at := time.Unix(1234, 0)
	ticker.Trigger(at)
	select {
	case got := <-ticker.C():
		if !got.Equal(at) {
			t.Errorf("tick time = %v, want %v", got, at)
		}
	default:
		t.Fatal("manual trigger did not deliver a tick")
	}
}
