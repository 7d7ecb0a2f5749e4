package timer

import (
	"testing"
	"time"
)

func TestRepeatFiresAfterInterval(t *testing.T) {
	r := NewRepeat(0, time.Second)

	if r.Update(500 * time.Millisecond) {
		t.Fatal("fired before interval elapsed")
	}
	if !r.Update(500 * time.Millisecond) {
		t.Fatal("expected fire at interval")
	}
	if r.Update(10 * time.Millisecond) {
		t.Fatal("fired again immediately after reset")
	}
}

func TestRepeatFrameRate(t *testing.T) {
	r := NewRepeat(0, time.Second)
	frame := 16 * time.Millisecond

	var fires []int
	for i := 1; i <= 200; i++ {
		if r.Update(frame) {
			fires = append(fires, i)
		}
	}

	if len(fires) != 3 {
		t.Fatalf("expected 3 fires in 200 frames, got %d (%v)", len(fires), fires)
	}
	if fires[0] != 63 {
		t.Errorf("expected first fire at frame 63, got %d", fires[0])
	}
	for i := 1; i < len(fires); i++ {
		if gap := fires[i] - fires[i-1]; gap < 62 {
			t.Errorf("fires %d frames apart, want >= 62", gap)
		}
	}
}

func TestRepeatLargeDeltaFiresOnce(t *testing.T) {
	r := NewRepeat(0, time.Second)

	if !r.Update(5 * time.Second) {
		t.Fatal("expected fire on large delta")
	}
	if r.Update(time.Millisecond) {
		t.Fatal("surplus should be discarded, not carried into another fire")
	}
}

func TestRepeatVariableFrames(t *testing.T) {
	r := NewRepeat(0, time.Second)
	deltas := []time.Duration{
		5 * time.Millisecond, 40 * time.Millisecond, 100 * time.Millisecond,
		2 * time.Millisecond, 33 * time.Millisecond,
	}

	var sinceFire time.Duration
	for i := 0; i < 1000; i++ {
		dt := deltas[i%len(deltas)]
		sinceFire += dt
		if r.Update(dt) {
			if sinceFire < time.Second {
				t.Fatalf("fired after %v, before interval", sinceFire)
			}
			sinceFire = 0
		}
	}
}

func TestRepeatDelay(t *testing.T) {
	r := NewRepeat(2*time.Second, time.Second)

	if r.Update(2 * time.Second) {
		t.Fatal("fired during delay")
	}
	if !r.Update(time.Second) {
		t.Fatal("expected fire one interval after delay")
	}
}

func TestRepeatPause(t *testing.T) {
	r := NewRepeat(0, time.Second)
	r.Pause()
	if r.Update(2 * time.Second) {
		t.Fatal("paused timer fired")
	}
	r.Resume()
	if !r.Update(time.Second) {
		t.Fatal("expected fire after resume")
	}
}

func TestRepeatIgnoresNonPositiveDelta(t *testing.T) {
	r := NewRepeat(0, time.Second)
	if r.Update(0) || r.Update(-time.Second) {
		t.Fatal("non-positive delta fired")
	}
	if r.Update(999 * time.Millisecond) {
		t.Fatal("negative delta should not have accumulated")
	}
}
