package monitor

import (
	"testing"
	"time"
)

func TestBackoff_GrowsAndCaps(t *testing.T) {
	b := newBackoff(100*time.Millisecond, time.Second)

	prevNominal := time.Duration(0)
	for i := 0; i < 8; i++ {
		d := b.Next()
		nominal := b.cur
		if nominal < prevNominal {
			t.Errorf("step %d: nominal delay %v shrank from %v", i, nominal, prevNominal)
		}
		if nominal > time.Second {
			t.Errorf("step %d: nominal delay %v exceeds max", i, nominal)
		}
		lo := time.Duration(float64(nominal) * 0.8)
		hi := time.Duration(float64(nominal) * 1.2)
		if d < lo || d > hi {
			t.Errorf("step %d: jittered delay %v outside [%v, %v]", i, d, lo, hi)
		}
		prevNominal = nominal
	}

	if b.cur != time.Second {
		t.Errorf("after growth, nominal delay = %v, want %v", b.cur, time.Second)
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := newBackoff(100*time.Millisecond, time.Second)
	b.Next()
	b.Next()
	b.Reset()

	b.Next()
	if b.cur != 100*time.Millisecond {
		t.Errorf("nominal delay after reset = %v, want %v", b.cur, 100*time.Millisecond)
	}
}
