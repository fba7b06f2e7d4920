package app

import (
	"sync"
	"testing"
	"time"
)

type manualTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (m *manualTimer) Stop() bool {
	was := !m.stopped
	m.stopped = true
	return was
}

type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (c *manualClock) afterFunc(d time.Duration, f func()) Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func TestTimerSupervisorFiresOnce(t *testing.T) {
	clock := &manualClock{}
	sup := NewTimerSupervisorWithAfterFunc(clock.afterFunc)

	var fired []int
	sup.Schedule("s1", 0, 10*time.Second, func(_ string, index int) { fired = append(fired, index) })
	if idx, ok := sup.Pending("s1"); !ok || idx != 0 {
		t.Fatalf("expected pending index 0, got %d %v", idx, ok)
	}
	if clock.timers[0].delay != 10*time.Second {
		t.Fatalf("unexpected delay %v", clock.timers[0].delay)
	}

	clock.timers[0].fn()
	clock.timers[0].fn()
	if len(fired) != 1 || fired[0] != 0 {
		t.Fatalf("expected a single fire for index 0, got %v", fired)
	}
	if _, ok := sup.Pending("s1"); ok {
		t.Fatalf("expected nothing pending after fire")
	}
}

func TestTimerSupervisorReplaceAndCancel(t *testing.T) {
	clock := &manualClock{}
	sup := NewTimerSupervisorWithAfterFunc(clock.afterFunc)

	var fired []int
	record := func(_ string, index int) { fired = append(fired, index) }
	sup.Schedule("s1", 0, time.Second, record)
	sup.Schedule("s1", 1, time.Second, record)

	if !clock.timers[0].stopped {
		t.Fatalf("expected replaced timer stopped")
	}
	// a replaced timer that fires anyway must not run its callback
	clock.timers[0].fn()
	if len(fired) != 0 {
		t.Fatalf("replaced timer fired: %v", fired)
	}

	sup.Cancel("s1")
	clock.timers[1].fn()
	if len(fired) != 0 {
		t.Fatalf("cancelled timer fired: %v", fired)
	}

	sup.Schedule("s2", 0, time.Second, record)
	sup.StopAll()
	if !clock.timers[2].stopped {
		t.Fatalf("expected StopAll to stop s2")
	}
}
