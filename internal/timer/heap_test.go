package timer

import (
	"sync"
	"testing"
	"time"
)

func TestScheduler_Schedule(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	executed := make(chan struct{})
	err := s.Schedule("run", time.Now().Add(50*time.Millisecond), func() {
		close(executed)
	})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	select {
	case <-executed:
	case <-time.After(time.Second):
		t.Fatal("Task was not executed")
	}
}

func TestScheduler_Cancel(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	executed := false
	var mu sync.Mutex

	s.Schedule("run", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		executed = true
		mu.Unlock()
	})

	if !s.Cancel("run") {
		t.Error("Cancel returned false")
	}
	if s.Cancel("run") {
		t.Error("Second Cancel should return false")
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	if executed {
		t.Error("Task was executed despite being cancelled")
	}
	mu.Unlock()
}

func TestScheduler_Ordering(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	var results []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(3)

	record := func(n int) func() {
		return func() {
			mu.Lock()
			results = append(results, n)
			mu.Unlock()
			wg.Done()
		}
	}

	now := time.Now()
	s.Schedule("task3", now.Add(150*time.Millisecond), record(3))
	s.Schedule("task1", now.Add(50*time.Millisecond), record(1))
	s.Schedule("task2", now.Add(100*time.Millisecond), record(2))

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 3 || results[0] != 1 || results[1] != 2 || results[2] != 3 {
		t.Errorf("Tasks executed in wrong order: %v", results)
	}
}

func TestScheduler_RescheduleReplaces(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	count := 0
	var mu sync.Mutex

	s.Schedule("run", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		count++
		mu.Unlock()
	})
	s.Schedule("run", time.Now().Add(50*time.Millisecond), func() {
		mu.Lock()
		count += 10
		mu.Unlock()
	})

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	if count != 10 {
		t.Errorf("Expected count=10 (only second task), got %d", count)
	}
	mu.Unlock()
}

func TestScheduler_CallbacksDoNotOverlap(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	var mu sync.Mutex
	running, maxRunning := 0, 0
	var wg sync.WaitGroup
	wg.Add(3)

	slow := func() {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()

		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		wg.Done()
	}

	due := time.Now().Add(10 * time.Millisecond)
	s.Schedule("a", due, slow)
	s.Schedule("b", due, slow)
	s.Schedule("c", due, slow)

	wg.Wait()

	if maxRunning != 1 {
		t.Errorf("Expected serial execution, saw %d concurrent callbacks", maxRunning)
	}
}

func TestScheduler_SelfReschedule(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	var mu sync.Mutex
	runs := 0
	done := make(chan struct{})

	var next func()
	next = func() {
		mu.Lock()
		runs++
		n := runs
		mu.Unlock()

		if n == 3 {
			close(done)
			return
		}
		if err := s.Schedule("run", time.Now().Add(10*time.Millisecond), next); err != nil {
			t.Errorf("Reschedule failed: %v", err)
		}
	}
	s.Schedule("run", time.Now().Add(10*time.Millisecond), next)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Task did not reschedule itself")
	}
}

func TestScheduler_StoppedRejectsTasks(t *testing.T) {
	s := NewScheduler()
	s.Start()
	s.Stop()
	s.Stop()

	if err := s.Schedule("run", time.Now(), func() {}); err != ErrSchedulerStopped {
		t.Errorf("Expected ErrSchedulerStopped, got %v", err)
	}
}

func TestScheduler_Pending(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	s.Schedule("task1", time.Now().Add(1*time.Hour), func() {})
	s.Schedule("task2", time.Now().Add(2*time.Hour), func() {})
	s.Schedule("task3", time.Now().Add(3*time.Hour), func() {})

	if n := s.Pending(); n != 3 {
		t.Errorf("Expected 3 pending tasks, got %d", n)
	}
}

func TestNextRun(t *testing.T) {
	colombo, err := time.LoadLocation("Asia/Colombo")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}

	cases := []struct {
		now      time.Time
		interval time.Duration
		want     time.Time
	}{
		{time.Date(2025, 3, 14, 9, 7, 12, 0, time.UTC), 15 * time.Minute, time.Date(2025, 3, 14, 9, 15, 0, 0, time.UTC)},
		{time.Date(2025, 3, 14, 9, 15, 0, 0, time.UTC), 15 * time.Minute, time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)},
		{time.Date(2025, 3, 14, 23, 59, 59, 0, time.UTC), time.Hour, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 3, 14, 14, 50, 0, 0, colombo), 15 * time.Minute, time.Date(2025, 3, 14, 15, 0, 0, 0, colombo)},
	}
	for _, tc := range cases {
		got := NextRun(tc.now, tc.interval)
		if !got.Equal(tc.want) {
			t.Errorf("NextRun(%v, %v) = %v, want %v", tc.now, tc.interval, got, tc.want)
		}
	}
}
