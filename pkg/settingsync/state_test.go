package settingsync

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// TestState_ConcurrentAccess tests that concurrent writers never produce a
// torn snapshot and that every history append is kept.
func TestState_ConcurrentAccess(t *testing.T) {
	s := NewState(DefaultScheduleConfig())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hours := (i*100+j)%MaxIntervalHours + 1
				_ = s.Replace(ScheduleConfig{
					URL:           fmt.Sprintf("http://h/%d", hours),
					IntervalHours: hours,
					Enabled:       hours%2 == 0,
				})
				s.AppendHistory(NewUpdateRecord(time.Now(), Manual, nil))
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 500; j++ {
			cfg := s.Snapshot()
			if cfg.URL == DefaultURL {
				continue
			}
			if want := fmt.Sprintf("http://h/%d", cfg.IntervalHours); cfg.URL != want {
				t.Errorf("torn snapshot: %+v", cfg)
				return
			}
			if cfg.Enabled != (cfg.IntervalHours%2 == 0) {
				t.Errorf("torn snapshot: %+v", cfg)
				return
			}
		}
	}()
	wg.Wait()

	if n := len(s.History()); n != 800 {
		t.Errorf("history length = %d, want 800", n)
	}
}

// TestState_SetIntervalValidation tests the interval bounds.
func TestState_SetIntervalValidation(t *testing.T) {
	tests := []struct {
		hours   int
		wantErr bool
	}{
		{0, true},
		{-1, true},
		{1, false},
		{168, false},
		{169, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.hours), func(t *testing.T) {
			s := NewState(DefaultScheduleConfig())
			_, err := s.SetIntervalHours(tt.hours)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInterval) {
					t.Errorf("expected ErrInvalidInterval, got %v", err)
				}
				if s.IntervalHours() != DefaultIntervalHours {
					t.Error("rejected interval must not be stored")
				}
				return
			}
			if err != nil || s.IntervalHours() != tt.hours {
				t.Errorf("got %d, %v", s.IntervalHours(), err)
			}
		})
	}
}

// TestState_ChangesCoalesce tests that notifications never block and
// collapse into one pending signal.
func TestState_ChangesCoalesce(t *testing.T) {
	s := NewState(DefaultScheduleConfig())

	s.SetURL("https://a")
	s.SetEnabled(true)
	s.AppendHistory(NewUpdateRecord(time.Now(), Scheduled, nil))

	select {
	case <-s.Changes():
	default:
		t.Fatal("expected a pending notification")
	}
	select {
	case <-s.Changes():
		t.Fatal("notifications should coalesce")
	default:
	}

	// Unchanged values do not notify.
	s.SetURL("https://a")
	select {
	case <-s.Changes():
		t.Fatal("no-op SetURL should not notify")
	default:
	}
}

// TestState_HistoryIsCopy tests that callers cannot mutate the stored history.
func TestState_HistoryIsCopy(t *testing.T) {
	s := NewState(DefaultScheduleConfig())
	s.AppendHistory(NewUpdateRecord(time.Now(), Manual, errors.New("boom")))

	h := s.History()
	h[0].Err = ""
	if s.History()[0].Err != "boom" {
		t.Error("History must return a copy")
	}
}
