package cx

import (
	"testing"
	"time"
)

func TestSynchronizer(t *testing.T) {
	t.Run("it should deliver the async status", func(t *testing.T) {
		s := NewSynchronizer()
		go func() {
			time.Sleep(5 * time.Millisecond)
			s.Callback()(nil)
		}()
		if err := s.Wait(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("it should time out when nothing completes", func(t *testing.T) {
		s := NewSynchronizer()
		err := s.WaitFor(10 * time.Millisecond)
		if err == nil || !IsError(err, CodeTimedOut) {
			t.Fatalf("expected TimedOut, got %v", err)
		}
	})

	t.Run("it should be reusable after Reset", func(t *testing.T) {
		s := NewSynchronizer()
		s.Callback()(nil)
		if err := s.Wait(); err != nil {
			t.Fatal(err)
		}

		s.Reset()
		want := NewErrorf(CodeIOError, "second round")
		s.Callback()(want)
		if err := s.Wait(); err == nil || !IsError(err, CodeIOError) {
			t.Fatalf("expected the second status, got %v", err)
		}
	})

	t.Run("stale callbacks do not reach a reset synchronizer", func(t *testing.T) {
		s := NewSynchronizer()
		stale := s.Callback()
		s.Reset()
		stale(NewErrorf(CodeIOError, "stale"))
		if err := s.WaitFor(10 * time.Millisecond); !IsError(err, CodeTimedOut) {
			t.Fatalf("expected TimedOut, got %v", err)
		}
	})
}
