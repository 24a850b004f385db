package task

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestComplete_RunsCallbacksOnceInOrder(t *testing.T) {
	tk := New()
	var got []int
	tk.AddDoneCallback(func(*Task) { got = append(got, 1) })
	tk.AddDoneCallback(func(*Task) { got = append(got, 2) })

	if tk.Done() {
		t.Fatalf("Done() = true before Complete")
	}
	wantErr := errors.New("boom")
	tk.Complete(wantErr)
	tk.Complete(nil)

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("callbacks ran %v, want [1 2]", got)
	}
	if !tk.Done() {
		t.Fatalf("Done() = false after Complete")
	}
	if !errors.Is(tk.Err(), wantErr) {
		t.Fatalf("Err() = %v, want %v", tk.Err(), wantErr)
	}
}

func TestAddDoneCallback_AfterCompleteRunsImmediately(t *testing.T) {
	tk := New()
	tk.Complete(nil)

	ran := false
	tk.AddDoneCallback(func(got *Task) {
		if got != tk {
			t.Fatalf("callback got a different task")
		}
		ran = true
	})
	if !ran {
		t.Fatalf("callback did not run for a completed task")
	}
}

func TestCallbackMayRegisterAnother(t *testing.T) {
	tk := New()
	inner := false
	tk.AddDoneCallback(func(tk *Task) {
		tk.AddDoneCallback(func(*Task) { inner = true })
	})
	tk.Complete(nil)
	if !inner {
		t.Fatalf("callback registered during completion did not run")
	}
}

func TestLocal_IsTaskScoped(t *testing.T) {
	slot := NewLocal[string]("pending")
	a, b := New(), New()

	slot.Set(a, "span-a")
	if _, ok := slot.Get(b); ok {
		t.Fatalf("slot value visible from a sibling task")
	}
	if v, ok := slot.Get(a); !ok || v != "span-a" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}

	v, ok := slot.Take(a)
	if !ok || v != "span-a" {
		t.Fatalf("Take(a) = %q, %v", v, ok)
	}
	if _, ok := slot.Take(a); ok {
		t.Fatalf("slot not cleared by Take")
	}
	if _, ok := slot.Get(nil); ok {
		t.Fatalf("Get(nil) reported a value")
	}
}

func TestLocal_DistinctSlotsDoNotCollide(t *testing.T) {
	a := NewLocal[int]("a")
	b := NewLocal[int]("a")
	tk := New()
	a.Set(tk, 1)
	if _, ok := b.Get(tk); ok {
		t.Fatalf("slots with the same name share storage")
	}
}

func TestContextRoundTrip(t *testing.T) {
	if From(context.Background()) != nil {
		t.Fatalf("From(empty) != nil")
	}
	tk := New()
	if got := From(With(context.Background(), tk)); got != tk {
		t.Fatalf("From(With(tk)) = %p, want %p", got, tk)
	}
}

func TestConcurrentTasksKeepOwnSlots(t *testing.T) {
	slot := NewLocal[int]("n")
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tk := New()
			slot.Set(tk, i)
			tk.AddDoneCallback(func(tk *Task) {
				if v, ok := slot.Take(tk); !ok || v != i {
					t.Errorf("task %d read %d, %v", i, v, ok)
				}
			})
			tk.Complete(nil)
		}(i)
	}
	wg.Wait()
}
