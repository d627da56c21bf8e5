package payload

import (
	"errors"
	"sync"
	"testing"
)

func TestStatusSetOnce(t *testing.T) {
	var s Status
	if !s.Ok() || s.IsSet() {
		t.Fatal("fresh status must be ok and unset")
	}
	s.Set(errors.New("first"))
	if s.Ok() || !s.IsSet() {
		t.Fatal("status must be non-ok and set after first Set")
	}
	s.Set(errors.New("second"))
	if s.Err().Error() != "first" {
		t.Fatalf("second Set must be a no-op, got err=%v", s.Err())
	}
}

func TestStatusSetOkDoesNotUnsetSet(t *testing.T) {
	var s Status
	s.Set(nil)
	if !s.Ok() || !s.IsSet() {
		t.Fatal("Set(nil) marks the status ok but set")
	}
	s.Set(errors.New("late"))
	if !s.Ok() {
		t.Fatal("a later Set must not override the first outcome")
	}
}

func TestStatusConcurrentSetIsRace_Free(t *testing.T) {
	var s Status
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				s.Set(errors.New("err"))
			} else {
				s.Set(nil)
			}
		}(i)
	}
	wg.Wait()
	if !s.IsSet() {
		t.Fatal("status must be set after concurrent writers")
	}
}

type fakeResponseProvider struct{ names map[string]bool }

func (f fakeResponseProvider) RequiresOutput(name string) bool { return f.names[name] }
func (f fakeResponseProvider) AllocateOutputBuffer(name string, size int, shape []int64, preferred MemType) ([]byte, MemType, error) {
	return make([]byte, size), preferred, nil
}

func TestNewPayloadHasFreshStatus(t *testing.T) {
	p := NewPayload(Request{BatchSize: 1}, fakeResponseProvider{names: map[string]bool{"y": true}}, nil)
	if p.Status == nil || p.Status.IsSet() {
		t.Fatal("NewPayload must attach a fresh, unset status")
	}
	if !p.ResponseProvider.RequiresOutput("y") {
		t.Fatal("response provider wiring broken")
	}
}
