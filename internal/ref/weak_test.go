package ref

import (
	"errors"
	"runtime"
	"testing"

	"github.com/starford/folio/internal/apperr"
)

type fakeManager struct {
	buf    [64]byte
	name   *string
	closed bool
}

func (m *fakeManager) Closed() bool { return m.closed }

func TestResolveLive(t *testing.T) {
	name := "docs"
	m := &fakeManager{name: &name}
	w := Make(m)

	got, err := w.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != m {
		t.Error("resolved to a different pointer")
	}
	runtime.KeepAlive(m)
}

func TestResolveClosed(t *testing.T) {
	m := &fakeManager{}
	w := Make(m)
	m.closed = true

	if _, err := w.Resolve(); !errors.Is(err, apperr.ErrManagerUnavailable) {
		t.Errorf("err = %v, want ErrManagerUnavailable", err)
	}
	runtime.KeepAlive(m)
}

func TestResolveZero(t *testing.T) {
	var w Weak[fakeManager]
	if _, err := w.Resolve(); !errors.Is(err, apperr.ErrManagerUnavailable) {
		t.Errorf("err = %v, want ErrManagerUnavailable", err)
	}
}

func TestResolveCollected(t *testing.T) {
	w := func() Weak[fakeManager] {
		name := "gone"
		return Make(&fakeManager{name: &name})
	}()

	for i := 0; i < 10; i++ {
		runtime.GC()
		if _, err := w.Resolve(); err != nil {
			if !errors.Is(err, apperr.ErrManagerUnavailable) {
				t.Fatalf("err = %v, want ErrManagerUnavailable", err)
			}
			return
		}
	}
	t.Error("referent still reachable after GC")
}
