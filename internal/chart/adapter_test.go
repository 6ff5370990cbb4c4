package chart

import (
	"errors"
	"testing"

	"github.com/rickgao/tradedeck/internal/model"
)

type fakeRenderer struct {
	kind    string
	closed  bool
	sets    int
	appends int
}

func (f *fakeRenderer) Kind() string                                 { return f.kind }
func (f *fakeRenderer) SetData(string, []model.TimePoint) error      { f.sets++; return nil }
func (f *fakeRenderer) SetCandles(string, []model.CandlePoint) error { return nil }
func (f *fakeRenderer) AppendPoint(string, model.TimePoint) error    { f.appends++; return nil }
func (f *fakeRenderer) SetAnnotations([]Annotation) error            { return nil }
func (f *fakeRenderer) Clear(string) error                           { return nil }
func (f *fakeRenderer) Close() error                                 { f.closed = true; return nil }

// trackingFactory fails for kinds in unavailable and records every renderer it
// builds.
func trackingFactory(unavailable map[string]bool, built *[]*fakeRenderer) Factory {
	return func(kind string) (Renderer, error) {
		if unavailable[kind] {
			return nil, ErrBackendUnavailable
		}
		r := &fakeRenderer{kind: kind}
		*built = append(*built, r)
		return r, nil
	}
}

func TestInitMovesToReady(t *testing.T) {
	var built []*fakeRenderer
	a := NewAdapter(trackingFactory(nil, &built), KindSnapshot, nil)

	if a.State() != StateUninitialized {
		t.Fatalf("initial state = %s, want uninitialized", a.State())
	}
	if err := a.Init(KindStream); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if a.State() != StateReady {
		t.Errorf("state = %s, want ready", a.State())
	}
	if a.Kind() != KindStream {
		t.Errorf("Kind = %q, want stream", a.Kind())
	}
}

func TestInitFallsBackWhenPreferredUnavailable(t *testing.T) {
	var built []*fakeRenderer
	a := NewAdapter(trackingFactory(map[string]bool{KindStream: true}, &built), KindSnapshot, nil)

	if err := a.Init(KindStream); err != nil {
		t.Fatalf("Init failed despite fallback: %v", err)
	}
	if a.Kind() != KindSnapshot {
		t.Errorf("Kind = %q, want snapshot fallback", a.Kind())
	}
}

func TestInitFailsWhenNothingAvailable(t *testing.T) {
	var built []*fakeRenderer
	unavailable := map[string]bool{KindStream: true, KindSnapshot: true}
	a := NewAdapter(trackingFactory(unavailable, &built), KindSnapshot, nil)

	err := a.Init(KindStream)
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
	if a.State() != StateUninitialized {
		t.Errorf("state = %s after failed init, want uninitialized", a.State())
	}
}

func TestOperationsRequireReady(t *testing.T) {
	var built []*fakeRenderer
	a := NewAdapter(trackingFactory(nil, &built), "", nil)

	err := a.AppendPoint("price", model.TimePoint{Timestamp: 1, Value: 1})
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("AppendPoint before Init: err = %v, want ErrNotReady", err)
	}
}

func TestRecreateTearsDownOldRendererFirst(t *testing.T) {
	var built []*fakeRenderer
	a := NewAdapter(trackingFactory(nil, &built), "", nil)

	if err := a.Init(KindStream); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := a.Recreate(KindSnapshot); err != nil {
		t.Fatalf("Recreate failed: %v", err)
	}

	if len(built) != 2 {
		t.Fatalf("built %d renderers, want 2", len(built))
	}
	if !built[0].closed {
		t.Error("old renderer not closed before recreate")
	}
	if built[1].closed {
		t.Error("new renderer is closed")
	}
	if a.Kind() != KindSnapshot || a.State() != StateReady {
		t.Errorf("adapter = (%s, %s), want (snapshot, ready)", a.Kind(), a.State())
	}
}

func TestDestroyIsTerminal(t *testing.T) {
	var built []*fakeRenderer
	a := NewAdapter(trackingFactory(nil, &built), "", nil)

	if err := a.Init(KindStream); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	a.Destroy()

	if a.State() != StateDestroyed {
		t.Fatalf("state = %s, want destroyed", a.State())
	}
	if !built[0].closed {
		t.Error("renderer not closed on Destroy")
	}
	if err := a.Init(KindStream); err == nil {
		t.Error("Init succeeded after Destroy")
	}
	if err := a.Recreate(KindSnapshot); err == nil {
		t.Error("Recreate succeeded after Destroy")
	}
	// Destroying twice is a no-op.
	a.Destroy()
}

func TestSnapshotRendererRoundTrip(t *testing.T) {
	r := NewSnapshotRenderer()

	r.SetData("price", []model.TimePoint{{Timestamp: 1000, Value: 1}})
	r.AppendPoint("price", model.TimePoint{Timestamp: 2000, Value: 2})
	r.SetAnnotations([]Annotation{{Key: "s1:0", Kind: AnnotationMarker, Price: 1.5}})

	r.mu.RLock()
	points := r.series["price"]
	r.mu.RUnlock()
	if len(points) != 2 || points[1].Timestamp != 2000 {
		t.Errorf("series = %+v, want 2 points ending at 2000", points)
	}

	r.Clear("price")
	r.mu.RLock()
	_, ok := r.series["price"]
	r.mu.RUnlock()
	if ok {
		t.Error("series survived Clear")
	}
}
