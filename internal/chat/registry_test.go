package chat

import "testing"

func TestRegistry_CurrentCreatesOnce(t *testing.T) {
	r := NewRegistry("Claude Chat")
	v := r.Current()
	if v == nil || v.Name() != "Claude Chat" {
		t.Fatalf("Current() = %+v", v)
	}
	if r.Current() != v {
		t.Error("second Current() should return the same view")
	}
	if len(r.Views()) != 1 {
		t.Errorf("views = %d, want 1", len(r.Views()))
	}
}

func TestRegistry_NewForcesFreshView(t *testing.T) {
	r := NewRegistry("chat")
	first := r.Current()
	second := r.New()

	if first == second {
		t.Fatal("New() returned the existing view")
	}
	if r.Current() != second {
		t.Error("New() should make the view current")
	}
	if r.Index(second.ID()) != 2 {
		t.Errorf("Index = %d, want 2", r.Index(second.ID()))
	}
}

func TestRegistry_Activate(t *testing.T) {
	r := NewRegistry("chat")
	a := r.New()
	r.New()

	if !r.Activate(a.ID()) {
		t.Fatal("Activate returned false")
	}
	if r.Current() != a {
		t.Error("Activate did not switch the current view")
	}
	if r.Activate("missing") {
		t.Error("Activate(missing) = true")
	}
}

func TestRegistry_ClosePromotesFirst(t *testing.T) {
	r := NewRegistry("chat")
	a := r.New()
	b := r.New()
	c := r.New()

	if !r.Close(c.ID()) {
		t.Fatal("Close returned false")
	}
	if got := r.Current(); got != a {
		t.Errorf("Current after close = %s, want first view %s", got.ID(), a.ID())
	}
	if !r.Close(b.ID()) || r.Close(b.ID()) {
		t.Error("closing twice should fail the second time")
	}
	if len(r.Views()) != 1 {
		t.Errorf("views = %d, want 1", len(r.Views()))
	}
}

func TestRegistry_AddMakesCurrent(t *testing.T) {
	r := NewRegistry("chat")
	r.New()
	restored := NewView("restored")
	r.Add(restored)
	if r.Current() != restored {
		t.Error("Add should make the view current")
	}
}
