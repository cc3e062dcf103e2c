package keys

import "testing"

func TestNameIsDeterministic(t *testing.T) {
	a := Name("users", "abc123")
	b := Name("users", "abc123")
	if a != b {
		t.Fatalf("Name not deterministic: %q vs %q", a, b)
	}
}

func TestNameDistinguishesCategories(t *testing.T) {
	if User("42") == Location("42") {
		t.Fatalf("user and location keys collide for the same id: %q", User("42"))
	}
}

func TestWellKnownKeys(t *testing.T) {
	if got, want := Checkins(), "vp:checkins"; got != want {
		t.Errorf("Checkins() = %q, want %q", got, want)
	}
	if got, want := User("u1"), "vp:users:u1"; got != want {
		t.Errorf("User(u1) = %q, want %q", got, want)
	}
	if got, want := ProcessorCursor(), "vp:checkinprocessor:lastid"; got != want {
		t.Errorf("ProcessorCursor() = %q, want %q", got, want)
	}
}

func TestNamePanicsOnColonSegment(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for segment containing a colon")
		}
	}()
	Name("users", "a:b")
}
