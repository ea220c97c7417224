package encoding

import (
	"testing"
)

func TestCanonicalJSONSortsKeys(t *testing.T) {
	got, err := CanonicalJSON(map[string]any{"b": 2, "a": 1, "c": map[string]any{"z": true, "y": false}})
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v, want nil", err)
	}
	want := `{"a":1,"b":2,"c":{"y":false,"z":true}}`
	if string(got) != want {
		t.Fatalf("CanonicalJSON() = %s, want %s", got, want)
	}
}

func TestCanonicalJSONStableAcrossEquivalentInputs(t *testing.T) {
	first, err := CanonicalJSON(map[string]any{"hand": []string{"AH", "2H"}, "score": 10})
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v, want nil", err)
	}
	second, err := CanonicalJSON(struct {
		Score int      `json:"score"`
		Hand  []string `json:"hand"`
	}{Score: 10, Hand: []string{"AH", "2H"}})
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v, want nil", err)
	}
	if string(first) != string(second) {
		t.Fatalf("canonical outputs differ: %s vs %s", first, second)
	}
}

func TestCanonicalJSONDoesNotEscapeHTML(t *testing.T) {
	got, err := CanonicalJSON(map[string]any{"name": "a<b>&c"})
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v, want nil", err)
	}
	want := `{"name":"a<b>&c"}`
	if string(got) != want {
		t.Fatalf("CanonicalJSON() = %s, want %s", got, want)
	}
}

func TestContentHashIsDeterministic(t *testing.T) {
	a, err := ContentHash(map[string]any{"x": 1, "y": 2})
	if err != nil {
		t.Fatalf("ContentHash() error = %v, want nil", err)
	}
	b, err := ContentHash(map[string]any{"y": 2, "x": 1})
	if err != nil {
		t.Fatalf("ContentHash() error = %v, want nil", err)
	}
	if a != b {
		t.Fatalf("ContentHash() mismatch: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("ContentHash() length = %d, want 32", len(a))
	}
}

func TestContentHashDiffers(t *testing.T) {
	a, err := ContentHash(map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("ContentHash() error = %v, want nil", err)
	}
	b, err := ContentHash(map[string]any{"x": 2})
	if err != nil {
		t.Fatalf("ContentHash() error = %v, want nil", err)
	}
	if a == b {
		t.Fatal("ContentHash() values collide for different inputs")
	}
}
