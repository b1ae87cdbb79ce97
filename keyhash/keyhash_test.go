package keyhash

import (
	"strings"
	"testing"
)

func TestHashContent_Deterministic(t *testing.T) {
	a := HashContent("suggest three titles for this article")
	b := HashContent("suggest three titles for this article")
	if a != b {
		t.Errorf("same input hashed differently: %s vs %s", a, b)
	}
	if len(a) != DigestLen {
		t.Errorf("expected %d-char digest, got %d", DigestLen, len(a))
	}
}

func TestHashContent_TrimsWhitespace(t *testing.T) {
	base := HashContent("article body")
	for _, variant := range []string{"  article body", "article body\n\n", "\tarticle body  "} {
		if got := HashContent(variant); got != base {
			t.Errorf("whitespace variant %q hashed to %s, want %s", variant, got, base)
		}
	}
}

func TestHashContent_DistinctInputs(t *testing.T) {
	if HashContent("alpha") == HashContent("beta") {
		t.Error("distinct inputs produced identical digests")
	}
}

func TestHashParams_KeyOrderInvariant(t *testing.T) {
	a := HashParams(map[string]any{"tone": "formal", "count": 3, "lang": "en"})
	b := HashParams(map[string]any{"lang": "en", "count": 3, "tone": "formal"})
	if a != b {
		t.Errorf("reordered params hashed differently: %s vs %s", a, b)
	}
}

func TestHashParams_NestedKeyOrderInvariant(t *testing.T) {
	a := HashParams(map[string]any{"outer": map[string]any{"x": 1, "y": 2}})
	b := HashParams(map[string]any{"outer": map[string]any{"y": 2, "x": 1}})
	if a != b {
		t.Error("nested reordered params hashed differently")
	}
}

func TestHashParams_StructEqualsMap(t *testing.T) {
	type opts struct {
		Count int    `json:"count"`
		Tone  string `json:"tone"`
	}
	a := HashParams(opts{Count: 3, Tone: "casual"})
	b := HashParams(map[string]any{"tone": "casual", "count": 3})
	if a != b {
		t.Errorf("struct and equivalent map hashed differently: %s vs %s", a, b)
	}
}

func TestHashParams_DistinctValues(t *testing.T) {
	a := HashParams(map[string]any{"count": 3})
	b := HashParams(map[string]any{"count": 5})
	if a == b {
		t.Error("distinct params produced identical digests")
	}
}

func TestBuildKey_Shape(t *testing.T) {
	ch := HashContent("body")
	ph := HashParams(map[string]any{"count": 3})

	key := BuildKey("titles", ch)
	if key != "titles:"+ch {
		t.Errorf("unexpected key: %s", key)
	}

	key = BuildKey("titles", ch, ph)
	if key != "titles:"+ch+":"+ph {
		t.Errorf("unexpected key with params: %s", key)
	}
}

func TestBuildKey_EmptyParamsHashOmitted(t *testing.T) {
	ch := HashContent("body")
	if got := BuildKey("seo", ch, ""); got != BuildKey("seo", ch) {
		t.Errorf("empty params hash should be omitted, got %s", got)
	}
}

func TestBuildKey_NoConcatenationCollisions(t *testing.T) {
	ch := HashContent("body")
	a := BuildKey("suggest:titles", ch)
	b := BuildKey("suggest", ch)
	if a == b || strings.Contains(a, "suggest:titles:") {
		t.Errorf("endpoint separator not escaped: %s", a)
	}
	if BuildKey("a%3Ab", ch) == BuildKey("a:b", ch) {
		t.Error("escaped and raw separator endpoints collided")
	}
}

func TestCanonicalJSON_SortsKeys(t *testing.T) {
	got := CanonicalJSON(map[string]any{"b": 1, "a": 2})
	if got != `{"a":2,"b":1}` {
		t.Errorf("expected sorted canonical JSON, got %s", got)
	}
}
