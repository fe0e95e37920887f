package token

import (
	"strings"
	"testing"
)

func TestGenerateFormat(t *testing.T) {
	g := NewGenerator()

	for i := 0; i < 100; i++ {
		tok := g.Generate()
		if !strings.HasPrefix(tok, prefix) {
			t.Fatalf("token %q missing prefix %q", tok, prefix)
		}
		if len(tok) != len(prefix)+randomLen {
			t.Fatalf("token length = %d, want %d", len(tok), len(prefix)+randomLen)
		}
		for _, c := range tok[len(prefix):] {
			if !strings.ContainsRune(base62Chars, c) {
				t.Fatalf("token %q contains unexpected character %q", tok, c)
			}
		}
	}
}

func TestGenerateSortableOrdering(t *testing.T) {
	g := NewGenerator()

	prev := ""
	for i := 0; i < 100; i++ {
		tok := g.GenerateSortable()
		if !strings.HasPrefix(tok, prefix) {
			t.Fatalf("token %q missing prefix %q", tok, prefix)
		}
		if len(tok) != len(prefix)+26 {
			t.Fatalf("token length = %d, want %d", len(tok), len(prefix)+26)
		}
		if tok <= prev {
			t.Fatalf("sortable tokens must strictly increase: %q after %q", tok, prev)
		}
		prev = tok
	}
}

func TestGenerateUniqueRetries(t *testing.T) {
	g := NewGenerator()

	calls := 0
	tok, err := g.GenerateUnique(func(string) bool {
		calls++
		return calls <= 2 // first two candidates "exist"
	})
	if err != nil {
		t.Fatal(err)
	}
	if tok == "" {
		t.Fatal("expected a token")
	}
	if calls != 3 {
		t.Fatalf("expected 3 candidate checks, got %d", calls)
	}
}

func TestGenerateUniqueExhausted(t *testing.T) {
	g := NewGenerator()

	if _, err := g.GenerateUnique(func(string) bool { return true }); err == nil {
		t.Fatal("expected failure when every candidate collides")
	}
}

func TestGenerateNoObviousCollisions(t *testing.T) {
	g := NewGenerator()

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		tok := g.Generate()
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token generated: %s", tok)
		}
		seen[tok] = struct{}{}
	}
}
