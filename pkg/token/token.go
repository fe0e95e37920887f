package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/oklog/ulid/v2"
)

const (
	prefix      = "RT"
	randomLen   = 26 // random part length, excluding prefix
	maxRetries  = 5
	base62Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Generator produces opaque receipt tokens. Tokens are used for public,
// unauthenticated receipt lookup so they must be unguessable.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns a new token: prefix + 26 random base62 characters.
func (g *Generator) Generate() string {
	result := make([]byte, randomLen)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(base62Chars))))
		result[i] = base62Chars[n.Int64()]
	}
	return prefix + string(result)
}

var (
	sortableMu      sync.Mutex
	sortableEntropy = ulid.Monotonic(rand.Reader, 0)
)

// GenerateSortable returns a ULID-based token with the standard prefix.
// Sortable by issue time; used for event ids and internal references, not
// public tokens. The shared entropy source keeps same-millisecond tokens
// strictly increasing.
func (g *Generator) GenerateSortable() string {
	sortableMu.Lock()
	defer sortableMu.Unlock()
	return prefix + ulid.MustNew(ulid.Now(), sortableEntropy).String()
}

// GenerateUnique generates a token and ensures uniqueness via the provided
// callback. checkFunc returns true when the candidate already exists.
func (g *Generator) GenerateUnique(checkFunc func(string) bool) (string, error) {
	for i := 0; i < maxRetries; i++ {
		tok := g.Generate()
		if checkFunc == nil || !checkFunc(tok) {
			return tok, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique token after %d attempts", maxRetries)
}
