package txn

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const guidLength = 16

// IDGenerator can generate transaction guids.
type IDGenerator interface {
	// Generate an ID.
	Generate() string
}

// hexIDGenerator generates random fixed-length hexadecimal guids.
type hexIDGenerator struct{}

func (g *hexIDGenerator) Generate() string {
	b := make([]byte, guidLength/2)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand is effectively infallible; a time-derived guid keeps
		// the transaction usable if it ever is not.
		return fmt.Sprintf("%016x", time.Now().UnixNano())
	}

	return hex.EncodeToString(b)
}

// SequentialIDGenerator generates deterministic guids for tests.
type SequentialIDGenerator struct {
	nextID uint64
}

// Generate returns the next guid in sequence.
func (g *SequentialIDGenerator) Generate() string {
	id := fmt.Sprintf("%016x", g.nextID)
	g.nextID++

	return id
}
