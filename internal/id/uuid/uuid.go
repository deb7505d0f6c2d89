// Package uuid provides ID generation helpers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/JakeFAU/etym-crawler/internal/crawler"
)

// Generator creates random UUID v4 identifiers rendered as 32 hex characters,
// suitable as file names.
type Generator struct{}

var _ crawler.IDGenerator = Generator{}

// New creates a new Generator.
func New() Generator {
	return Generator{}
}

// NewID returns a UUIDv4 without dashes.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid4: %w", err)
	}
	return fmt.Sprintf("%x", id[:]), nil
}
