// utils/code.go
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
)

// NewMatchCode returns a shareable, unguessable match code like
// "pong-9f2ce4b81a37". Codes gate joining, so the random part carries 48
// bits; they double as broadcast topics, so they stay URL safe.
func NewMatchCode(variant string) string {
	buf := make([]byte, 6)
	rand.Read(buf)
	return fmt.Sprintf("%s-%s", slug.Make(variant), hex.EncodeToString(buf))
}

// NormalizeMatchCode folds a player-chosen code to the same shape generated
// codes have. Accents and symbols are transliterated before slugging so
// codes typed on different keyboards still collide when they should.
func NormalizeMatchCode(code string) string {
	return slug.Make(unidecode.Unidecode(code))
}
