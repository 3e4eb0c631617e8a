package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SynthesizeID derives the stable id of a synthesized question from its
// structured key dict: SHA-256 hex of the canonical JSON encoding (sorted
// keys), so semantically equivalent questions hash equal.
func SynthesizeID(key map[string]string) string {
	// json.Marshal sorts map keys, which is exactly the canonical form
	data, err := json.Marshal(key)
	if err != nil {
		// map[string]string cannot fail to encode
		panic(fmt.Sprintf("unhashable question key: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
