// Package vectorliteral renders float32 vectors as the text literal form a
// MySQL-wire-compatible RDBMS's VECTOR(D) columns accept, and enforces the
// NULL-preservation and dimension rules the core specification requires:
// an empty vector becomes SQL NULL (not the literal "[]"), and a non-empty
// vector must have exactly the configured dimension.
package vectorliteral

import (
	"fmt"
	"strconv"
	"strings"
)

// Encode renders vec as "[f1,f2,...]", or returns ok=false for an empty
// vector — callers must bind NULL in that case rather than this literal.
func Encode(vec []float32) (literal string, ok bool) {
	if len(vec) == 0 {
		return "", false
	}
	parts := make([]string, len(vec))
	for i, f := range vec {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]", true
}

// CheckDimension validates that vec is either empty or exactly dimension D
// long. Returns an error for a non-empty vector of the wrong length.
func CheckDimension(vec []float32, d int) error {
	if len(vec) == 0 {
		return nil
	}
	if len(vec) != d {
		return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(vec), d)
	}
	return nil
}
