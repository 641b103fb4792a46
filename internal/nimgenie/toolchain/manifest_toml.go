package toolchain

import (
	"github.com/BurntSushi/toml"
)

// manifestShape captures just the "bin" field many .nimble manifests carry
// in a TOML-compatible shape (bin = "name" or bin = ["a", "b"]).
type manifestShape struct {
	Bin interface{} `toml:"bin"`
}

// binNameFromTOML attempts a best-effort TOML decode of a .nimble manifest
// and extracts the first bin name. Nimble manifests are NimScript, not
// TOML, so this only succeeds for the common case of plain `bin = "x"` /
// `bin = ["x", "y"]` assignments with no other NimScript syntax; callers
// fall back to a line scan on failure.
func binNameFromTOML(data []byte) (string, bool) {
	var m manifestShape
	if _, err := toml.Decode(string(data), &m); err != nil {
		return "", false
	}
	switch v := m.Bin.(type) {
	case string:
		if v != "" {
			return v, true
		}
	case []interface{}:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}
