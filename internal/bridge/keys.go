package bridge

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// DeriveKey turns a resolved template path into the registry key the
// generated module registers and renders under. Development builds use the
// path itself (readable, stable across rebuilds); production builds use a
// fixed-width hex digest so shipped code does not leak filesystem layout.
// Deterministic: the same inputs always yield the same key, which keeps
// cross-module references in generated code resolvable across builds.
func DeriveKey(path string, production bool) string {
	if !production {
		return path
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(path))
}
