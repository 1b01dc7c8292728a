package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// ComputeSignatureHash computes a deterministic hash from a symbol's semantic
// identity: full name, kind, visibility, modifiers, declared or value type and
// parameter signature. Location changes do NOT affect the hash.
func ComputeSignatureHash(fullName, kind, visibility string, modifiers []string, typeName, signature string) string {
	h := sha256.New()

	fmt.Fprintf(h, "name:%s\n", fullName)
	fmt.Fprintf(h, "kind:%s\n", kind)
	fmt.Fprintf(h, "visibility:%s\n", visibility)

	// Modifiers are sorted for determinism.
	sorted := make([]string, len(modifiers))
	copy(sorted, modifiers)
	sort.Strings(sorted)
	fmt.Fprintf(h, "modifiers:%s\n", strings.Join(sorted, ","))

	fmt.Fprintf(h, "type:%s\n", typeName)
	fmt.Fprintf(h, "signature:%s\n", signature)

	return fmt.Sprintf("%x", h.Sum(nil))
}
