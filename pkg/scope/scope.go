// Package scope canonicalizes the dimension sets that partition a subject's
// history into independent interval series. Two records for the same subject
// with different scopes (say {department: "ops"} vs {department: "sales"})
// belong to different series and may overlap freely.
//
// The store groups records by the canonical fingerprint, so series membership
// is a plain string equality instead of a semantic JSON comparison.
package scope

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
)

// Scope maps dimension names to values. Values may be strings, numbers, or
// nil; nil-valued dimensions are treated as absent.
type Scope map[string]any

// Fingerprint returns a 64-character hex SHA-256 digest of the canonical
// byte form of the scope. The canonical form drops nil-valued keys, sorts
// the remaining keys lexicographically, and normalizes numeric values, so
// two scopes that are equal after null-stripping always produce the same
// fingerprint regardless of key order or numeric representation.
func (s Scope) Fingerprint() string {
	keys := make([]string, 0, len(s))
	for k, v := range s {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		// Key and value are length-prefixed so that adjacent fields can
		// never be confused ({"ab": "c"} vs {"a": "bc"}).
		fmt.Fprintf(h, "%d:%s=", len(k), k)
		v := canonicalValue(s[k])
		fmt.Fprintf(h, "%d:%s;", len(v), v)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Equal reports whether two scopes are the same series key.
func (s Scope) Equal(other Scope) bool {
	return s.Fingerprint() == other.Fingerprint()
}

// canonicalValue renders a scope value as a type-tagged string. All numeric
// types collapse to one representation so that int(1) and float64(1) compare
// equal, while the string "1" stays distinct.
func canonicalValue(v any) string {
	switch x := v.(type) {
	case string:
		return "s:" + x
	case bool:
		return "b:" + strconv.FormatBool(x)
	case int:
		return "n:" + strconv.FormatFloat(float64(x), 'g', -1, 64)
	case int32:
		return "n:" + strconv.FormatFloat(float64(x), 'g', -1, 64)
	case int64:
		return "n:" + strconv.FormatFloat(float64(x), 'g', -1, 64)
	case float32:
		return "n:" + strconv.FormatFloat(float64(x), 'g', -1, 64)
	case float64:
		return "n:" + strconv.FormatFloat(x, 'g', -1, 64)
	case fmt.Stringer:
		return "s:" + x.String()
	default:
		return fmt.Sprintf("v:%v", x)
	}
}
