package reqcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// KeySeparator joins the parts of a cache key.
const KeySeparator = ":"

// Key joins parts into a cache key: Key("students", "school", 7) is
// "students:school:7". Parts are formatted with fmt.Sprint.
func Key(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, KeySeparator)
}

// HashKey builds a key of the form prefix:hash(parts...). Use it for lookups
// parameterized by structured values such as query filters, where joining
// the parts would give long or ambiguous keys.
func HashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	sum := sha256.Sum256(data)
	return prefix + KeySeparator + hex.EncodeToString(sum[:])
}

// Keyer builds keys under a fixed prefix, so that everything one component
// caches can be dropped with a single InvalidateByPrefix.
//
//	school := reqcache.Scoped("school:42")
//	school.Key("classes")            // "school:42:classes"
//	cache.InvalidateByPrefix(school.Prefix())
type Keyer struct {
	prefix string
}

// Scoped returns a Keyer for prefix.
func Scoped(prefix string) Keyer {
	return Keyer{prefix: strings.TrimSuffix(prefix, KeySeparator)}
}

// Prefix returns the prefix including its trailing separator.
func (k Keyer) Prefix() string {
	if k.prefix == "" {
		return ""
	}
	return k.prefix + KeySeparator
}

// Key returns the prefixed key for parts.
func (k Keyer) Key(parts ...any) string {
	return k.Prefix() + Key(parts...)
}

// HashKey returns the prefixed hashed key for parts.
func (k Keyer) HashKey(parts ...any) string {
	if k.prefix == "" {
		return HashKey("", parts...)[len(KeySeparator):]
	}
	return HashKey(k.prefix, parts...)
}

// Scoped nests another prefix under k.
func (k Keyer) Scoped(prefix string) Keyer {
	return Scoped(k.Prefix() + prefix)
}
