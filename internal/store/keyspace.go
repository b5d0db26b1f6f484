package store

import "strings"

// DefaultKeyPrefix is the fixed namespace prepended to every storage key so
// cached snapshots never collide with unrelated data living in the same
// physical store.
const DefaultKeyPrefix = "statekeeper"

// keyspace wraps and unwraps caller keys with the fixed namespace prefix.
type keyspace struct {
	prefix string
}

func newKeyspace(prefix string) keyspace {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return keyspace{prefix: prefix}
}

// wrap turns a caller key into the physical storage key.
func (k keyspace) wrap(key string) string {
	return k.prefix + ":" + key
}

// unwrap strips the namespace prefix off a physical key. ok is false for
// keys outside this namespace.
func (k keyspace) unwrap(fullKey string) (string, bool) {
	rest, found := strings.CutPrefix(fullKey, k.prefix+":")
	if !found {
		return "", false
	}
	return rest, true
}
