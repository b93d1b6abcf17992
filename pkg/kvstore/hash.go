package kvstore

const (
	fnvOffset64 uint64 = 14695981039346656037
	fnvPrime64  uint64 = 1099511628211
)

// StringHash is a deterministic FNV-1a hash for string keys. Scopes use it so
// that probe order does not depend on a per-process seed.
func StringHash(key string) uint64 {
	hash := fnvOffset64
	for i := 0; i < len(key); i++ {
		hash ^= uint64(key[i])
		hash *= fnvPrime64
	}
	return hash
}

// StringOptions returns default thresholds with StringHash.
func StringOptions() Options[string] {
	return Options[string]{Hash: StringHash}
}
