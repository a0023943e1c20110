package gonutstash

// DefaultMemoryEntries bounds the in-process cache used when no cache
// option is given at all.
const DefaultMemoryEntries = 100_000

// DefaultOptions returns the recommended set of options for production use:
// a Redis cache fronted by a small in-process tier.
func DefaultOptions(redisAddr string) []Option {
	return []Option{
		WithRedis(redisAddr, "", 0),
		WithMemory(DefaultMemoryEntries),
	}
}
