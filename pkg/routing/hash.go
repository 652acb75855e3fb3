package routing

// Hash computes the djb2-xor digest of key: h = h*33 ^ c over an
// unsigned 32-bit accumulator, seeded with 5381. It is a sharding
// function, not a security boundary: fast, deterministic, and uniform
// enough to spread keys across a handful of replicas. It must stay pure
// and side-effect-free.
func Hash(key string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(key); i++ {
		h = h*33 ^ uint32(key[i])
	}
	return h
}

// Index reduces Hash(key) to a backend index in [0, n). n must be
// positive. Changing n reshuffles nearly all keys; replica count only
// changes on deploy, so that cost is accepted.
func Index(key string, n int) int {
	return int(Hash(key) % uint32(n))
}
