package storage

// KV is the byte-level state surface shared by the Pebble and in-memory
// backends. Get reports absence with found=false.
type KV interface {
	Get(key []byte) (value []byte, found bool, err error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// Iterate visits every key under prefix in order (or reverse order)
	// until fn returns false. Slices passed to fn are only valid for the
	// duration of the call.
	Iterate(prefix []byte, reverse bool, fn func(key, value []byte) bool) error
}

// Tx is a write batch over a Backend. Reads see the batch's own writes.
// Nothing reaches the backend until Commit; Discard drops the batch.
type Tx interface {
	KV
	Commit() error
	Discard()
}

// Backend is a KV that can open batches
type Backend interface {
	KV
	Begin() Tx
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] < 0xff {
			bound[i]++
			return bound[:i+1]
		}
	}
	return nil // prefix is all 0xff: no upper bound
}
