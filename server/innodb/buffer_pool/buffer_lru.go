package buffer_pool

import "errors"

var KeyNotFoundError = errors.New("Key not found.")

// EvictedFunc is invoked with (key, value) whenever OptimizedLRUCache's
// capacity eviction drops a resident frame, whether from the young, old,
// or ordinary sublist. Evict, Remove and Purge do not invoke it.
// KernelPool uses it to tear down the matching btree.Block.
type (
	EvictedFunc      func(interface{}, interface{})
	PurgeVisitorFunc func(interface{}, interface{})
)
