package fix

import (
	"fmt"

	"github.com/golang/groupcache/lru"
	"github.com/mitchellh/hashstructure/v2"
)

// DefaultDedupeSize is how many recent fixes the dedupe filter remembers.
const DefaultDedupeSize = 1000

// NewDedupeLRUFunc returns a filter that is false for a fix it has
// seen among the last size distinct fixes. Replayed logs and retrying
// clients often resend identical readings.
func NewDedupeLRUFunc(size int) func(Fix) bool {
	var dedupeCache = lru.New(size)
	return func(f Fix) bool {
		hash, err := hashstructure.Hash(f, hashstructure.FormatV2, nil)
		if err != nil {
			return true
		}
		key := fmt.Sprintf("%d", hash)
		if _, ok := dedupeCache.Get(key); ok {
			return false
		}
		dedupeCache.Add(key, true)
		return true
	}
}
