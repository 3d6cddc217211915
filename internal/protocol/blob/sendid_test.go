package blob

import (
	"sync"
	"testing"

	"pgregory.net/rapid"
)

// TestNextSendIDUniqueUnderConcurrency exercises §8's send_id monotonicity
// property directly against the counter callers actually race on: every
// concurrent caller of nextSendID must observe a distinct value, and the
// set of values handed out must be exactly [0, n).
func TestNextSendIDUniqueUnderConcurrency(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 200).Draw(t, "goroutines")

		b := &Behaviour{}
		ids := make([]uint64, n)
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func(i int) {
				defer wg.Done()
				ids[i] = b.nextSendID()
			}(i)
		}
		wg.Wait()

		seen := make(map[uint64]bool, n)
		for _, id := range ids {
			if seen[id] {
				t.Fatalf("send_id %d assigned more than once", id)
			}
			seen[id] = true
			if id >= uint64(n) {
				t.Fatalf("send_id %d out of expected range [0, %d)", id, n)
			}
		}
	})
}
