// Package internal holds small collaborators shared across the engine
// that have no business being part of its public surface.
package internal

// JumpHash implements Google's "Jump" Consistent Hash function
// (https://arxiv.org/abs/1406.2294). Given a part's hash key and the
// current VIP count, it picks a bucket in the range [0, numBuckets) such
// that, as numBuckets grows (more virtual IPs come into rotation),
// the minimum possible number of keys move to a different bucket — the
// property that makes this useful for part-to-VIP affinity instead of a
// plain modulo.
func JumpHash(key uint64, numBuckets int) int {
	if numBuckets <= 0 {
		return 0
	}

	var b int64 = -1
	var j int64

	for j < int64(numBuckets) {
		b = j
		key = key*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
	}

	return int(b)
}
