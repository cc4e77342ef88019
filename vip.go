package s3transfer

import (
	"hash/fnv"

	"github.com/packit-aws-playground/s3transfer/internal"
)

// vipForPart assigns a part to one of vipCount virtual IPs using
// consistent hashing, so that changing vipCount (throughput target
// re-tuned mid-upload) reshuffles the minimum number of part-to-VIP
// assignments rather than all of them. Request.VIPIndex carries the
// result to endpoint.acquireHTTPConnection, which keeps one connection
// sub-pool per VIP so parts assigned to different VIPs never contend for
// the same connection even though they share a host.
func vipForPart(uploadID string, partNum int, vipCount int) int {
	if vipCount <= 1 {
		return 0
	}
	h := fnv.New64a()
	h.Write([]byte(uploadID))
	var buf [8]byte
	putUint64(buf[:], uint64(partNum))
	h.Write(buf[:])
	return internal.JumpHash(h.Sum64(), vipCount)
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
