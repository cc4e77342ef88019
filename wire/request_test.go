package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreateMultipartUpload(t *testing.T) {
	req := NewCreateMultipartUpload("my-bucket", "a/b/c.bin", map[string]string{
		"x-amz-checksum-algorithm": "CRC32C",
	})
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/my-bucket/a/b/c.bin", req.Path)
	assert.Equal(t, "CRC32C", req.Headers["x-amz-checksum-algorithm"])
	_, ok := req.Query["uploads"]
	assert.True(t, ok)
}

func TestNewUploadPart(t *testing.T) {
	body := []byte("part body")
	req := NewUploadPart("bucket", "key", "upload-123", 4, body, map[string]string{"x-amz-checksum-crc32": "abcd"})
	assert.Equal(t, "PUT", req.Method)
	assert.Equal(t, "4", req.Query.Get("partNumber"))
	assert.Equal(t, "upload-123", req.Query.Get("uploadId"))
	assert.Equal(t, body, req.Body)
	assert.Equal(t, "abcd", req.Headers["x-amz-checksum-crc32"])
}

func TestNewCompleteMultipartUpload(t *testing.T) {
	parts := []PartRecord{
		{Number: 1, ETag: `etag-one`, ChecksumElem: "ChecksumCRC32C", ChecksumValue: "AAAA"},
		{Number: 2, ETag: `etag-two`},
	}
	req := NewCompleteMultipartUpload("bucket", "key", "upload-123", parts)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "upload-123", req.Query.Get("uploadId"))
	body := string(req.Body)
	assert.Contains(t, body, "<PartNumber>1</PartNumber>")
	assert.Contains(t, body, "<ETag>&quot;etag-one&quot;</ETag>")
	assert.Contains(t, body, "<ChecksumCRC32C>AAAA</ChecksumCRC32C>")
	assert.Contains(t, body, "<PartNumber>2</PartNumber>")
	assert.NotContains(t, body, "<ChecksumCRC32C>AAAA</ChecksumCRC32C><Part>")
}

func TestNewAbortAndListParts(t *testing.T) {
	abort := NewAbortMultipartUpload("bucket", "key", "upload-123")
	assert.Equal(t, "DELETE", abort.Method)
	assert.Equal(t, "upload-123", abort.Query.Get("uploadId"))

	first := NewListParts("bucket", "key", "upload-123", "")
	assert.Equal(t, "GET", first.Method)
	_, hasMarker := first.Query["part-number-marker"]
	assert.False(t, hasMarker)

	next := NewListParts("bucket", "key", "upload-123", "5")
	assert.Equal(t, "5", next.Query.Get("part-number-marker"))
}

func TestObjectPathEscapesKey(t *testing.T) {
	req := NewAbortMultipartUpload("bucket", "a dir/b.txt", "u")
	require.Equal(t, "/bucket/a%20dir/b.txt", req.Path)
}
