package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCreateMultipartUpload(t *testing.T) {
	body := []byte(`<InitiateMultipartUploadResult><Bucket>b</Bucket><Key>k</Key><UploadId>abc-123</UploadId></InitiateMultipartUploadResult>`)
	id, err := ParseCreateMultipartUpload(body)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)
}

func TestParseCreateMultipartUploadMissing(t *testing.T) {
	_, err := ParseCreateMultipartUpload([]byte(`<InitiateMultipartUploadResult></InitiateMultipartUploadResult>`))
	assert.ErrorIs(t, err, ErrMissingUploadID)
}

func TestCaptureSSEHeaders(t *testing.T) {
	headers := map[string]string{
		"X-Amz-Server-Side-Encryption-Customer-Algorithm": "AES256",
		"Content-Type": "application/xml",
	}
	out := CaptureSSEHeaders(headers)
	assert.Equal(t, "AES256", out["x-amz-server-side-encryption-customer-algorithm"])
	_, ok := out["Content-Type"]
	assert.False(t, ok)
}

func TestParseUploadPartETag(t *testing.T) {
	etag, ok := ParseUploadPartETag(map[string]string{"Etag": `"deadbeef"`})
	require.True(t, ok)
	assert.Equal(t, "deadbeef", etag)

	_, ok = ParseUploadPartETag(map[string]string{"Content-Length": "10"})
	assert.False(t, ok)
}

func TestParseCompleteMultipartUpload(t *testing.T) {
	body := []byte(`<CompleteMultipartUploadResult><ETag>&quot;finaletag&quot;</ETag></CompleteMultipartUploadResult>`)
	etag, ok := ParseCompleteMultipartUpload(body)
	require.True(t, ok)
	assert.Equal(t, "finaletag", etag)
}

func TestParseListPartsSinglePage(t *testing.T) {
	body := []byte(`<ListPartsResult>
		<IsTruncated>false</IsTruncated>
		<Part><PartNumber>1</PartNumber><ETag>&quot;e1&quot;</ETag><ChecksumCRC32C>AAA=</ChecksumCRC32C></Part>
		<Part><PartNumber>2</PartNumber><ETag>&quot;e2&quot;</ETag></Part>
	</ListPartsResult>`)
	page, err := ParseListParts(body)
	require.NoError(t, err)
	assert.False(t, page.IsTruncated)
	require.Len(t, page.Parts, 2)
	assert.Equal(t, 1, page.Parts[0].Number)
	assert.Equal(t, "e1", page.Parts[0].ETag)
	assert.Equal(t, "AAA=", page.Parts[0].Checksums["ChecksumCRC32C"])
	assert.Equal(t, 2, page.Parts[1].Number)
	assert.Empty(t, page.Parts[1].Checksums)
}

func TestParseListPartsTruncated(t *testing.T) {
	body := []byte(`<ListPartsResult>
		<IsTruncated>true</IsTruncated>
		<NextPartNumberMarker>3</NextPartNumberMarker>
		<Part><PartNumber>3</PartNumber><ETag>&quot;e3&quot;</ETag></Part>
	</ListPartsResult>`)
	page, err := ParseListParts(body)
	require.NoError(t, err)
	assert.True(t, page.IsTruncated)
	assert.Equal(t, "3", page.NextPartMarker)
	require.Len(t, page.Parts, 1)
}

func TestParseListPartsMalformed(t *testing.T) {
	_, err := ParseListParts([]byte(`<ListPartsResult><Part><PartNumber>1</PartNumber></ListPartsResult>`))
	assert.ErrorIs(t, err, ErrListPartsParseFailed)
}

func TestParseErrorResponse(t *testing.T) {
	body := []byte(`<Error><Code>NoSuchUpload</Code><Message>boom</Message><RequestId>req-1</RequestId></Error>`)
	e := ParseErrorResponse(body)
	assert.Equal(t, "NoSuchUpload", e.Code)
	assert.Equal(t, "boom", e.Message)
	assert.Equal(t, "req-1", e.RequestID)
}
