package wire

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMissingUploadID is returned by ParseCreateMultipartUpload when the
// response body has no top-level <UploadId> element.
var ErrMissingUploadID = errors.New("wire: response missing UploadId element")

// ErrListPartsParseFailed is returned by ParseListParts when the response
// body cannot be decomposed into well-formed <Part> records.
var ErrListPartsParseFailed = errors.New("wire: could not parse ListParts response")

// SSEHeaderNames are the three customer-SSE headers CreateMultipartUpload's
// response may carry, which must be echoed into the final user-facing
// headers on Complete-MPU success.
var SSEHeaderNames = []string{
	"x-amz-server-side-encryption-customer-algorithm",
	"x-amz-server-side-encryption-customer-key-MD5",
	"x-amz-server-side-encryption-context",
}

// ParseCreateMultipartUpload extracts the UploadId from a
// CreateMultipartUpload response body.
func ParseCreateMultipartUpload(body []byte) (string, error) {
	id, ok := extractTopLevelTag(body, "UploadId")
	if !ok || id == "" {
		return "", ErrMissingUploadID
	}
	return id, nil
}

// CaptureSSEHeaders extracts the subset of headers listed in
// SSEHeaderNames, lower-casing lookups for header maps that preserve
// arbitrary case.
func CaptureSSEHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string)
	lower := make(map[string]string, len(headers))
	for k, v := range headers {
		lower[strings.ToLower(k)] = v
	}
	for _, name := range SSEHeaderNames {
		if v, ok := lower[strings.ToLower(name)]; ok {
			out[name] = v
		}
	}
	return out
}

// ParseUploadPartETag extracts and quote-strips the ETag response header
// from an UploadPart response.
func ParseUploadPartETag(headers map[string]string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, "ETag") {
			return stripQuotes(v), true
		}
	}
	return "", false
}

// ParseCompleteMultipartUpload extracts and decodes the top-level ETag
// element from a CompleteMultipartUpload response body. Values arrive
// XML-entity encoded and must be decoded before storing.
func ParseCompleteMultipartUpload(body []byte) (string, bool) {
	raw, ok := extractTopLevelTag(body, "ETag")
	if !ok {
		return "", false
	}
	return stripQuotes(decodeXMLQuoteEntity(raw)), true
}

// ListedPart is one <Part> record from a ListParts response page.
type ListedPart struct {
	Number    int
	ETag      string
	Checksums map[string]string // element name -> base64 value, e.g. "ChecksumCRC32C"
}

// ListPartsPage is one page of a ListParts response.
type ListPartsPage struct {
	Parts          []ListedPart
	IsTruncated    bool
	NextPartMarker string
}

var checksumElements = []string{"ChecksumCRC32", "ChecksumCRC32C", "ChecksumSHA1", "ChecksumSHA256"}

// ParseListParts parses a ListParts response body into a page of part
// records. It operates on each top-level <Part>...</Part> block in turn
// and does not build a general document tree.
func ParseListParts(body []byte) (ListPartsPage, error) {
	var page ListPartsPage

	s := string(body)
	if truncated, ok := extractTopLevelTag(body, "IsTruncated"); ok {
		page.IsTruncated = truncated == "true"
	}
	if marker, ok := extractTopLevelTag(body, "NextPartNumberMarker"); ok {
		page.NextPartMarker = marker
	}

	for {
		start := strings.Index(s, "<Part>")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], "</Part>")
		if end < 0 {
			return page, ErrListPartsParseFailed
		}
		block := []byte(s[start+len("<Part>") : start+end])
		s = s[start+end+len("</Part>"):]

		numStr, ok := extractTopLevelTag(block, "PartNumber")
		if !ok {
			return page, ErrListPartsParseFailed
		}
		num, err := strconv.Atoi(numStr)
		if err != nil {
			return page, ErrListPartsParseFailed
		}

		part := ListedPart{Number: num, Checksums: map[string]string{}}
		if etag, ok := extractTopLevelTag(block, "ETag"); ok {
			part.ETag = stripQuotes(decodeXMLQuoteEntity(etag))
		}
		for _, elem := range checksumElements {
			if v, ok := extractTopLevelTag(block, elem); ok && v != "" {
				part.Checksums[elem] = v
			}
		}
		page.Parts = append(page.Parts, part)
	}

	return page, nil
}
