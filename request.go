package s3transfer

import (
	"net/http"
)

// RequestTag identifies which wire-protocol operation a Request performs.
type RequestTag int

const (
	TagPart RequestTag = iota
	TagListParts
	TagCreateMultipartUpload
	TagCompleteMultipartUpload
	TagAbortMultipartUpload
)

func (t RequestTag) String() string {
	switch t {
	case TagPart:
		return "PART"
	case TagListParts:
		return "LIST_PARTS"
	case TagCreateMultipartUpload:
		return "CREATE_MULTIPART_UPLOAD"
	case TagCompleteMultipartUpload:
		return "COMPLETE_MULTIPART_UPLOAD"
	case TagAbortMultipartUpload:
		return "ABORT_MULTIPART_UPLOAD"
	default:
		return "UNKNOWN"
	}
}

// RequestFlags are per-request hints to the scheduler/HTTP layer.
type RequestFlags int

const (
	RequestFlagsNone RequestFlags = 0
	// RequestFlagRecordResponseHeaders marks a request whose response
	// headers matter. The scheduler does not read it: response headers
	// are captured into Request.ResponseHeaders for every request.
	RequestFlagRecordResponseHeaders RequestFlags = 1 << iota
	// RequestFlagAlwaysSend marks requests that must go out regardless
	// of queue depth (abort-MPU). The scheduler does not read it, so such
	// requests pass through the same admission ceiling as any other.
	RequestFlagAlwaysSend
)

// Request is a single HTTP request artifact belonging to a MetaRequest:
// one part upload, one list-parts page, or one of the create/complete/
// abort control requests.
type Request struct {
	Tag     RequestTag
	PartNum int // 1-based; 0 if not applicable
	Flags   RequestFlags

	// VIPIndex selects which of an endpoint's per-VIP connection
	// sub-pools this request is sent on (see vipForPart). Zero for
	// control requests, which don't carry a part number to hash.
	VIPIndex int

	Body []byte

	ResponseStatus  int
	ResponseHeaders http.Header
	ResponseBody    []byte

	// NumTimesPrepared counts preparation attempts. A value > 1 means
	// this is a retry with body bytes already materialized, so
	// preparation must not re-read the user's body stream.
	NumTimesPrepared int

	owner MetaRequest
}

func newRequest(tag RequestTag, partNum int, flags RequestFlags, owner MetaRequest) *Request {
	return &Request{Tag: tag, PartNum: partNum, Flags: flags, owner: owner}
}
