// Package wire implements the object-store multi-part upload wire protocol:
// building the five request shapes (create/part/complete/abort/list) and
// parsing their responses.
//
// This package serves as the serialization layer under the meta-request
// engine's AutoRangedPut state machine. It focuses on correctness for the
// ad hoc, top-level-only XML handling the protocol calls for rather than
// general-purpose XML decoding — there is deliberately no struct-tag
// unmarshalling here: callers only ever need a handful of well-known
// top-level elements and exact byte-for-byte control over quoting, not a
// document model.
//
// # Requests
//
//	req := wire.NewCreateMultipartUpload(bucket, key, headers)
//	req := wire.NewUploadPart(bucket, key, uploadID, partNumber, body, headers)
//	req := wire.NewCompleteMultipartUpload(bucket, key, uploadID, parts)
//	req := wire.NewAbortMultipartUpload(bucket, key, uploadID)
//	req := wire.NewListParts(bucket, key, uploadID, marker)
//
// # Responses
//
//	uploadID, err := wire.ParseCreateMultipartUpload(body)
//	sse := wire.CaptureSSEHeaders(responseHeaders)
//	etag, ok := wire.ParseUploadPartETag(headers)
//	etag, ok := wire.ParseCompleteMultipartUpload(body)
//	page, err := wire.ParseListParts(body)
package wire
