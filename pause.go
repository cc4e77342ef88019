package s3transfer

import "encoding/json"

// putMetaRequestTypeLiteral is the exact "type" field value a put resume
// token must carry; any other value (e.g. a get token) fails validation.
const putMetaRequestTypeLiteral = "AWS_S3_META_REQUEST_TYPE_PUT_OBJECT"

// pauseToken is the JSON shape persisted by Pause and accepted as a
// resume token. Stable across restarts: it carries everything needed to
// reconstruct an AutoRangedPut's progress via ListParts.
type pauseToken struct {
	Type              string `json:"type"`
	MultipartUploadID string `json:"multipart_upload_id"`
	PartitionSize     int64  `json:"partition_size"`
	TotalNumParts     int    `json:"total_num_parts"`
}

func marshalPauseToken(t pauseToken) ([]byte, error) {
	return json.Marshal(t)
}

func parsePauseToken(data []byte) (pauseToken, error) {
	var t pauseToken
	if err := json.Unmarshal(data, &t); err != nil {
		return pauseToken{}, wrapError(KindInvalidArgument, "malformed resume token", err)
	}
	return t, nil
}

// validateResumeToken checks a parsed token against the configured
// bounds and the upload's content length, per the construction-time
// resume validation rules. The implied part count is
// ceil(contentLength / t.PartitionSize), at least 1.
func validateResumeToken(t pauseToken, cfg *Config, contentLength int64) error {
	if t.Type != putMetaRequestTypeLiteral {
		return newError(KindInvalidArgument, "resume token type mismatch: "+t.Type)
	}
	if t.PartitionSize < cfg.MinPartSize {
		return newError(KindInvalidArgument, "resume token partition_size below configured minimum")
	}
	if t.TotalNumParts > cfg.MaxUploadParts {
		return newError(KindInvalidArgument, "resume token total_num_parts exceeds configured maximum")
	}
	implied := partsForContentLength(contentLength, t.PartitionSize)
	if implied != t.TotalNumParts {
		return newError(KindInvalidArgument, "resume token total_num_parts inconsistent with content length")
	}
	return nil
}

func partsForContentLength(contentLength, partSize int64) int {
	if partSize <= 0 {
		return 0
	}
	n := contentLength / partSize
	if contentLength%partSize != 0 {
		n++
	}
	if n == 0 {
		n = 1
	}
	return int(n)
}
