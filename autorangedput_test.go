package s3transfer

import (
	"bytes"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/packit-aws-playground/s3transfer/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, transport http.RoundTripper) *Client {
	t.Helper()
	c, err := NewClient(Config{
		Region:               "us-east-1",
		PartSize:             16,
		TargetThroughputGbps: 1,
		ChecksumAlgorithm:    ChecksumCRC32C,
		HTTPTransport:        transport,
	})
	require.NoError(t, err)
	return c
}

func waitForFinish(t *testing.T, done <-chan FinishResult) FinishResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for upload to finish")
		return FinishResult{}
	}
}

func matchCreateMPU() func(*http.Request) bool {
	return testutils.MatchQuery("POST", "uploads")
}

func matchPart(n int) func(*http.Request) bool {
	return func(r *http.Request) bool {
		return r.Method == "PUT" && r.URL.Query().Get("partNumber") == strconv.Itoa(n)
	}
}

func matchCompleteMPU() func(*http.Request) bool {
	return func(r *http.Request) bool {
		if r.Method != "POST" {
			return false
		}
		q := r.URL.Query()
		_, hasUploads := q["uploads"]
		_, hasUploadID := q["uploadId"]
		return !hasUploads && hasUploadID
	}
}

func matchListParts() func(*http.Request) bool {
	return func(r *http.Request) bool {
		_, hasUploadID := r.URL.Query()["uploadId"]
		return r.Method == "GET" && hasUploadID
	}
}

func hasMethod(reqs []*http.Request, method string) bool {
	for _, r := range reqs {
		if r.Method == method {
			return true
		}
	}
	return false
}

type orderedProgress struct {
	mu    sync.Mutex
	parts []int
	data  map[int][]byte
}

func (o *orderedProgress) record(partNum int, data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.data == nil {
		o.data = map[int][]byte{}
	}
	o.parts = append(o.parts, partNum)
	cp := make([]byte, len(data))
	copy(cp, data)
	o.data[partNum] = cp
}

func TestAutoRangedPutFreshUploadEndToEnd(t *testing.T) {
	mock := testutils.NewRoundTripMock()
	mock.On(matchCreateMPU(), testutils.ScriptedResponse{
		Status: 200,
		Body:   `<InitiateMultipartUploadResult><UploadId>upload-xyz</UploadId></InitiateMultipartUploadResult>`,
	}, 1)
	for i := 1; i <= 3; i++ {
		mock.On(matchPart(i), testutils.ScriptedResponse{
			Status:  200,
			Headers: map[string]string{"ETag": `"etag-` + strconv.Itoa(i) + `"`},
		}, 1)
	}
	mock.On(matchCompleteMPU(), testutils.ScriptedResponse{
		Status: 200,
		Body:   `<CompleteMultipartUploadResult><ETag>&quot;final-etag&quot;</ETag></CompleteMultipartUploadResult>`,
	}, 1)

	client := newTestClient(t, mock)
	defer client.Shutdown()

	data := bytes.Repeat([]byte("x"), 40) // 16 + 16 + 8 at PartSize 16
	for i := range data {
		data[i] = byte('a' + i%26)
	}

	progress := &orderedProgress{}
	done := make(chan FinishResult, 1)

	mr, err := NewAutoRangedPut(client, PutObjectInput{
		Bucket:        "my-bucket",
		Key:           "my-key",
		Body:          bytes.NewReader(data),
		ContentLength: int64(len(data)),
		OnProgress:    progress.record,
		OnFinish:      func(r FinishResult) { done <- r },
	})
	require.NoError(t, err)
	require.NoError(t, client.Submit(mr))

	result := waitForFinish(t, done)
	require.NoError(t, result.Err)

	progress.mu.Lock()
	defer progress.mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, progress.parts)
	assert.Equal(t, data[0:16], progress.data[1])
	assert.Equal(t, data[16:32], progress.data[2])
	assert.Equal(t, data[32:40], progress.data[3])

	stats := client.Stats()
	assert.Equal(t, uint64(3), stats.PartsUploaded)
	assert.Equal(t, uint64(1), stats.MetaRequestsSucceeded)
}

func TestAutoRangedPutResumeVerifiesAndSkipsCompletedParts(t *testing.T) {
	data := make([]byte, 40)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	part1Checksum := computeChecksum(ChecksumCRC32C, data[0:16])

	mock := testutils.NewRoundTripMock()
	mock.On(matchListParts(), testutils.ScriptedResponse{
		Status: 200,
		Body: `<ListPartsResult><IsTruncated>false</IsTruncated>` +
			`<Part><PartNumber>1</PartNumber><ETag>&quot;etag-1&quot;</ETag>` +
			`<ChecksumCRC32C>` + part1Checksum + `</ChecksumCRC32C></Part>` +
			`</ListPartsResult>`,
	}, 1)
	for i := 2; i <= 3; i++ {
		mock.On(matchPart(i), testutils.ScriptedResponse{
			Status:  200,
			Headers: map[string]string{"ETag": `"etag-` + strconv.Itoa(i) + `"`},
		}, 1)
	}
	mock.On(matchCompleteMPU(), testutils.ScriptedResponse{
		Status: 200,
		Body:   `<CompleteMultipartUploadResult><ETag>&quot;final-etag&quot;</ETag></CompleteMultipartUploadResult>`,
	}, 1)

	client := newTestClient(t, mock)
	defer client.Shutdown()

	token, err := marshalPauseToken(pauseToken{
		Type:              putMetaRequestTypeLiteral,
		MultipartUploadID: "upload-xyz",
		PartitionSize:     16,
		TotalNumParts:     3,
	})
	require.NoError(t, err)

	progress := &orderedProgress{}
	done := make(chan FinishResult, 1)

	mr, err := NewAutoRangedPut(client, PutObjectInput{
		Bucket:        "my-bucket",
		Key:           "my-key",
		Body:          bytes.NewReader(data),
		ContentLength: int64(len(data)),
		ResumeToken:   token,
		OnProgress:    progress.record,
		OnFinish:      func(r FinishResult) { done <- r },
	})
	require.NoError(t, err)
	require.NoError(t, client.Submit(mr))

	result := waitForFinish(t, done)
	require.NoError(t, result.Err)

	for _, r := range mock.Requests() {
		_, isCreate := r.URL.Query()["uploads"]
		assert.False(t, isCreate, "resumed upload must not re-send CreateMultipartUpload")
	}

	progress.mu.Lock()
	defer progress.mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, progress.parts)
	assert.Equal(t, data[0:16], progress.data[1])
	assert.Equal(t, data[16:32], progress.data[2])
	assert.Equal(t, data[32:40], progress.data[3])
}

func TestAutoRangedPutResumeChecksumMismatchDoesNotAbort(t *testing.T) {
	data := make([]byte, 40)
	for i := range data {
		data[i] = byte('a' + i%26)
	}

	mock := testutils.NewRoundTripMock()
	mock.On(matchListParts(), testutils.ScriptedResponse{
		Status: 200,
		Body: `<ListPartsResult><IsTruncated>false</IsTruncated>` +
			`<Part><PartNumber>1</PartNumber><ETag>&quot;etag-1&quot;</ETag>` +
			`<ChecksumCRC32C>AAAAAAA=</ChecksumCRC32C></Part>` +
			`</ListPartsResult>`,
	}, 1)

	client := newTestClient(t, mock)
	defer client.Shutdown()

	token, err := marshalPauseToken(pauseToken{
		Type:              putMetaRequestTypeLiteral,
		MultipartUploadID: "upload-xyz",
		PartitionSize:     16,
		TotalNumParts:     3,
	})
	require.NoError(t, err)

	done := make(chan FinishResult, 1)
	mr, err := NewAutoRangedPut(client, PutObjectInput{
		Bucket:        "my-bucket",
		Key:           "my-key",
		Body:          bytes.NewReader(data),
		ContentLength: int64(len(data)),
		ResumeToken:   token,
		OnFinish:      func(r FinishResult) { done <- r },
	})
	require.NoError(t, err)
	require.NoError(t, client.Submit(mr))

	result := waitForFinish(t, done)
	require.Error(t, result.Err)
	assert.True(t, IsKind(result.Err, KindResumedPartChecksumMismatch))
	assert.False(t, hasMethod(mock.Requests(), "DELETE"))

	stats := client.Stats()
	assert.Equal(t, uint64(1), stats.MetaRequestsFailed)
	assert.Equal(t, uint64(0), stats.MetaRequestsPaused)
}

func TestAutoRangedPutCreateMultipartUploadFailureTerminatesWithoutAbort(t *testing.T) {
	mock := testutils.NewRoundTripMock()
	mock.On(matchCreateMPU(), testutils.ScriptedResponse{
		Status: 500,
		Body:   `<Error><Code>InternalError</Code><Message>broken</Message></Error>`,
	}, 0) // unlimited: the retry strategy retries a 500 a few times before giving up

	client := newTestClient(t, mock)
	defer client.Shutdown()

	data := []byte("short body, one part only")
	done := make(chan FinishResult, 1)
	mr, err := NewAutoRangedPut(client, PutObjectInput{
		Bucket:        "my-bucket",
		Key:           "my-key",
		Body:          bytes.NewReader(data),
		ContentLength: int64(len(data)),
		OnFinish:      func(r FinishResult) { done <- r },
	})
	require.NoError(t, err)
	require.NoError(t, client.Submit(mr))

	result := waitForFinish(t, done)
	require.Error(t, result.Err)
	assert.True(t, IsKind(result.Err, KindInternal))
	assert.False(t, hasMethod(mock.Requests(), "DELETE"))
	assert.False(t, hasMethod(mock.Requests(), "PUT"))
}

func TestAutoRangedPutPauseAfterCreateMPUYieldsResumeToken(t *testing.T) {
	client := newTestClient(t, testutils.NewRoundTripMock())
	defer client.Shutdown()

	data := []byte("0123456789abcdef0123456789")
	mr, err := NewAutoRangedPut(client, PutObjectInput{
		Bucket: "b", Key: "k", Body: bytes.NewReader(data), ContentLength: int64(len(data)),
	})
	require.NoError(t, err)

	req, hasWork := mr.Update(UpdateFlagsNone)
	require.True(t, hasWork)
	require.Equal(t, TagCreateMultipartUpload, req.Tag)

	req.ResponseStatus = 200
	req.ResponseBody = []byte(`<InitiateMultipartUploadResult><UploadId>upload-1</UploadId></InitiateMultipartUploadResult>`)
	mr.FinishedRequest(req, nil)

	token, ok := mr.Pause()
	require.True(t, ok)
	require.NotEmpty(t, token)

	tok, err := parsePauseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "upload-1", tok.MultipartUploadID)
	assert.Equal(t, putMetaRequestTypeLiteral, tok.Type)

	next, hasWork := mr.Update(UpdateFlagsNone)
	assert.False(t, hasWork)
	assert.Nil(t, next)
}

func TestAutoRangedPutPauseBeforeCreateMPUFails(t *testing.T) {
	client := newTestClient(t, testutils.NewRoundTripMock())
	defer client.Shutdown()

	data := []byte("some bytes")
	mr, err := NewAutoRangedPut(client, PutObjectInput{
		Bucket: "b", Key: "k", Body: bytes.NewReader(data), ContentLength: int64(len(data)),
	})
	require.NoError(t, err)

	_, ok := mr.Pause()
	assert.False(t, ok)
}

func TestNewAutoRangedPutRejectsInvalidArgs(t *testing.T) {
	client := newTestClient(t, testutils.NewRoundTripMock())
	defer client.Shutdown()

	_, err := NewAutoRangedPut(client, PutObjectInput{Key: "k", Body: bytes.NewReader(nil)})
	assert.True(t, IsKind(err, KindInvalidArgument))

	_, err = NewAutoRangedPut(client, PutObjectInput{Bucket: "b", Key: "k"})
	assert.True(t, IsKind(err, KindInvalidArgument))
}

func TestNewAutoRangedPutRejectsBadResumeToken(t *testing.T) {
	client := newTestClient(t, testutils.NewRoundTripMock())
	defer client.Shutdown()

	_, err := NewAutoRangedPut(client, PutObjectInput{
		Bucket: "b", Key: "k", Body: bytes.NewReader([]byte("data")),
		ContentLength: 4,
		ResumeToken:   []byte("not json"),
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidArgument))
}
