package s3transfer

import (
	"context"
)

// Put submits in to c and blocks until the upload reaches a terminal
// state, returning the finish result. in.OnProgress and in.OnHeaders are
// honoured; callers wanting pause/resume control should construct an
// AutoRangedPut via NewAutoRangedPut and submit it directly instead.
func Put(ctx context.Context, c *Client, in PutObjectInput) (FinishResult, error) {
	done := make(chan FinishResult, 1)
	userFinish := in.OnFinish
	in.OnFinish = func(r FinishResult) {
		if userFinish != nil {
			userFinish(r)
		}
		done <- r
	}

	mr, err := NewAutoRangedPut(c, in)
	if err != nil {
		return FinishResult{}, err
	}
	if err := c.Submit(mr); err != nil {
		return FinishResult{}, err
	}

	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		return FinishResult{}, ctx.Err()
	}
}

// PauseHandle lets a caller request an in-progress AutoRangedPut to
// pause, retrieving a resume token once it reaches a pausable point.
type PauseHandle struct {
	mr *AutoRangedPut
}

// NewPauseHandle wraps mr for out-of-band pause requests.
func NewPauseHandle(mr *AutoRangedPut) *PauseHandle {
	return &PauseHandle{mr: mr}
}

// RequestPause asks the wrapped upload to pause. ok is false if the
// upload has not yet completed CreateMultipartUpload and so has no
// upload_id to resume against later.
func (h *PauseHandle) RequestPause() (token []byte, ok bool) {
	return h.mr.Pause()
}
