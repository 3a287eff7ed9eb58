package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"costguardian/pkg/errors"
)

type recordingTracker struct {
	captured []error
}

func (r *recordingTracker) CaptureError(_ context.Context, err error, _ map[string]string) error {
	r.captured = append(r.captured, err)
	return nil
}

func (r *recordingTracker) CaptureMessage(context.Context, string, errors.Level, map[string]string) error {
	return nil
}

func (r *recordingTracker) Flush(context.Context) error { return nil }

func TestLogger_ErrorwForwardsErrorValue(t *testing.T) {
	tracker := &recordingTracker{}
	log := &Logger{SugaredLogger: zap.NewNop().Sugar(), errorTracker: tracker}

	cause := errors.New("insert failed")
	log.With("component", "test").Errorw("Failed to persist prediction", "subject", "u1", "error", cause)

	require.Len(t, tracker.captured, 1)
	assert.True(t, errors.Is(tracker.captured[0], cause))
	assert.Contains(t, tracker.captured[0].Error(), "Failed to persist prediction")
}

func TestLogger_ErrorwWithoutErrorValue(t *testing.T) {
	tracker := &recordingTracker{}
	log := &Logger{SugaredLogger: zap.NewNop().Sugar(), errorTracker: tracker}

	log.Errorw("Something odd", "count", 3)

	require.Len(t, tracker.captured, 1)
	assert.True(t, errors.Is(tracker.captured[0], errors.ErrInternal))
}

func TestLogger_NoTracker(t *testing.T) {
	log := &Logger{SugaredLogger: zap.NewNop().Sugar()}

	assert.NotPanics(t, func() {
		log.Errorw("no tracker", "error", errors.New("boom"))
		log.Errorf("no tracker %d", 1)
	})
}
