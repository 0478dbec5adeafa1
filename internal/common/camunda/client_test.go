package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"fieldops-workers/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(maxRetries int) *Client {
	return &Client{config: &ClientConfig{
		ConnectionTimeout: time.Second,
		RetryConfig: &RetryConfig{
			MaxRetries: maxRetries,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
	}}
}

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"rpc error: code = Unavailable desc = connection refused", true},
		{"context deadline exceeded", true},
		{"write: broken pipe", true},
		{"rpc error: code = NotFound desc = job not found", false},
		{"rpc error: code = InvalidArgument", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(stderrors.New(tt.msg)))
		})
	}
}

func TestExecuteWithRetry_RecoversFromTransientError(t *testing.T) {
	c := testClient(3)
	calls := 0

	res, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, stderrors.New("connection reset by peer")
		}
		return "ok", nil
	}, "complete-job")

	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_GivesUp(t *testing.T) {
	c := testClient(2)
	calls := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, stderrors.New("service unavailable")
	}, "complete-job")

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeBrokerUnavailable, stdErr.Code)
	assert.Contains(t, stdErr.Details, "after 3 attempts")
	assert.True(t, stdErr.Retryable)
}

func TestExecuteWithRetry_RejectedIsNotRetried(t *testing.T) {
	c := testClient(3)
	calls := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, stderrors.New("job not found")
	}, "fail-job")

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeBrokerRejected, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestExecuteWithRetry_ContextCanceled(t *testing.T) {
	c := testClient(5)
	c.config.RetryConfig.BaseDelay = time.Hour
	c.config.RetryConfig.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, stderrors.New("timeout")
	}, "topology")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestInstrument_RecoversPanic(t *testing.T) {
	var recovered error
	handler := HandlerFunc(func(client worker.JobClient, job entities.Job) {
		panic("boom")
	})

	wrapped := instrument("compute-dashboard", handler, nil, func(_ worker.JobClient, _ entities.Job, err error) {
		recovered = err
	})

	job := entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 42, Type: "compute-dashboard"}}
	assert.NotPanics(t, func() { wrapped(nil, job) })
	require.Error(t, recovered)
	assert.Contains(t, recovered.Error(), "boom")
}

func TestInstrument_CallsHandler(t *testing.T) {
	called := false
	wrapped := instrument("load-work-orders", HandlerFunc(func(worker.JobClient, entities.Job) {
		called = true
	}), nil, func(worker.JobClient, entities.Job, error) {
		t.Fatal("unexpected panic handling")
	})

	wrapped(nil, entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1}})
	assert.True(t, called)
}
