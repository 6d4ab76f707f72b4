package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/StricklySoft/compliance-auth/internal/testutil/redismock"
	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

func newMockClient(t *testing.T) (*redismock.Cmdable, *Client) {
	t.Helper()
	m := &redismock.Cmdable{}
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m, NewFromClient(m, &Config{DB: 2})
}

func TestNewFromClient(t *testing.T) {
	t.Parallel()

	c := NewFromClient(&redismock.Cmdable{}, nil)
	require.NotNil(t, c.config)
	assert.Equal(t, 0, c.dbIndex)
	assert.NotNil(t, c.tracer)

	c = NewFromClient(&redismock.Cmdable{}, &Config{DB: 3})
	assert.Equal(t, 3, c.dbIndex)
}

func TestClient_Get(t *testing.T) {
	t.Parallel()
	m, c := newMockClient(t)
	m.On("Get", mock.Anything, "jwks:a").Return(redismock.String(`{"keys":[]}`, nil)).Once()
	m.On("Get", mock.Anything, "jwks:b").Return(redismock.String("", redis.Nil)).Once()
	m.On("Get", mock.Anything, "jwks:c").Return(redismock.String("", errors.New("READONLY"))).Once()

	val, err := c.Get(context.Background(), "jwks:a")
	require.NoError(t, err)
	assert.Equal(t, `{"keys":[]}`, val)

	_, err = c.Get(context.Background(), "jwks:b")
	assert.Equal(t, Nil, err, "a miss is the bare sentinel")

	_, err = c.Get(context.Background(), "jwks:c")
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeInternalCache))
	assert.False(t, errors.Is(err, Nil))
}

func TestClient_Set(t *testing.T) {
	t.Parallel()
	m, c := newMockClient(t)
	m.On("Set", mock.Anything, "k", "v", time.Hour).Return(redismock.Status("OK", nil)).Once()
	m.On("Set", mock.Anything, "k", "v", time.Duration(0)).Return(redismock.Status("", context.DeadlineExceeded)).Once()

	require.NoError(t, c.Set(context.Background(), "k", "v", time.Hour))

	err := c.Set(context.Background(), "k", "v", 0)
	require.Error(t, err)
	assert.True(t, sserr.IsTimeout(err))
}

func TestClient_Del(t *testing.T) {
	t.Parallel()
	m, c := newMockClient(t)
	m.On("Del", mock.Anything, []string{"a", "b"}).Return(redismock.Int(1, nil)).Once()
	m.On("Del", mock.Anything, []string{"c"}).Return(redismock.Int(0, errors.New("conn reset"))).Once()

	n, err := c.Del(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = c.Del(context.Background(), "c")
	assert.True(t, sserr.HasCode(err, sserr.CodeInternalCache))
}

func TestClient_Health(t *testing.T) {
	t.Parallel()
	m, c := newMockClient(t)

	var sawDeadline bool
	m.On("Ping", mock.Anything).Run(func(args mock.Arguments) {
		_, sawDeadline = args.Get(0).(context.Context).Deadline()
	}).Return(redismock.Status("PONG", nil)).Once()
	m.On("Ping", mock.Anything).Return(redismock.Status("", errors.New("connection refused"))).Once()

	require.NoError(t, c.Health(context.Background()))
	assert.True(t, sawDeadline, "default health timeout applied")

	err := c.Health(context.Background())
	assert.True(t, sserr.HasCode(err, sserr.CodeUnavailableDependency))
}

func TestClient_Close(t *testing.T) {
	t.Parallel()
	m, c := newMockClient(t)
	m.On("Close").Return(nil).Once()
	require.NoError(t, c.Close())
}

func TestClient_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	m, c := newMockClient(t)
	m.On("Get", mock.Anything, "jwks:x").Return(redismock.String("", redis.Nil)).Once()
	_, _ = c.Get(context.Background(), "jwks:x")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "redis.Get", spans[0].Name())
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "redis", attrs["db.system"])
	assert.Equal(t, "2", attrs["db.redis.database_index"])
	assert.Equal(t, "GET jwks:x", attrs["db.statement"])
	assert.Empty(t, spans[0].Events(), "a miss is not recorded as an error")
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, wrapError(nil, "x"))
	assert.Equal(t, sserr.CodeTimeout, wrapError(context.DeadlineExceeded, "x").Code)
	assert.Equal(t, sserr.CodeInternalCache, wrapError(context.Canceled, "x").Code)
	assert.Equal(t, sserr.CodeInternalCache, wrapError(errors.New("boom"), "x").Code)
}
