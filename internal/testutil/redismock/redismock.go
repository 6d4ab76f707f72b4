// Package redismock provides a testify mock of the narrow Redis command
// set used by the Redis client, plus constructors for canned replies.
package redismock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

// Cmdable is a mock satisfying the Redis client's command interface.
type Cmdable struct {
	mock.Mock
}

// Get also accepts a func(context.Context, string) *redis.StringCmd as the
// return value, for replies computed from the key.
func (m *Cmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	ret := m.Called(ctx, key).Get(0)
	if fn, ok := ret.(func(context.Context, string) *redis.StringCmd); ok {
		return fn(ctx, key)
	}
	return ret.(*redis.StringCmd)
}

func (m *Cmdable) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	return m.Called(ctx, key, value, expiration).Get(0).(*redis.StatusCmd)
}

func (m *Cmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return m.Called(ctx, keys).Get(0).(*redis.IntCmd)
}

func (m *Cmdable) Ping(ctx context.Context) *redis.StatusCmd {
	return m.Called(ctx).Get(0).(*redis.StatusCmd)
}

func (m *Cmdable) Close() error {
	return m.Called().Error(0)
}

// Status returns a status reply carrying val or err.
func Status(val string, err error) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

// String returns a string reply carrying val or err.
func String(val string, err error) *redis.StringCmd {
	cmd := redis.NewStringCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

// Int returns an integer reply carrying val or err.
func Int(val int64, err error) *redis.IntCmd {
	cmd := redis.NewIntCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}
