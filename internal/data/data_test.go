package data

import (
	"context"
	"testing"
	"time"

	"CoverLane/internal/conf"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"
)

func TestNewData_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	c := &conf.Data{
		Redis: &conf.Data_Redis{
			Addr:         mr.Addr(),
			ReadTimeout:  durationpb.New(200 * time.Millisecond),
			WriteTimeout: durationpb.New(200 * time.Millisecond),
		},
	}

	rdb, redisCleanup, err := NewRedisClient(c, testLogger())
	require.NoError(t, err)
	require.NotNil(t, rdb)
	defer redisCleanup()

	data, cleanup, err := NewData(c, testLogger(), rdb, NewCacheClient(rdb))
	require.NoError(t, err)
	defer cleanup()

	assert.Same(t, rdb, data.GetRedisClient())
	assert.NotNil(t, data.GetCache())
}

func TestNewData_WithoutRedis(t *testing.T) {
	c := &conf.Data{}

	rdb, redisCleanup, err := NewRedisClient(c, testLogger())
	require.NoError(t, err)
	assert.Nil(t, rdb)
	redisCleanup()

	data, cleanup, err := NewData(c, testLogger(), nil, NewCacheClient(nil))
	require.NoError(t, err)
	require.NotNil(t, data)
	defer cleanup()

	assert.Nil(t, data.GetRedisClient())
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	c := &conf.Data{
		Redis: &conf.Data_Redis{
			Addr:         "127.0.0.1:1",
			ReadTimeout:  durationpb.New(100 * time.Millisecond),
			WriteTimeout: durationpb.New(100 * time.Millisecond),
		},
	}

	// startup degrades instead of failing
	rdb, cleanup, err := NewRedisClient(c, testLogger())
	require.NoError(t, err)
	require.NotNil(t, rdb)
	defer cleanup()

	assert.Error(t, rdb.Ping(context.Background()).Err())
}

func TestNewRedisClient_Options(t *testing.T) {
	mr := miniredis.RunT(t)

	c := &conf.Data{
		Redis: &conf.Data_Redis{
			Addr: mr.Addr(),
			Db:   3,
		},
	}

	rdb, cleanup, err := NewRedisClient(c, testLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "tcp", rdb.Options().Network)
	assert.Equal(t, 3, rdb.Options().DB)
	assert.NoError(t, rdb.Set(context.Background(), "k", "v", 0).Err())

	v, err := mr.DB(3).Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestNewMySQLClient_Disabled(t *testing.T) {
	db, cleanup, err := NewMySQLClient(&conf.Data{}, testLogger())
	require.NoError(t, err)
	assert.Nil(t, db)
	cleanup()

	db, _, err = NewMySQLClient(nil, testLogger())
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestNewMySQLClient_UnsupportedDriver(t *testing.T) {
	_, _, err := NewMySQLClient(&conf.Data{
		Database: &conf.Data_Database{Driver: "postgres", Source: "host=localhost"},
	}, testLogger())
	assert.Error(t, err)
}
