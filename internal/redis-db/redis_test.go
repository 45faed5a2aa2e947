package redis_db

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		addr     string
		password string
		db       int
		tls      bool
		wantErr  bool
	}{
		{name: "docker style", url: "redis:6379", addr: "redis:6379"},
		{name: "password with colon", url: "redis://:password123@localhost:6379", addr: "localhost:6379", password: "password123"},
		{name: "password without colon", url: "redis://secret@localhost:6379", addr: "localhost:6379", password: "secret"},
		{name: "database index", url: "redis://localhost:6379/3", addr: "localhost:6379", db: 3},
		{name: "tls", url: "rediss://cache.example.com:6380", addr: "cache.example.com:6380", tls: true},
		{name: "empty", url: "", wantErr: true},
		{name: "bad scheme", url: "http://localhost:6379", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRedisURL(tt.url, false)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, got.Addr)
			assert.Equal(t, tt.password, got.Password)
			assert.Equal(t, tt.db, got.DB)
			assert.Equal(t, tt.tls, got.TLSConfig != nil)
		})
	}
}

func TestParseRedisURLSkipTLSVerify(t *testing.T) {
	got, err := ParseRedisURL("rediss://cache.example.com:6380", true)
	require.NoError(t, err)
	require.NotNil(t, got.TLSConfig)
	assert.True(t, got.TLSConfig.InsecureSkipVerify)
}

func TestSplitAddresses(t *testing.T) {
	assert.Equal(t, []string{"a:6379", "b:6379"}, SplitAddresses(" a:6379, ,b:6379 "))
	assert.Empty(t, SplitAddresses(""))
}

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	r, err := NewRedisClient(context.Background(), mr.Addr(), false)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Client().Set(context.Background(), "k", "v", 0).Err())
	assert.True(t, mr.Exists("k"))

	_, err = NewRedisClient(context.Background(), "", false)
	assert.Error(t, err)
}

func TestNewRedisClientUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisClient(context.Background(), addr, false)
	assert.Error(t, err)
}

func TestAsynqConnOpt(t *testing.T) {
	opt, err := AsynqConnOpt("redis://user:pw@localhost:6379/2,other:6379", false)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opt.Addr)
	assert.Equal(t, "user", opt.Username)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)

	_, err = AsynqConnOpt(" ", false)
	assert.Error(t, err)
}
