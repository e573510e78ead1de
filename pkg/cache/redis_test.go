package cache

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ace-school-api/pkg/config"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "ace:grades:compute:s1:math", Key("grades", "compute", "s1", "math"))
	assert.Equal(t, "ace:enrollments:stats", Key("enrollments", "", "stats"))
}

func TestNewRedisPings(t *testing.T) {
	srv := miniredis.RunT(t)
	port, err := strconv.Atoi(srv.Port())
	require.NoError(t, err)

	client, err := NewRedis(context.Background(), config.RedisConfig{Host: srv.Host(), Port: port})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), Key("ping"), "1", 0).Err())
	assert.True(t, srv.Exists("ace:ping"))
}
