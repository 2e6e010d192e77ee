package kafkaconsumer

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/food-facility-search/internal/cache/keys"
	"github.com/mohammed-shakir/food-facility-search/internal/cache/redisstore"
	"github.com/mohammed-shakir/food-facility-search/internal/core/config"
)

func configWith(brokers []string, topic, group string) config.InvalidationCfg {
	return config.InvalidationCfg{Brokers: brokers, Topic: topic, GroupID: group}
}

func TestProcessOne_PurgesRedisNearbyKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rc, err := redisstore.New(ctx, mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })

	k1 := keys.Nearby("37.77", "-122.41", []string{"APPROVED"})
	k2 := keys.Nearby("37.78", "-122.40", []string{"APPROVED", "EXPIRED"})
	require.NoError(t, rc.Set(ctx, k1, []byte("[]"), time.Hour))
	require.NoError(t, rc.Set(ctx, k2, []byte("[]"), time.Hour))
	require.NoError(t, rc.Set(ctx, "unrelated", []byte("x"), time.Hour))

	c := New(Config{Topic: "permit-invalidation"}, slog.Default(), rc)
	msg := &sarama.ConsumerMessage{Topic: "permit-invalidation", Offset: 1, Value: eventBytes(time.Now().UTC())}
	require.NoError(t, c.ProcessOne(ctx, msg))

	assert.False(t, mr.Exists(k1))
	assert.False(t, mr.Exists(k2))
	assert.True(t, mr.Exists("unrelated"))
}

func TestFromConfig_Defaults(t *testing.T) {
	cfg := FromConfig(configWith(nil, "", ""))
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, "permit-invalidation", cfg.Topic)
	assert.Equal(t, "facility-cache-invalidator", cfg.GroupID)
	assert.Equal(t, 30*time.Second, cfg.SessionTimeout)
	assert.Equal(t, 256, cfg.DedupeSize)
}
