package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/simonmuehling/educafric-platform-sub005/tests"
)

func TestProducerConsumer(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is not set")
	}
	conf := testutil.NewConfig()
	conf.Redis.Addr = addr
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := NewRedisClient(ctx, conf)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	queue := "test:notifications:" + time.Now().Format("150405.000000")
	defer client.Del(context.Background(), queue, queue+":dlq")

	popTimeout = 100 * time.Millisecond
	logger := new(testutil.Logger)
	producer := NewProducer(client, queue)
	consumer := NewConsumer(client, queue, ":dlq", logger)

	for _, msg := range []string{"first", "poison", "last"} {
		require.NoError(t, producer.Enqueue(ctx, []byte(msg)))
	}

	var got []string
	consumeCtx, stop := context.WithCancel(ctx)
	err = consumer.Consume(consumeCtx, func(_ context.Context, data []byte) error {
		got = append(got, string(data))
		if len(got) == 3 {
			stop()
		}
		if string(data) == "poison" {
			return errors.New("cannot process")
		}
		return nil
	})
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, []string{"first", "poison", "last"}, got)

	dead, err := consumer.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"poison"}, dead)
	assert.Equal(t, 1, logger.Count("error"))

	_, err = client.BRPop(ctx, 10*time.Millisecond, queue).Result()
	assert.Equal(t, redis.Nil, err)
}
