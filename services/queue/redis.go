package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-platform-sub005/core"
)

var popTimeout = 5 * time.Second

// Handler processes one message. A failed message is moved to the dead letter queue.
type Handler func(ctx context.Context, data []byte) error

func NewRedisClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

type Producer struct {
	client redis.Cmdable
	queue  string
}

func NewProducer(client redis.Cmdable, queue string) *Producer {
	return &Producer{client: client, queue: queue}
}

func (p *Producer) Enqueue(ctx context.Context, data []byte) error {
	if err := p.client.LPush(ctx, p.queue, data).Err(); err != nil {
		return errors.Wrapf(err, "pushing to %s", p.queue)
	}
	return nil
}

type Consumer struct {
	client redis.Cmdable
	queue  string
	dlq    string
	logger core.Logger
}

func NewConsumer(client redis.Cmdable, queue, dlqSuffix string, logger core.Logger) *Consumer {
	return &Consumer{client: client, queue: queue, dlq: queue + dlqSuffix, logger: logger}
}

// Consume pops messages until ctx is done.
func (c *Consumer) Consume(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		res, err := c.client.BRPop(ctx, popTimeout, c.queue).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error(fmt.Sprintf("consuming %s: %v", c.queue, err), errors.Wrap(err, "consuming queue"))
			time.Sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}
		c.process(ctx, []byte(res[1]), handle)
	}
}

func (c *Consumer) process(ctx context.Context, msg []byte, handle Handler) {
	err := handle(ctx, msg)
	if err == nil {
		return
	}
	c.logger.Error(fmt.Sprintf("processing message from %s: %v", c.queue, err), errors.Wrap(err, "processing message"))
	if dlqErr := c.client.LPush(context.Background(), c.dlq, msg).Err(); dlqErr != nil {
		c.logger.Error(fmt.Sprintf("moving message to %s: %v", c.dlq, dlqErr), errors.Wrap(dlqErr, "moving message to DLQ"))
	}
}

// DeadLetters returns the messages waiting in the dead letter queue, oldest first.
func (c *Consumer) DeadLetters(ctx context.Context) ([]string, error) {
	msgs, err := c.client.LRange(ctx, c.dlq, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", c.dlq)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
