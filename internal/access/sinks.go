package access

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	countersKey   = "product:access"
	lastAccessTTL = 24 * time.Hour
)

type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Write(ctx context.Context, ev Event) error {
	s.log.InfoContext(ctx, "product accessed", "product_id", ev.ProductID, "actor", ev.Actor, "at", ev.At)
	return nil
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RedisSink keeps a per-product access counter in a hash and the last
// accessor under a short-lived key.
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

func (s *RedisSink) Write(ctx context.Context, ev Event) error {
	id := strconv.FormatInt(ev.ProductID, 10)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, countersKey, id, 1)
		pipe.Set(ctx, lastAccessKey(id), ev.Actor+"@"+ev.At.Format(time.RFC3339), lastAccessTTL)
		return nil
	})
	return err
}

func (s *RedisSink) Count(ctx context.Context, productID int64) (int64, error) {
	n, err := s.client.HGet(ctx, countersKey, strconv.FormatInt(productID, 10)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func lastAccessKey(id string) string {
	return countersKey + ":last:" + id
}
