package app

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"serotonyl.ru/brand-votes/internal/events"
)

type closingPublisher struct {
	closed int
}

func (p *closingPublisher) PublishBatch(context.Context, events.BatchCommitted) error { return nil }

func (p *closingPublisher) Close() error {
	p.closed++
	return nil
}

func TestClose_PartialApp(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	pub := &closingPublisher{}

	// Так выглядит App, если New упал после подключения Redis и Kafka
	a := &App{Redis: rdb, Publisher: pub}
	assert.NotPanics(t, a.Close)

	assert.Equal(t, 1, pub.closed)
	assert.ErrorIs(t, rdb.Ping(context.Background()).Err(), redis.ErrClosed)
}

func TestClose_Empty(t *testing.T) {
	assert.NotPanics(t, (&App{}).Close)
}
