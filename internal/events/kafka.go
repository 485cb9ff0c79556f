// Package events — kafka.go: публикация в Kafka через segmentio/kafka-go.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/brand-votes/internal/metrics"
)

// KafkaProducer пишет события в топик. Ключ сообщения — id пользователя,
// поэтому события одного пользователя попадают в одну партицию по порядку.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer создаёт продюсер для брокеров и топика.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	log.WithFields(log.Fields{
		"brokers": brokers,
		"topic":   topic,
	}).Info("Kafka-продюсер создан")
	return &KafkaProducer{writer: writer}
}

// PublishBatch отправляет событие о пакете.
func (p *KafkaProducer) PublishBatch(ctx context.Context, e BatchCommitted) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(e.UserID, 10)),
		Value: data,
		Time:  e.CommittedAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("vote.batch.committed")},
			{Key: "batch_id", Value: []byte(e.BatchID.String())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("ошибка отправки события: %w", err)
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
	return nil
}

// Close закрывает продюсер, дожидаясь отправки буфера.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
