package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"trainingdesk/pkg/types"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Notifier hands a notification to delivery. It never blocks the caller on
// delivery and never reports delivery failures back.
type Notifier interface {
	Notify(ctx context.Context, n types.Notification)
}

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes notifications as JSON on a pub/sub channel for
// the mailer to pick up.
type RedisPublisher struct {
	client  publisher
	channel string
	logger  logrus.FieldLogger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewRedisPublisher(client publisher, channel string, logger logrus.FieldLogger) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

func (p *RedisPublisher) Notify(ctx context.Context, n types.Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	entry := p.logger.WithFields(logrus.Fields{
		"owner_id":          n.OwnerID,
		"notification_kind": n.Kind,
	})

	payload, err := json.Marshal(n)
	if err != nil {
		entry.WithError(err).Error("failed to encode notification")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()

		if err := p.client.Publish(pubCtx, p.channel, payload).Err(); err != nil {
			entry.WithError(err).Error("failed to publish notification")
			return
		}
		entry.Debug("notification published")
	}()
}

// Close waits for in-flight publishes.
func (p *RedisPublisher) Close() {
	p.wg.Wait()
}

// LogNotifier writes notifications to the log. Used when Redis is not
// configured.
type LogNotifier struct {
	logger logrus.FieldLogger
}

func NewLogNotifier(logger logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n types.Notification) {
	l.logger.WithFields(logrus.Fields{
		"owner_id":          n.OwnerID,
		"owner_kind":        n.OwnerKind,
		"notification_kind": n.Kind,
		"payload":           n.Payload,
	}).Info("notification")
}
