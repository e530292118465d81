package notify

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func caseChannel(caseID string) string {
	return "case:progress:" + caseID
}

var _ Notifier = (*RedisNotifier)(nil)

// RedisNotifier publishes events on a per-case pub/sub channel, so only
// observers subscribed to that case receive them.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(addr, password string) *RedisNotifier {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &RedisNotifier{client: client}
}

func (r *RedisNotifier) Emit(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.client.Publish(ctx, caseChannel(event.CaseID), event).Err(); err != nil {
		logrus.Warnf("progress event publish failed for document %s: %v", event.DocumentID, err)
	}
}

// Subscribe returns a channel of events for one case. The caller cancels the
// context to stop the subscription.
func (r *RedisNotifier) Subscribe(ctx context.Context, caseID string) (<-chan Event, error) {
	sub := r.client.Subscribe(ctx, caseChannel(caseID))
	if _, err := sub.Receive(ctx); err != nil {
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer sub.Close()

		for msg := range sub.Channel() {
			var event Event
			if err := event.unmarshal([]byte(msg.Payload)); err != nil {
				logrus.Warnf("dropping malformed progress event: %v", err)
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
