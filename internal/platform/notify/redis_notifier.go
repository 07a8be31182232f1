package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Publisher pushes an event to every live subscriber of a channel. Delivery
// is at most once; callers decide whether a failure matters.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// Subscriber hands out a stream of raw event payloads for one channel. The
// returned cancel func releases the subscription.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// SubmissionChannel is the topic progress events for a submission go to.
func SubmissionChannel(submissionID int64) string {
	return fmt.Sprintf("submission.%d", submissionID)
}

type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) Publish(ctx context.Context, channel string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("RedisNotifier.Publish marshal: %w", err)
	}
	if err := n.rdb.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("RedisNotifier.Publish %s: %w", channel, err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := n.rdb.Subscribe(ctx, channel)
	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("RedisNotifier.Subscribe %s: %w", channel, err)
	}

	out := make(chan []byte)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			sub.Close()
		})
	}
	return out, cancel, nil
}
