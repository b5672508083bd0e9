package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Message is one delivered (topic, payload) pair.
type Message struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Subscriber turns a verified token into an ordered stream of channel
// messages. A token grants read access only to the topics it was minted for.
type Subscriber struct {
	client *redis.Client
	issuer *TokenIssuer
}

// NewSubscriber wires a subscriber against Redis and the token issuer.
func NewSubscriber(client *redis.Client, issuer *TokenIssuer) *Subscriber {
	return &Subscriber{client: client, issuer: issuer}
}

// Subscribe verifies the token and streams messages for its granted topics
// until the context is cancelled. Messages arrive in publish order per
// channel instance.
func (s *Subscriber) Subscribe(ctx context.Context, token string) (<-chan Message, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return nil, err
	}

	wireKeys := make([]string, 0, len(claims.Topics))
	for _, topic := range claims.Topics {
		wireKeys = append(wireKeys, wireKey(claims.ChannelKey, topic))
	}

	pubsub := s.client.Subscribe(ctx, wireKeys...)
	out := make(chan Message, 16)

	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- Message{Topic: topicOf(msg.Channel), Payload: json.RawMessage(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// topicOf recovers the topic from a wire key rt:<channelKey>:<topic>.
func topicOf(wire string) string {
	idx := strings.LastIndex(wire, ":")
	if idx < 0 {
		return wire
	}
	return wire[idx+1:]
}
