package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"interview-orchestrator/internal/telemetry"
)

// Topics a channel may carry.
const (
	TopicProgress = "progress"
	TopicResult   = "result"
	TopicStatus   = "status"
)

// Progress status tags.
const (
	StatusStarted    = "started"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Channel is one parameterized pub/sub topic scoped to a single entity
// instance. Each job family defines its own key template and fixed topic set.
type Channel struct {
	Key    string
	Topics []string
}

// Allows reports whether topic belongs to this channel's fixed topic set.
func (c Channel) Allows(topic string) bool {
	for _, t := range c.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// ScreenNewResponses streams screening of unscreened responses for a vacancy.
func ScreenNewResponses(vacancyID string) Channel {
	return Channel{Key: "screen-new-responses:" + vacancyID, Topics: []string{TopicProgress, TopicResult}}
}

// ScreenAllResponses streams full re-screening of a vacancy's responses.
func ScreenAllResponses(vacancyID string) Channel {
	return Channel{Key: "screen-all-responses:" + vacancyID, Topics: []string{TopicProgress, TopicResult}}
}

// WelcomeBatch streams batch welcome-message sending for a vacancy.
func WelcomeBatch(vacancyID string) Channel {
	return Channel{Key: "welcome-batch:" + vacancyID, Topics: []string{TopicProgress, TopicResult}}
}

// VacancyRefresh is the single-status channel for vacancy/response refresh.
func VacancyRefresh(vacancyID string) Channel {
	return Channel{Key: "vacancy-refresh:" + vacancyID, Topics: []string{TopicStatus}}
}

// ExtractRequirements is the single-status channel for requirements extraction.
func ExtractRequirements(vacancyID string) Channel {
	return Channel{Key: "extract-requirements:" + vacancyID, Topics: []string{TopicStatus}}
}

// ChannelForKey rebuilds the channel (with its fixed topic set) from a raw
// key, so token minting can validate requested topics. Unknown templates
// return false.
func ChannelForKey(key string) (Channel, bool) {
	templates := []struct {
		prefix string
		topics []string
	}{
		{"screen-new-responses:", []string{TopicProgress, TopicResult}},
		{"screen-all-responses:", []string{TopicProgress, TopicResult}},
		{"welcome-batch:", []string{TopicProgress, TopicResult}},
		{"vacancy-refresh:", []string{TopicStatus}},
		{"extract-requirements:", []string{TopicStatus}},
	}
	for _, t := range templates {
		if len(key) > len(t.prefix) && key[:len(t.prefix)] == t.prefix {
			return Channel{Key: key, Topics: t.topics}, true
		}
	}
	return Channel{}, false
}

// EntityID extracts the entity id component of a channel key.
func EntityID(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[i+1:]
		}
	}
	return ""
}

// ProgressMessage is an intermediate, non-terminal snapshot published while a
// job runs. Counters are monotonically informative, not exact deltas.
type ProgressMessage struct {
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Total     int    `json:"total"`
	Status    string `json:"status"`
}

// ResultMessage is the terminal, authoritative outcome of a job, published once.
type ResultMessage struct {
	Success   int    `json:"success"`
	Failed    int    `json:"failed"`
	Total     int    `json:"total"`
	Succeeded bool   `json:"succeeded"`
	Detail    string `json:"detail,omitempty"`
}

// StatusMessage is used by single-topic channels for simpler flows.
type StatusMessage struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Publisher writes channel messages to Redis pub/sub. Delivery order for one
// channel instance equals publish order; reconnecting subscribers may miss
// intermediate progress messages and must treat the terminal one as
// authoritative.
type Publisher struct {
	client *redis.Client
}

// NewPublisher wraps a Redis client.
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func wireKey(channelKey, topic string) string {
	return fmt.Sprintf("rt:%s:%s", channelKey, topic)
}

// Publish sends one message on a channel topic. Publishing outside the
// channel's topic set is a programming error and rejected.
func (p *Publisher) Publish(ctx context.Context, ch Channel, topic string, message any) error {
	if !ch.Allows(topic) {
		return fmt.Errorf("channel %s does not carry topic %q", ch.Key, topic)
	}
	raw, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal realtime message: %w", err)
	}
	if err := p.client.Publish(ctx, wireKey(ch.Key, topic), raw).Err(); err != nil {
		return fmt.Errorf("publish realtime message: %w", err)
	}
	telemetry.RealtimePublish.Inc()
	return nil
}
