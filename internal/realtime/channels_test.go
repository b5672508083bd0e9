package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestChannelForKey(t *testing.T) {
	cases := []struct {
		key    string
		topics int
		ok     bool
	}{
		{"screen-new-responses:v-1", 2, true},
		{"screen-all-responses:v-1", 2, true},
		{"welcome-batch:v-1", 2, true},
		{"vacancy-refresh:v-1", 1, true},
		{"extract-requirements:v-1", 1, true},
		{"screen-new-responses:", 0, false},
		{"unknown-template:v-1", 0, false},
	}
	for _, tc := range cases {
		ch, ok := ChannelForKey(tc.key)
		if ok != tc.ok {
			t.Errorf("%s: expected ok=%v, got %v", tc.key, tc.ok, ok)
			continue
		}
		if ok && len(ch.Topics) != tc.topics {
			t.Errorf("%s: expected %d topics, got %v", tc.key, tc.topics, ch.Topics)
		}
	}
}

func TestEntityID(t *testing.T) {
	if got := EntityID("screen-new-responses:v-42"); got != "v-42" {
		t.Fatalf("expected v-42, got %q", got)
	}
}

func TestPublishRejectsForeignTopic(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	pub := NewPublisher(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	ch := VacancyRefresh("v-1")
	if err := pub.Publish(context.Background(), ch, TopicResult, StatusMessage{Status: StatusStarted}); err == nil {
		t.Fatalf("expected publish to reject topic outside the channel set")
	}
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	issuer := NewTokenIssuer("test-secret", time.Minute)
	pub := NewPublisher(client)
	sub := NewSubscriber(client, issuer)

	ch := ScreenNewResponses("v-1")
	token, err := issuer.Mint(ch, []string{TopicProgress})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := sub.Subscribe(ctx, token)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// Give the pub/sub receiver a moment to register before publishing.
	time.Sleep(50 * time.Millisecond)
	if err := pub.Publish(ctx, ch, TopicProgress, ProgressMessage{Total: 3, Status: StatusStarted}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-messages:
		if msg.Topic != TopicProgress {
			t.Fatalf("expected progress topic, got %q", msg.Topic)
		}
		var p ProgressMessage
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if p.Total != 3 || p.Status != StatusStarted {
			t.Fatalf("unexpected payload: %+v", p)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for message")
	}
}

func TestSubscribeDeliversOnlyGrantedTopics(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	issuer := NewTokenIssuer("test-secret", time.Minute)
	pub := NewPublisher(client)
	sub := NewSubscriber(client, issuer)

	ch := ScreenNewResponses("v-1")
	token, err := issuer.Mint(ch, []string{TopicProgress})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := sub.Subscribe(ctx, token)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// Give the pub/sub receiver a moment to register before publishing.
	time.Sleep(50 * time.Millisecond)

	// Publish to the ungranted topic first; a progress-only stream must
	// never deliver it.
	if err := pub.Publish(ctx, ch, TopicResult, ResultMessage{Succeeded: true}); err != nil {
		t.Fatalf("publish result: %v", err)
	}
	if err := pub.Publish(ctx, ch, TopicProgress, ProgressMessage{Total: 1, Status: StatusStarted}); err != nil {
		t.Fatalf("publish progress: %v", err)
	}

	select {
	case msg := <-messages:
		if msg.Topic != TopicProgress {
			t.Fatalf("stream delivered ungranted topic %q", msg.Topic)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for the granted topic")
	}

	select {
	case msg := <-messages:
		t.Fatalf("unexpected extra delivery on topic %q", msg.Topic)
	case <-time.After(100 * time.Millisecond):
	}
}
