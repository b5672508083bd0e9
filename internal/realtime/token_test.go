package realtime

import (
	"errors"
	"testing"
	"time"
)

func TestMintAndVerify(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute)
	ch := ScreenNewResponses("v-1")

	token, err := issuer.Mint(ch, []string{TopicProgress, TopicResult})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.ChannelKey != ch.Key {
		t.Fatalf("expected channel %q, got %q", ch.Key, claims.ChannelKey)
	}
	if len(claims.Topics) != 2 {
		t.Fatalf("expected 2 topics, got %v", claims.Topics)
	}
}

func TestMintRejectsForeignTopics(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute)
	ch := VacancyRefresh("v-1")

	if _, err := issuer.Mint(ch, []string{TopicResult}); err == nil {
		t.Fatalf("expected rejection of topic outside channel set")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute)
	other := NewTokenIssuer("other-secret", time.Minute)
	ch := WelcomeBatch("v-1")

	token, err := issuer.Mint(ch, ch.Topics)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := other.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer := &TokenIssuer{secret: []byte("test-secret"), ttl: -time.Minute}
	ch := ExtractRequirements("v-1")

	token, err := issuer.Mint(ch, ch.Topics)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := issuer.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected expired token to be invalid, got %v", err)
	}
}
