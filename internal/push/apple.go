package push

import (
	"context"
	"fmt"
	"os"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// AppleProvider dispatches through Apple Push Notification service using
// token-based authentication, matching the Apple-only subscriber kind
// original_source's model carries.
type AppleProvider struct {
	client *apns2.Client
	topic  string
}

// NewAppleProviderFromEnv builds a provider from APPLE_PUSH_* environment
// variables. Returns (nil, nil) when the key material is absent — callers
// should treat that as "no push provider configured".
func NewAppleProviderFromEnv() (Provider, error) {
	keyPath := os.Getenv("APPLE_PUSH_KEY_PATH")
	keyID := os.Getenv("APPLE_PUSH_KEY_ID")
	teamID := os.Getenv("APPLE_PUSH_TEAM_ID")
	topic := os.Getenv("APPLE_PUSH_TOPIC")
	if keyPath == "" || keyID == "" || teamID == "" || topic == "" {
		return nil, nil
	}

	authKey, err := token.AuthKeyFromFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("load apns auth key: %w", err)
	}

	tok := &token.Token{AuthKey: authKey, KeyID: keyID, TeamID: teamID}
	client := apns2.NewTokenClient(tok)
	if os.Getenv("APPLE_PUSH_PRODUCTION") == "true" {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &AppleProvider{client: client, topic: topic}, nil
}

func (p *AppleProvider) Push(ctx context.Context, deviceToken, title, body string) (int, error) {
	pl := payload.NewPayload().AlertTitle(title).AlertBody(body).Sound("default")

	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       p.topic,
		Payload:     pl,
	}

	res, err := p.client.PushWithContext(ctx, notification)
	if err != nil {
		return 0, err
	}
	return res.StatusCode, nil
}
