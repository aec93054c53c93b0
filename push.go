package main

import (
	"context"
	"encoding/json"
	"os"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// pushTTLSeconds caps how long a push may sit queued at the push service.
const pushTTLSeconds = 86400

// pushPayload is the JSON body delivered to the service worker.
type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// pushSender delivers web-push notifications signed with VAPID keys.
type pushSender struct {
	publicKey  string
	privateKey string
	subject    string
}

// newPushSenderFromEnv reads the VAPID key pair from the environment.
// Returns nil when keys are absent; push delivery is then disabled.
func newPushSenderFromEnv() *pushSender {
	publicKey := os.Getenv("VAPID_PUBLIC_KEY")
	privateKey := os.Getenv("VAPID_PRIVATE_KEY")
	if publicKey == "" || privateKey == "" {
		return nil
	}
	subject := os.Getenv("VAPID_SUBJECT")
	if subject == "" {
		subject = "mailto:support@example.com"
	}
	return &pushSender{publicKey: publicKey, privateKey: privateKey, subject: subject}
}

func (p *pushSender) vapidPublicKey() string {
	return p.publicKey
}

// send pushes the payload to a single subscription.
func (p *pushSender) send(ctx context.Context, sub PushSubscription, payload pushPayload) error {
	if payload.URL == "" {
		payload.URL = "/dashboard"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      p.subject,
		VAPIDPublicKey:  p.publicKey,
		VAPIDPrivateKey: p.privateKey,
		TTL:             pushTTLSeconds,
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// sendPushToUser fans the payload out to every subscription the user has
// registered. Delivery failures are logged per endpoint, never returned.
func (s *server) sendPushToUser(ctx context.Context, externalID string, payload pushPayload) int {
	if s.push == nil {
		return 0
	}

	subs, err := s.store.ListPushSubscriptions(ctx, externalID)
	if err != nil {
		s.log.Warn().Err(err).Str("user", externalID).Msg("listing push subscriptions")
		return 0
	}

	sent := 0
	for _, sub := range subs {
		if err := s.push.send(ctx, sub, payload); err != nil {
			s.log.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("push send failed")
			continue
		}
		sent++
	}
	return sent
}
