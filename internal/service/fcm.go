package service

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"rollermate/internal/config"
	"rollermate/internal/logging"
)

// maxMulticastTokens is the FCM limit per multicast request.
const maxMulticastTokens = 500

// Pusher delivers push notifications to devices.
type Pusher interface {
	// SendToTokens returns the tokens FCM reported as no longer registered.
	SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) (stale []string, err error)
}

// FCMClient sends pushes through Firebase Cloud Messaging.
type FCMClient struct {
	client *messaging.Client
	log    zerolog.Logger
}

// NewFCMClient builds service-account credentials from config. The private
// key may carry literal "\n" sequences, as it does when loaded from .env.
func NewFCMClient(ctx context.Context, cfg *config.Config) (*FCMClient, error) {
	privateKey := strings.ReplaceAll(cfg.FCMPrivateKey, "\\n", "\n")

	credsJSON := fmt.Sprintf(`{
		"type": "service_account",
		"project_id": %q,
		"private_key": %q,
		"client_email": %q,
		"token_uri": "https://oauth2.googleapis.com/token"
	}`, cfg.FCMProjectID, privateKey, cfg.FCMClientEmail)

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON([]byte(credsJSON)))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}

	log := logging.For("FCM")
	log.Info().Str("project", cfg.FCMProjectID).Msg("initialized")
	return &FCMClient{client: client, log: log}, nil
}

func (c *FCMClient) SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error) {
	var stale []string
	for start := 0; start < len(tokens); start += maxMulticastTokens {
		end := min(start+maxMulticastTokens, len(tokens))
		batch := tokens[start:end]

		response, err := c.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       batch,
			Notification: &messaging.Notification{Title: title, Body: body},
			Data:         data,
			Android: &messaging.AndroidConfig{
				Priority:     "high",
				Notification: &messaging.AndroidNotification{Sound: "default"},
			},
			APNS: &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
			},
		})
		if err != nil {
			c.log.Error().Err(err).Int("tokens", len(batch)).Msg("SendToTokens FAILED")
			return stale, fmt.Errorf("send multicast: %w", err)
		}

		for i, resp := range response.Responses {
			if resp.Success {
				continue
			}
			if messaging.IsRegistrationTokenNotRegistered(resp.Error) {
				stale = append(stale, batch[i])
				continue
			}
			c.log.Warn().Err(resp.Error).Int("index", start+i).Msg("token delivery failed")
		}

		c.log.Debug().
			Int("tokens", len(batch)).
			Int("success", response.SuccessCount).
			Int("failure", response.FailureCount).
			Msg("SendToTokens OK")
	}
	return stale, nil
}
