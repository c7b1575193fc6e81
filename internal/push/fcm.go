package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/augustino-massawe/chat-notifier/internal/config"
)

// FCMSender delivers notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

func NewFCMSender(ctx context.Context, cfg config.PushConfig) (*FCMSender, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var fbCfg *firebase.Config
	if cfg.ProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create fcm client: %w", err)
	}

	return &FCMSender{client: client}, nil
}

// Send submits one message. A dead-token response from FCM is wrapped
// with ErrTokenNotRegistered so callers classify it with errors.Is.
func (s *FCMSender) Send(ctx context.Context, n *Notification) (string, error) {
	id, err := s.client.Send(ctx, buildMessage(n))
	if err != nil {
		if isDeadToken(err) {
			return "", fmt.Errorf("%w: %v", ErrTokenNotRegistered, err)
		}
		return "", fmt.Errorf("fcm send failed: %w", err)
	}
	return id, nil
}

// isDeadToken reports whether the provider error means the target token
// is permanently invalid. FCM surfaces a malformed registration token as
// a bare INVALID_ARGUMENT with no token-specific code, so that class is
// included; the token is the only per-recipient input to buildMessage,
// the rest of the payload shape is fixed.
func isDeadToken(err error) bool {
	return messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err)
}

// buildMessage maps the provider-agnostic payload onto the FCM message
// shape, populating the platform-native alert blocks for Android, APNs
// and web push alongside the shared data block.
func buildMessage(n *Notification) *messaging.Message {
	badge := 1

	return &messaging.Message{
		Token: n.Token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID:             AndroidChannelID,
				DefaultSound:          true,
				DefaultVibrateTimings: true,
				ClickAction:           ClickAction,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: n.Title,
						Body:  n.Body,
					},
					Badge: &badge,
					Sound: "default",
				},
			},
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: n.Title,
				Body:  n.Body,
				Icon:  WebIcon,
			},
			FCMOptions: &messaging.WebpushFCMOptions{
				Link: n.Link,
			},
		},
	}
}
