package fcm

import (
	"context"
	"errors"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/tasklinkhq/tasklink-backend/pkg/config"
	"github.com/tasklinkhq/tasklink-backend/pkg/logger"
)

var errNotConfigured = errors.New("fcm client not configured")

// Client wraps the Firebase Cloud Messaging sender.
type Client struct {
	client *messaging.Client
}

// Sender is the push surface consumed by the notification consumer.
type Sender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
	IsUnregistered(err error) bool
}

// NewClient initializes the Firebase app and messaging client. A missing
// credentials file disables push delivery without failing startup.
func NewClient(ctx context.Context, cfg config.FirebaseConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.CredentialsFile) == "" {
		if logg != nil {
			logg.Warn(ctx, "firebase credentials not configured, push delivery disabled")
		}
		return nil, nil
	}

	opts := []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
	var fbCfg *firebase.Config
	if strings.TrimSpace(cfg.ProjectID) != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, err
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}

	if logg != nil {
		logg.Info(ctx, "fcm client initialized")
	}
	return &Client{client: client}, nil
}

// Send delivers a push notification to a single device token.
func (c *Client) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if c == nil || c.client == nil {
		return errNotConfigured
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("device token is required")
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	_, err := c.client.Send(ctx, msg)
	return err
}

// IsUnregistered reports whether the send failed because the token is no
// longer registered and should be pruned.
func (c *Client) IsUnregistered(err error) bool {
	return messaging.IsUnregistered(err)
}
