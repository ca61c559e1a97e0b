// Package notify delivers best-effort push notifications through Firebase
// Cloud Messaging. Delivery failures are logged and never surfaced as
// booking-operation failures.
package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// UserTopic is the FCM topic a customer's app subscribes to.
func UserTopic(userID uuid.UUID) string {
	return "user-" + userID.String()
}

// DriverTopic is the FCM topic a driver's app subscribes to.
func DriverTopic(driverID uuid.UUID) string {
	return "driver-" + driverID.String()
}

// Sender pushes a title/body/data payload to a topic.
type Sender interface {
	Send(ctx context.Context, topic, title, body string, data map[string]string)
}

// FCMSender is the production Sender backed by the Firebase Admin SDK.
type FCMSender struct {
	client *messaging.Client
	logger *zap.Logger
}

// NewFCMSender initialises the Firebase app and messaging client. If
// credentialsFile is empty, application-default credentials are used.
func NewFCMSender(ctx context.Context, projectID, credentialsFile string, logger *zap.Logger) (*FCMSender, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Messaging: %w", err)
	}
	return &FCMSender{client: client, logger: logger}, nil
}

// Send pushes one notification. Errors are logged, not returned.
func (s *FCMSender) Send(ctx context.Context, topic, title, body string, data map[string]string) {
	msg := &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}
	if _, err := s.client.Send(ctx, msg); err != nil {
		s.logger.Warn("push notification delivery failed",
			zap.String("topic", topic),
			zap.String("title", title),
			zap.Error(err),
		)
	}
}

// NopSender discards notifications. Used when FCM is not configured and in
// tests.
type NopSender struct{}

// Send implements Sender.
func (NopSender) Send(context.Context, string, string, string, map[string]string) {}
