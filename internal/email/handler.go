package email

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nazek/booking-api/internal/model"
)

// NotificationHandler emails the recipient of a notification.created event.
// Events without a recipient address are dropped.
func NotificationHandler(svc Service) func(ctx context.Context, event *model.OutboxEvent) error {
	return func(ctx context.Context, event *model.OutboxEvent) error {
		var payload model.NotificationPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("failed to decode notification payload: %w", err)
		}
		if payload.RecipientEmail == "" {
			return nil
		}
		return svc.Send(ctx, RenderNotification(&payload))
	}
}
