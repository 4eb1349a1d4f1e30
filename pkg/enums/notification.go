package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeTaskRequestReceived NotificationType = "task_request_received"
	NotificationTypeTaskStatusChanged   NotificationType = "task_status_changed"
	NotificationTypeOfferReceived       NotificationType = "offer_received"
	NotificationTypeOfferAccepted       NotificationType = "offer_accepted"
	NotificationTypeMessageReceived     NotificationType = "message_received"
	NotificationTypePaymentReceived     NotificationType = "payment_received"
	NotificationTypePayoutProcessed     NotificationType = "payout_processed"
	NotificationTypeReviewReceived      NotificationType = "review_received"
	NotificationTypeSystemAnnouncement  NotificationType = "system_announcement"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeTaskRequestReceived,
	NotificationTypeTaskStatusChanged,
	NotificationTypeOfferReceived,
	NotificationTypeOfferAccepted,
	NotificationTypeMessageReceived,
	NotificationTypePaymentReceived,
	NotificationTypePayoutProcessed,
	NotificationTypeReviewReceived,
	NotificationTypeSystemAnnouncement,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
