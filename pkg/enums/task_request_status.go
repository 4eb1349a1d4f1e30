package enums

import (
	"fmt"
	"strings"
)

// TaskRequestStatus tracks the lifecycle of a task request.
type TaskRequestStatus string

const (
	TaskRequestStatusPending           TaskRequestStatus = "pending"
	TaskRequestStatusWaitingForPayment TaskRequestStatus = "waiting_for_payment"
	TaskRequestStatusDeclined          TaskRequestStatus = "declined"
	TaskRequestStatusPaid              TaskRequestStatus = "paid"
	TaskRequestStatusCompleted         TaskRequestStatus = "completed"
	TaskRequestStatusCanceled          TaskRequestStatus = "canceled"
	TaskRequestStatusCanceledBySender  TaskRequestStatus = "canceled_by_sender"
	TaskRequestStatusRefunded          TaskRequestStatus = "refunded"
)

var validTaskRequestStatuses = []TaskRequestStatus{
	TaskRequestStatusPending,
	TaskRequestStatusWaitingForPayment,
	TaskRequestStatusDeclined,
	TaskRequestStatusPaid,
	TaskRequestStatusCompleted,
	TaskRequestStatusCanceled,
	TaskRequestStatusCanceledBySender,
	TaskRequestStatusRefunded,
}

// legacyTaskRequestStatusAliases maps spellings still sent by older
// clients onto canonical statuses. "accepted" is what the tasker app
// sends when the tasker approves a request; the request then waits for
// the sender to pay.
var legacyTaskRequestStatusAliases = map[string]TaskRequestStatus{
	"accepted":            TaskRequestStatusWaitingForPayment,
	"cancelled":           TaskRequestStatusCanceled,
	"cancelled_by_sender": TaskRequestStatusCanceledBySender,
}

// String implements fmt.Stringer.
func (s TaskRequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TaskRequestStatus.
func (s TaskRequestStatus) IsValid() bool {
	for _, candidate := range validTaskRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTaskRequestStatus converts raw input into a TaskRequestStatus.
// Matching is case-insensitive, folds spaces into underscores ("Waiting
// for Payment" → waiting_for_payment), and accepts legacy client
// spellings.
func ParseTaskRequestStatus(value string) (TaskRequestStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	for _, candidate := range validTaskRequestStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	if mapped, ok := legacyTaskRequestStatusAliases[normalized]; ok {
		return mapped, nil
	}
	return "", fmt.Errorf("invalid task request status %q", value)
}
