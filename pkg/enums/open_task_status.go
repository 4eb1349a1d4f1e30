package enums

import "fmt"

// OpenTaskStatus tracks the lifecycle of a publicly posted task.
type OpenTaskStatus string

const (
	OpenTaskStatusOpen      OpenTaskStatus = "open"
	OpenTaskStatusAssigned  OpenTaskStatus = "assigned"
	OpenTaskStatusCompleted OpenTaskStatus = "completed"
	OpenTaskStatusCancelled OpenTaskStatus = "cancelled"
)

var validOpenTaskStatuses = []OpenTaskStatus{
	OpenTaskStatusOpen,
	OpenTaskStatusAssigned,
	OpenTaskStatusCompleted,
	OpenTaskStatusCancelled,
}

// String implements fmt.Stringer.
func (s OpenTaskStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OpenTaskStatus.
func (s OpenTaskStatus) IsValid() bool {
	for _, candidate := range validOpenTaskStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOpenTaskStatus converts raw input into an OpenTaskStatus.
func ParseOpenTaskStatus(value string) (OpenTaskStatus, error) {
	for _, candidate := range validOpenTaskStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid open task status %q", value)
}
