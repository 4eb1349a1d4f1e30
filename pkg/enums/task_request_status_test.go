package enums

import "testing"

func TestParseTaskRequestStatusCanonical(t *testing.T) {
	for _, status := range validTaskRequestStatuses {
		parsed, err := ParseTaskRequestStatus(string(status))
		if err != nil {
			t.Fatalf("parse %q: %v", status, err)
		}
		if parsed != status {
			t.Fatalf("parse %q returned %q", status, parsed)
		}
	}
}

func TestParseTaskRequestStatusLegacySpellings(t *testing.T) {
	cases := map[string]TaskRequestStatus{
		"Accepted":            TaskRequestStatusWaitingForPayment,
		"Waiting for Payment": TaskRequestStatusWaitingForPayment,
		"cancelled":           TaskRequestStatusCanceled,
		"Canceled by sender":  TaskRequestStatusCanceledBySender,
		"cancelled by sender": TaskRequestStatusCanceledBySender,
		"  paid  ":            TaskRequestStatusPaid,
	}
	for input, want := range cases {
		parsed, err := ParseTaskRequestStatus(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if parsed != want {
			t.Fatalf("parse %q returned %q, want %q", input, parsed, want)
		}
	}
}

func TestParseTaskRequestStatusRejectsUnknown(t *testing.T) {
	if _, err := ParseTaskRequestStatus("archived"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
