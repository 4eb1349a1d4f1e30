package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTaskRequestsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_task_requests.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no task requests migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS task_requests",
		"status task_request_status NOT NULL DEFAULT 'pending'",
		"FOREIGN KEY (sender_id) REFERENCES users(id) ON DELETE CASCADE",
		"FOREIGN KEY (tasker_id) REFERENCES users(id) ON DELETE CASCADE",
		"CHECK (duration_minutes > 0)",
		"CHECK (hourly_rate_cents >= 0)",
		"CREATE TABLE IF NOT EXISTS task_request_photos",
		"DROP TABLE IF EXISTS task_requests",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
