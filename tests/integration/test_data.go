package integration

import (
	"fmt"
	"time"
)

// TestCredentials generates unique test user credentials using a timestamp
func TestCredentials(suffix string) (username, email, password string) {
	ts := time.Now().UnixNano()
	// Keep the unique portion short enough that username stays within
	// the API's 30-character limit alongside the caller's suffix.
	username = fmt.Sprintf("u%d%s", ts%1_000_000_000_000, suffix)
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "TestPassword123"
	return
}
