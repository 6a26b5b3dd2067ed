// Package notify delivers best-effort operational alerts.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"
)

// EmailNotifier alerts an administrator when the QuickBooks refresh token has
// gone bad and a manual reconnect is needed. Delivery is best effort; the
// alert currently goes to the process log addressed to the admin, which is
// where deployments pick it up.
type EmailNotifier struct {
	adminEmail string
	reconnect  string
}

// NewEmailNotifier creates a notifier addressed to adminEmail. reconnectURL
// is included in the alert so the operator knows where to re-authenticate.
func NewEmailNotifier(adminEmail, reconnectURL string) *EmailNotifier {
	return &EmailNotifier{
		adminEmail: adminEmail,
		reconnect:  reconnectURL,
	}
}

// TokenRefreshFailed sends the refresh-failure alert.
func (n *EmailNotifier) TokenRefreshFailed(ctx context.Context, cause error) error {
	subject := "QuickBooks token refresh failed - action required"
	body := fmt.Sprintf(`QuickBooks integration error

Time: %s
Error: %v

Action required:
Re-authenticate with QuickBooks at %s

This typically occurs when the refresh token has expired (after ~100 days).`,
		time.Now().UTC().Format("2006-01-02 15:04:05")+" UTC", cause, n.reconnect)

	log.Printf("EMAIL ALERT for %s: %s\n%s", n.adminEmail, subject, body)
	return nil
}
