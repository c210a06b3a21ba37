package telegram

import (
	"net/http"
	"time"

	"github.com/m3rciful/goroute/core/netutil"
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
// Long polling needs a client timeout above the poll timeout.
func BuildHTTPClient() *http.Client {
	return netutil.NewClient(netutil.ClientOptions{
		DialTimeout:     5 * time.Second,
		ResponseTimeout: 40 * time.Second,
		ClientTimeout:   60 * time.Second,
		RetryAttempts:   3,
		RetryBackoff:    2 * time.Second,
	})
}
