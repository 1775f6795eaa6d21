package routing

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/upb/qna-gateway/services/providers"
)

// transientMarkers are lowercase substrings that mark a failure as temporary
var transientMarkers = []string{
	"429",
	"rate",
	"quota",
	"exceeded",
	"timeout",
	"timed out",
	"connect error",
	"connection refused",
	"temporary",
	"retry",
}

// Classify maps a provider failure to an ErrorKind.
// Missing credentials are detected structurally, never by message text.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindFatal
	}

	if errors.Is(err, providers.ErrCredentialMissing) {
		return KindCredentialMissing
	}

	var provErr *providers.ProviderError
	if errors.As(err, &provErr) {
		if provErr.StatusCode == http.StatusTooManyRequests || provErr.StatusCode >= http.StatusInternalServerError {
			return KindTransient
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return KindTransient
		}
	}

	return KindFatal
}
