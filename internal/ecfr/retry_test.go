package ecfr

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldRetryTransientErrors(t *testing.T) {
	t.Parallel()
	policy := NewExponentialRetryPolicy()

	require.True(t, policy.ShouldRetry(errors.New("connection reset"), 1))
	require.True(t, policy.ShouldRetry(&FetchError{URL: "u", StatusCode: http.StatusInternalServerError}, 1))
	require.True(t, policy.ShouldRetry(&FetchError{URL: "u", StatusCode: http.StatusBadGateway}, 2))
	require.True(t, policy.ShouldRetry(&FetchError{URL: "u", StatusCode: http.StatusTooManyRequests}, 1))
}

func TestShouldRetryConnectionResets(t *testing.T) {
	t.Parallel()
	policy := NewExponentialRetryPolicy()

	reset := &url.Error{
		Op:  "Get",
		URL: "https://www.ecfr.gov/api/admin/v1/agencies.json",
		Err: &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)},
	}
	require.True(t, policy.ShouldRetry(reset, 1))

	refused := &url.Error{
		Op:  "Get",
		URL: "https://www.ecfr.gov/api/admin/v1/agencies.json",
		Err: &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)},
	}
	require.True(t, policy.ShouldRetry(refused, 1))

	// Other non-timeout network errors stay terminal.
	dnsFailure := &url.Error{
		Op:  "Get",
		URL: "https://www.ecfr.gov/api/admin/v1/agencies.json",
		Err: &net.DNSError{Err: "no such host", Name: "www.ecfr.gov", IsNotFound: true},
	}
	require.False(t, policy.ShouldRetry(dnsFailure, 1))
}

func TestShouldRetryPermanentFailures(t *testing.T) {
	t.Parallel()
	policy := NewExponentialRetryPolicy()

	require.False(t, policy.ShouldRetry(nil, 1))
	require.False(t, policy.ShouldRetry(&FetchError{URL: "u", StatusCode: http.StatusNotFound}, 1))
	require.False(t, policy.ShouldRetry(&FetchError{URL: "u", StatusCode: http.StatusBadRequest}, 1))
	require.False(t, policy.ShouldRetry(context.Canceled, 1))
	require.False(t, policy.ShouldRetry(context.DeadlineExceeded, 1))
}

func TestShouldRetryRespectsAttemptCap(t *testing.T) {
	t.Parallel()
	policy := NewRetryPolicy(3, time.Millisecond, time.Second)

	err := errors.New("transient")
	require.True(t, policy.ShouldRetry(err, 1))
	require.True(t, policy.ShouldRetry(err, 2))
	require.False(t, policy.ShouldRetry(err, 3))
	require.False(t, policy.ShouldRetry(err, 9))
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()
	policy := NewRetryPolicy(5, 100*time.Millisecond, time.Second)

	for attempt := 0; attempt < 6; attempt++ {
		backoff := policy.Backoff(attempt)
		require.Positive(t, backoff)
		require.LessOrEqual(t, backoff, time.Second)
	}
}
