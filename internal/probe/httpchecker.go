package probe

import (
	"context"
	"net/http"
	"time"
)

// HTTPChecker sends HEAD requests, trying each scheme in order until one
// yields any response.
type HTTPChecker struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration // per scheme attempt
	Schemes   []string
}

func NewHTTPChecker(timeout time.Duration, userAgent string) *HTTPChecker {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	// Every target is a different host; pooled connections would only pile up.
	tr.DisableKeepAlives = true
	return &HTTPChecker{
		Client:    &http.Client{Transport: tr},
		UserAgent: userAgent,
		Timeout:   timeout,
		Schemes:   []string{"https", "http"},
	}
}

// HTTPOutcome is the result of the first attempt that got a response, or
// of the last failed attempt when none did.
type HTTPOutcome struct {
	Reached    bool
	Up         bool
	StatusCode int
	Scheme     string
	LatencyMS  float64
	Reason     string
}

func (h *HTTPChecker) Check(ctx context.Context, host string) HTTPOutcome {
	var out HTTPOutcome
	for _, scheme := range h.Schemes {
		out = h.head(ctx, scheme, host)
		if out.Reached {
			return out
		}
	}
	return out
}

func (h *HTTPChecker) head(ctx context.Context, scheme, host string) HTTPOutcome {
	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, scheme+"://"+host, nil)
	if err != nil {
		return HTTPOutcome{Scheme: scheme, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", h.UserAgent)

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		return HTTPOutcome{Scheme: scheme, LatencyMS: latency, Reason: err.Error()}
	}
	defer resp.Body.Close()

	return HTTPOutcome{
		Reached:    true,
		Up:         resp.StatusCode < 400,
		StatusCode: resp.StatusCode,
		Scheme:     scheme,
		LatencyMS:  latency,
		Reason:     resp.Status,
	}
}
