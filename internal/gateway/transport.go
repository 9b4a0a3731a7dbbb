package gateway

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// loggingTransport logs every outgoing request at debug level.
type loggingTransport struct {
	next http.RoundTripper
	log  *zap.SugaredLogger
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(r)
	dur := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		t.log.Debugw("http request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", dur,
			"err", err,
		)
		return nil, err
	}
	t.log.Debugw("http request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", dur,
		"size", resp.ContentLength,
	)
	return resp, nil
}

// withLogging wraps rt so each round trip is logged; a nil logger leaves rt as is.
func withLogging(rt http.RoundTripper, log *zap.SugaredLogger) http.RoundTripper {
	if log == nil {
		return rt
	}
	return &loggingTransport{next: rt, log: log}
}
