package transport

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	green      = "\033[32m"
	blue       = "\033[34m"
	cyan       = "\033[36m"
	yellow     = "\033[33m"
	magenta    = "\033[35m"
	gray       = "\033[90m"
	resetColor = "\033[0m"
)

var methodColors = map[string]string{
	http.MethodGet:    green,
	http.MethodPost:   blue,
	http.MethodPut:    cyan,
	http.MethodDelete: yellow,
	http.MethodPatch:  magenta,
}

// LoggingTransport logs every round trip at debug level
type LoggingTransport struct {
	next   http.RoundTripper
	logger zerolog.Logger
	color  bool
}

var _ http.RoundTripper = (*LoggingTransport)(nil)

// NewLoggingTransport wraps next. color pads and colours the method for a
// terminal (DEV).
func NewLoggingTransport(next http.RoundTripper, logger zerolog.Logger, color bool) *LoggingTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &LoggingTransport{next: next, logger: logger, color: color}
}

func (l *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := l.next.RoundTrip(req)

	event := l.logger.Debug().
		Str("method", l.method(req.Method)).
		Str("path", req.URL.Path).
		Str("request_id", req.Header.Get("x-request-id")).
		Dur("elapsed", time.Since(start))
	if err != nil {
		event.Err(err).Msg("request failed")
		return nil, err
	}
	event.Int("status", resp.StatusCode).Msg("request")
	return resp, nil
}

func (l *LoggingTransport) method(method string) string {
	if !l.color {
		return method
	}
	color, ok := methodColors[method]
	if !ok {
		color = gray
	}
	return color + fmt.Sprintf("%-7s", method) + resetColor
}
