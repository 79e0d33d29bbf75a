// Package logging sets up structured logging and threads a request-scoped
// logger through context.
package logging

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type contextKeyLoggerType struct{}

var contextKeyLogger = &contextKeyLoggerType{}

const requestIDField = "requestID"

// Init configures the global logrus formatter and level.
func Init(level logrus.Level) {
	formatter := new(logrus.TextFormatter)
	formatter.TimestampFormat = "2006-01-02 15:04:05"
	formatter.FullTimestamp = true
	logrus.SetFormatter(formatter)
	logrus.SetLevel(level)
}

// ParseLevel maps the LOG_LEVEL environment value to a logrus level,
// defaulting to info on an unrecognized value.
func ParseLevel(s string) logrus.Level {
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Default returns a logger with no request context attached.
func Default() *logrus.Entry {
	return logrus.NewEntry(logrus.StandardLogger())
}

// WithRequestID assigns a new request id to the context if one isn't
// already present.
func WithRequestID(ctx context.Context) (context.Context, *logrus.Entry) {
	if ctx == nil {
		ctx = context.Background()
	}
	if entry, ok := ctx.Value(contextKeyLogger).(*logrus.Entry); ok {
		return ctx, entry
	}
	id, _ := uuid.NewUUID()
	entry := logrus.WithField(requestIDField, id.String())
	return context.WithValue(ctx, contextKeyLogger, entry), entry
}

// FromContext returns the logger attached to ctx, or the default logger.
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return Default()
	}
	if entry, ok := ctx.Value(contextKeyLogger).(*logrus.Entry); ok {
		return entry
	}
	return Default()
}

// Middleware attaches a request-scoped logger to every request's context.
func Middleware(router *mux.Router) {
	router.Use(func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, _ := WithRequestID(r.Context())
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	})
}
