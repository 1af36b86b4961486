package common

import (
	"context"

	"github.com/sirupsen/logrus"
)

type loggerContextKey string

const loggerContextKeyVal = loggerContextKey("logger")

// WithLogger returns a context derived from ctx that carries entry, so
// downstream calls to Logger(ctx) pick it up.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerContextKeyVal, entry)
}

// Logger returns the logrus entry attached to ctx, or a standalone entry
// using the package default logger if none was attached.
func Logger(ctx context.Context) *logrus.Entry {
	val := ctx.Value(loggerContextKeyVal)
	if entry, ok := val.(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
