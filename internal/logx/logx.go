package logx

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
)

const (
	FieldAction         = "action"
	FieldBidID          = "bid-id"
	FieldDurationMs     = "duration-ms"
	FieldError          = "error"
	FieldEventID        = "event-id"
	FieldEventType      = "event-type"
	FieldHTTPMethod     = "http-method"
	FieldListingID      = "listing-id"
	FieldResponseStatus = "response-status"
	FieldStack          = "stack"
	FieldTopic          = "topic"
	FieldTraceID        = "trace-id"
	FieldURL            = "url"
	FieldUserID         = "user-id"
)

var Error = tint.Err //nolint:gochecknoglobals

func Stringer(name string, value fmt.Stringer) slog.Attr {
	return slog.String(name, value.String())
}

// New builds the process logger; the service name is attached to every record.
func New(w io.Writer, level slog.Level, service string) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    true,
	})).With(slog.String("service", service))
}
