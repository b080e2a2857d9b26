package httpx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"github.com/ariefcatur/go-watch-bids/internal/bids"
	"github.com/ariefcatur/go-watch-bids/internal/contextx"
	"github.com/ariefcatur/go-watch-bids/internal/logx"
)

//nolint:gochecknoglobals
var (
	json     = jsoniter.ConfigCompatibleWithStandardLibrary
	validate = validator.New(validator.WithRequiredStructEnabled())
)

var errValidation = errors.New("validation error")

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	SupportID string `json:"support_id"`
}

// decode reads a JSON body of at most maxBody bytes into dest and validates it.
func decode(r *http.Request, dest any) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBody)).Decode(dest); err != nil {
		return fmt.Errorf("invalid json: %v: %w", err, errValidation)
	}
	if err := validate.StructCtx(r.Context(), dest); err != nil {
		return fmt.Errorf("%v: %w", err, errValidation)
	}
	return nil
}

const maxBody = 1 << 20

// decodeOptional is decode for endpoints whose body may be empty.
func decodeOptional(r *http.Request, dest any) error {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBody))
	if err != nil {
		return fmt.Errorf("read body: %v: %w", err, errValidation)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return decode(r, dest)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger(ctx).Error("json.Encode", logx.Error(err))
	}
}

func statusOf(kind string) int {
	switch kind {
	case "NotFound":
		return http.StatusNotFound
	case "ForbiddenActor":
		return http.StatusForbidden
	case "InvalidAmount", "ValidationError":
		return http.StatusBadRequest
	case "InvalidTransition", "NoOpTransition", "NotAccepted":
		return http.StatusUnprocessableEntity
	case "ListingNotAvailable", "DuplicateActiveBid", "AlreadyConsumed", "Conflict":
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError maps an error kind to its status. Internal errors are logged and their text hidden.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := bids.Kind(err)
	if errors.Is(err, errValidation) {
		kind = "ValidationError"
	}
	code := statusOf(kind)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logger(ctx).Error("request failed", logx.Error(err))
		msg = "internal error"
	} else {
		logger(ctx).Info("request rejected", slog.String("kind", kind), logx.Error(err))
	}
	writeJSON(ctx, w, code, errorResponse{Code: kind, Message: msg, SupportID: supportID(ctx)})
}

func supportID(ctx context.Context) string {
	traceID, err := contextx.TraceIDFromContext(ctx)
	if err != nil {
		return "unsupported"
	}
	return traceID.String()
}
