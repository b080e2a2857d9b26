package bids

import (
	"errors"
	"fmt"
)

var (
	ErrListingNotAvailable = errors.New("listing not available")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrForbiddenActor      = errors.New("forbidden actor")
	ErrDuplicateActiveBid  = errors.New("buyer already has a live bid on this listing")
	ErrNoOpTransition      = errors.New("no-op transition")
	ErrConflict            = errors.New("bid was modified concurrently")

	ErrNotFound        = errors.New("not found")
	ErrNotAccepted     = errors.New("bid not accepted")
	ErrAlreadyConsumed = errors.New("bid already consumed")
)

// TransitionError is an ErrInvalidTransition naming the status and the attempted action.
type TransitionError struct {
	From   Status
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s a bid in status %s", e.Action, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

var kinds = []struct {
	err  error
	kind string
}{
	{ErrListingNotAvailable, "ListingNotAvailable"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInvalidTransition, "InvalidTransition"},
	{ErrForbiddenActor, "ForbiddenActor"},
	{ErrDuplicateActiveBid, "DuplicateActiveBid"},
	{ErrNoOpTransition, "NoOpTransition"},
	{ErrConflict, "Conflict"},
	{ErrNotFound, "NotFound"},
	{ErrNotAccepted, "NotAccepted"},
	{ErrAlreadyConsumed, "AlreadyConsumed"},
}

// Kind names the error kind of err, or "Internal" when it is not one of ours.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Internal"
}
