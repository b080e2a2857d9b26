package bids

import "fmt"

type Status string

const (
	StatusOffered        Status = "offered"
	StatusCounterOffered Status = "counter_offered"
	StatusAccepted       Status = "accepted"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("unknown bid status %q", s)
	}
	return st, nil
}

// IsTerminal reports whether no negotiation action can leave the status.
// An accepted bid may still be consumed once by the cart; that is not a status change.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsLive marks bids that block the same buyer from opening another bid on the listing.
func (s Status) IsLive() bool {
	return s == StatusOffered || s == StatusCounterOffered || s == StatusAccepted
}

type Action string

const (
	ActionPlace   Action = "place_bid"
	ActionCounter Action = "counter"
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"

	// roleResponder stands for whichever party did not make the latest counter.
	roleResponder Role = "responder"
)

func (r Role) Counterpart() Role {
	switch r {
	case RoleBuyer:
		return RoleSeller
	case RoleSeller:
		return RoleBuyer
	}
	return ""
}

type rule struct {
	actor Role
	to    Status
}

var transitions = map[Status]map[Action]rule{
	StatusOffered: {
		ActionCounter: {actor: RoleSeller, to: StatusCounterOffered},
		ActionAccept:  {actor: RoleSeller, to: StatusAccepted},
		ActionReject:  {actor: RoleSeller, to: StatusRejected},
		ActionCancel:  {actor: RoleBuyer, to: StatusCancelled},
	},
	StatusCounterOffered: {
		ActionCounter: {actor: roleResponder, to: StatusCounterOffered},
		ActionAccept:  {actor: roleResponder, to: StatusAccepted},
		ActionReject:  {actor: roleResponder, to: StatusRejected},
		ActionCancel:  {actor: RoleBuyer, to: StatusCancelled},
	},
	StatusAccepted:  {},
	StatusRejected:  {},
	StatusCancelled: {},
}

func CanTransition(from Status, action Action) bool {
	_, ok := transitions[from][action]
	return ok
}
