package auth

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
)

// Operation names a gated scheduling operation.
type Operation int

const (
	OpListForRange Operation = iota + 1
	OpListMine
	OpBookViaSlot
	OpBookFreeForm
	OpListOpenSlots
	OpListDoctorSlots
	OpListMySlots
	OpPublishSlot
	OpDeleteSlot
	OpCancelBooking
)

func (op Operation) String() string {
	switch op {
	case OpListForRange:
		return "listForRange"
	case OpListMine:
		return "listMine"
	case OpBookViaSlot:
		return "bookViaSlot"
	case OpBookFreeForm:
		return "bookFreeForm"
	case OpListOpenSlots:
		return "listOpenSlots"
	case OpListDoctorSlots:
		return "listDoctorSlots"
	case OpListMySlots:
		return "listMySlots"
	case OpPublishSlot:
		return "publishSlot"
	case OpDeleteSlot:
		return "deleteSlot"
	case OpCancelBooking:
		return "cancelBooking"
	}
	return fmt.Sprintf("Operation(%d)", int(op))
}

type policy struct {
	public bool
	roles  []Role
}

var authenticated = []Role{RoleUser, RoleDoctor, RoleAdmin}

// policyFor is the role table. Ownership rules (own slot, own booking) are
// enforced by the scheduling service on top of this table.
func policyFor(op Operation) policy {
	switch op {
	case OpListForRange:
		return policy{roles: []Role{RoleAdmin}}
	case OpListMine:
		return policy{roles: []Role{RoleUser, RoleAdmin}}
	case OpBookViaSlot, OpBookFreeForm:
		return policy{roles: authenticated}
	case OpListOpenSlots, OpListDoctorSlots:
		return policy{public: true}
	case OpListMySlots:
		return policy{roles: []Role{RoleDoctor, RoleAdmin}}
	case OpPublishSlot:
		return policy{roles: []Role{RoleAdmin}}
	case OpDeleteSlot:
		return policy{roles: []Role{RoleDoctor, RoleAdmin}}
	case OpCancelBooking:
		return policy{roles: authenticated}
	}
	return policy{}
}

// Authorize checks p against the role table for op. It returns
// ErrUnauthenticated for anonymous callers of protected operations and
// ErrForbidden when the role is not listed. Unknown operations are denied.
func Authorize(p Principal, op Operation) error {
	pol := policyFor(op)
	if pol.public {
		return nil
	}
	if !p.Authenticated() {
		return fmt.Errorf("%w: %s", ErrUnauthenticated, op)
	}
	for _, r := range pol.roles {
		if p.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s may not %s", ErrForbidden, p.Role, op)
}
