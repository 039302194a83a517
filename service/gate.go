package service

import (
	"fmt"

	"github.com/Okprime/MVP-Match-Assessment/models"
)

type Operation int

const (
	OpDeposit Operation = iota + 1
	OpBuy
	OpResetDeposit
	OpCreateProduct
	OpUpdateProduct
	OpDeleteProduct
	OpUpdateProfile
)

func (op Operation) String() string {
	switch op {
	case OpDeposit:
		return "deposit"
	case OpBuy:
		return "buy"
	case OpResetDeposit:
		return "reset deposit"
	case OpCreateProduct:
		return "create product"
	case OpUpdateProduct:
		return "update product"
	case OpDeleteProduct:
		return "delete product"
	case OpUpdateProfile:
		return "update profile"
	default:
		return fmt.Sprintf("operation(%d)", int(op))
	}
}

// Gate holds the role permission matrix. It never touches state, so callers
// run it before anything is read for update.
type Gate struct{}

func NewGate() Gate {
	return Gate{}
}

func (Gate) Authorize(p models.Principal, op Operation) error {
	var allowed bool
	switch p.Role {
	case models.RoleBuyer:
		allowed = op == OpDeposit || op == OpBuy || op == OpResetDeposit || op == OpUpdateProfile
	case models.RoleSeller:
		allowed = op == OpCreateProduct || op == OpUpdateProduct || op == OpDeleteProduct || op == OpUpdateProfile
	case models.RoleUnknown:
		allowed = false
	}
	if !allowed {
		return fmt.Errorf("%w: role %s cannot %s", models.ErrForbidden, p.Role, op)
	}
	return nil
}

func (g Gate) AuthorizeOwner(p models.Principal, op Operation, ownerID int) error {
	if err := g.Authorize(p, op); err != nil {
		return err
	}
	if p.ID != ownerID {
		return fmt.Errorf("%w: user %d cannot %s owned by user %d", models.ErrForbidden, p.ID, op, ownerID)
	}
	return nil
}
