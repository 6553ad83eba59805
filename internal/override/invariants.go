package override

import (
	"fmt"

	"github.com/altipay/ledgercore/pkg/ledger"
)

// Role names the operational roles recognized by the override workflow.
type Role string

const (
	RoleFinance  Role = "finance"
	RoleApprover Role = "approver"
)

// Actor pairs an identity with its role for dual-confirmation checks.
type Actor struct {
	ID   ledger.ActorID
	Role Role
}

// AssertDistinctActors enforces dual confirmation: the identity deciding a
// request must differ from the identity that raised it. Checked before any
// other validation, with no role-based bypass.
func AssertDistinctActors(requestorID string, deciderID string) error {
	if requestorID == deciderID {
		return fmt.Errorf("%w: %s", ledger.ErrSelfApprovalForbidden, deciderID)
	}
	return nil
}

// AssertRoleAllowed enforces that an actor holds the role an operation
// demands.
func AssertRoleAllowed(actor Actor, required Role) error {
	if actor.Role != required {
		return fmt.Errorf("%w: role %q cannot perform this operation, need %q", ErrRoleForbidden, actor.Role, required)
	}
	return nil
}
