package authz

import "kbhub/internal/client/api"

// Effective roles resolved for a (knowledge base, memberships, user)
// triple. RoleNone means the user has no access at all.
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
	RoleWrite = "write"
	RoleRead  = "read"
	RoleNone  = "none"
)

// Authority resolves what a user may do on one knowledge base. It is a
// pure function of its inputs: no I/O, deterministic, safe to rebuild
// on every render.
type Authority struct {
	kb      api.KnowledgeBase
	members []api.Member
	userID  uint
}

func NewAuthority(kb api.KnowledgeBase, members []api.Member, userID uint) Authority {
	return Authority{kb: kb, members: members, userID: userID}
}

func (a Authority) IsOwner() bool {
	return a.userID == a.kb.OwnerID
}

// EffectiveRole combines ownership, the explicit membership row, and
// the visibility default. Ownership wins even when no membership row
// exists for the owner.
func (a Authority) EffectiveRole() string {
	if a.IsOwner() {
		return RoleOwner
	}
	for _, m := range a.members {
		if m.UserID == a.userID {
			return m.Role
		}
	}
	if a.kb.Visibility == "public" {
		return RoleRead
	}
	return RoleNone
}

func (a Authority) CanManageMembers() bool {
	return a.IsOwner() || a.EffectiveRole() == RoleAdmin
}

func (a Authority) CanEdit() bool {
	return a.CanManageMembers()
}

// CanDelete is owner-only and non-delegable.
func (a Authority) CanDelete() bool {
	return a.IsOwner()
}

func (a Authority) CanInvite() bool {
	return a.CanManageMembers()
}

// CanChangeRole reports whether the user may change the target's role.
// The owner role is immutable through this path, so the check must hold
// before any request is issued, not merely drive what the UI shows.
func (a Authority) CanChangeRole(targetUserID uint) bool {
	return a.CanManageMembers() && a.targetRole(targetUserID) != RoleOwner
}

func (a Authority) CanRemove(targetUserID uint) bool {
	return a.CanManageMembers() && a.targetRole(targetUserID) != RoleOwner
}

func (a Authority) targetRole(targetUserID uint) string {
	if targetUserID == a.kb.OwnerID {
		return RoleOwner
	}
	for _, m := range a.members {
		if m.UserID == targetUserID {
			return m.Role
		}
	}
	return RoleNone
}

// Capabilities is the flag set derived for one user on one knowledge
// base, handy for callers that want a snapshot instead of an Authority.
type Capabilities struct {
	EffectiveRole    string
	CanManageMembers bool
	CanEdit          bool
	CanDelete        bool
	CanInvite        bool
}

func Resolve(kb api.KnowledgeBase, members []api.Member, userID uint) Capabilities {
	a := NewAuthority(kb, members, userID)
	return Capabilities{
		EffectiveRole:    a.EffectiveRole(),
		CanManageMembers: a.CanManageMembers(),
		CanEdit:          a.CanEdit(),
		CanDelete:        a.CanDelete(),
		CanInvite:        a.CanInvite(),
	}
}
