package bot

import (
	"context"
	"log"

	"quizbot/internal/store"
)

// Authority decides who may use the admin surface. Three sources, checked
// in order: the configured super admin, the configured admin list, and
// admins granted at runtime through the store. The super admin cannot be
// removed by admin-management operations.
type Authority struct {
	superAdmin int64
	configured map[int64]bool
	store      store.Store
}

func NewAuthority(superAdmin int64, adminIDs []int64, st store.Store) *Authority {
	configured := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		configured[id] = true
	}
	return &Authority{superAdmin: superAdmin, configured: configured, store: st}
}

func (a *Authority) IsSuperAdmin(userID int64) bool {
	return userID != 0 && userID == a.superAdmin
}

func (a *Authority) IsAdmin(ctx context.Context, userID int64) bool {
	if a.IsSuperAdmin(userID) || a.configured[userID] {
		return true
	}
	ok, err := a.store.IsAdmin(ctx, userID)
	if err != nil {
		log.Printf("admin lookup for %d: %v", userID, err)
		return false
	}
	return ok
}

// Grant stores a new admin. Granting an already privileged identity is a
// reported no-op.
func (a *Authority) Grant(ctx context.Context, userID, grantedBy int64) (bool, error) {
	if a.IsSuperAdmin(userID) || a.configured[userID] {
		return false, nil
	}
	return a.store.AddAdmin(ctx, &store.Admin{UserID: userID, AddedBy: grantedBy})
}

// Revoke removes a store-granted admin. Configured admins and the super
// admin are not revocable.
func (a *Authority) Revoke(ctx context.Context, userID int64) (bool, error) {
	if a.IsSuperAdmin(userID) || a.configured[userID] {
		return false, nil
	}
	return a.store.RemoveAdmin(ctx, userID)
}
