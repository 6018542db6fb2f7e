package rbac

import "context"

// Optimistic applies a local change, runs commit, and reverts the local
// change when commit fails. The commit error is returned unchanged.
func Optimistic(ctx context.Context, apply func(), commit func(ctx context.Context) error, revert func()) error {
	apply()
	if err := commit(ctx); err != nil {
		revert()
		return err
	}
	return nil
}
