package ledger

import (
	"github.com/hisabdesk/api/internal/store"
)

// Tree is an org's chart of accounts indexed for descendant lookups.
// Accounts form a forest via parent_id.
type Tree struct {
	byID     map[int64]store.Account
	children map[int64][]int64
}

// BuildTree indexes the given accounts. An empty slice yields an empty
// tree, which is valid: every lookup returns nothing.
func BuildTree(accounts []store.Account) *Tree {
	t := &Tree{
		byID:     make(map[int64]store.Account, len(accounts)),
		children: make(map[int64][]int64),
	}
	for _, a := range accounts {
		t.byID[a.ID] = a
		if a.ParentID.Valid {
			t.children[a.ParentID.Int64] = append(t.children[a.ParentID.Int64], a.ID)
		}
	}
	return t
}

// Account returns the indexed account and whether it exists.
func (t *Tree) Account(id int64) (store.Account, bool) {
	a, ok := t.byID[id]
	return a, ok
}

// Accounts returns all indexed accounts in unspecified order.
func (t *Tree) Accounts() []store.Account {
	accounts := make([]store.Account, 0, len(t.byID))
	for _, a := range t.byID {
		accounts = append(accounts, a)
	}
	return accounts
}

// Descendants returns rootID and every account reachable below it.
// Order is not significant; callers use the result as a filter set.
// A node reached twice means the parent graph is cyclic, which is
// reported as ErrCyclicHierarchy instead of looping forever.
func (t *Tree) Descendants(rootID int64) ([]int64, error) {
	if _, ok := t.byID[rootID]; !ok {
		return nil, nil
	}

	visited := map[int64]bool{rootID: true}
	result := []int64{rootID}
	stack := []int64{rootID}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range t.children[id] {
			if visited[child] {
				return nil, ErrCyclicHierarchy
			}
			visited[child] = true
			result = append(result, child)
			stack = append(stack, child)
		}
	}
	return result, nil
}
