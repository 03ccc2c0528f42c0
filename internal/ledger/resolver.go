package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/hisabdesk/api/internal/store"
	"github.com/jackc/pgx/v5"
)

// Role is a semantic key-account role.
type Role string

const (
	RoleRevenue Role = "revenue"
	RoleCOGS    Role = "cogs"
	RoleAR      Role = "ar"
	RoleAP      Role = "ap"
	RoleCash    Role = "cash"
	RoleBank    Role = "bank"
	RoleMobile  Role = "mobile"
)

// ParseRole validates a role string from an external caller.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleRevenue, RoleCOGS, RoleAR, RoleAP, RoleCash, RoleBank, RoleMobile:
		return Role(s), nil
	}
	return "", ErrUnknownRole
}

// accountPredicate reports whether an account satisfies a role heuristic.
type accountPredicate func(store.Account) bool

func typeIs(types ...string) accountPredicate {
	return func(a store.Account) bool {
		t := strings.ToLower(strings.TrimSpace(a.AccountType))
		for _, want := range types {
			if t == want {
				return true
			}
		}
		return false
	}
}

func nameContains(substrings ...string) accountPredicate {
	return func(a store.Account) bool {
		name := strings.ToLower(a.Name)
		for _, s := range substrings {
			if strings.Contains(name, s) {
				return true
			}
		}
		return false
	}
}

// rolePredicates is the fallback policy: for each role, an ordered list of
// predicates tried in priority order over the code-sorted chart of
// accounts. The first account matching the earliest predicate wins.
var rolePredicates = map[Role][]accountPredicate{
	RoleAR:      {typeIs("accounts receivable", "receivable")},
	RoleAP:      {typeIs("accounts payable", "payable")},
	RoleBank:    {typeIs("bank", "cash at bank", "bank account")},
	RoleCash:    {typeIs("cash"), nameContains("cash")},
	RoleMobile:  {nameContains("bkash", "nagad", "mobile")},
	RoleRevenue: {typeIs("income", "revenue"), nameContains("sales")},
	RoleCOGS:    {nameContains("cogs", "cost of goods")},
}

// KeyAccountResolver maps semantic roles to concrete account ids,
// preferring the org's explicit mapping table and falling back to
// type/name heuristics over the chart of accounts.
type KeyAccountResolver struct {
	store AccountStore
}

// NewKeyAccountResolver creates a KeyAccountResolver.
func NewKeyAccountResolver(s AccountStore) *KeyAccountResolver {
	return &KeyAccountResolver{store: s}
}

// Resolve returns the account id for the role, or 0 when the org has
// neither a mapping nor a heuristic match. 0 is a documented empty state,
// not an error: callers treat the role as contributing nothing.
func (r *KeyAccountResolver) Resolve(ctx context.Context, orgID int64, role Role) (int64, error) {
	mapped, err := r.store.GetMappedAccount(ctx, store.GetMappedAccountParams{
		OrgID:  orgID,
		MapKey: string(role),
	})
	if err == nil {
		return mapped, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	accounts, err := r.store.ListAccounts(ctx, orgID)
	if err != nil {
		return 0, err
	}
	return resolveByHeuristics(accounts, role), nil
}

// ResolveRollupSet returns the set of account ids contributing to a
// categorical roll-up. With an explicit mapping the mapped account and all
// of its descendants are included; without one, heuristic matches are
// returned directly since there is no anchor root to expand.
func (r *KeyAccountResolver) ResolveRollupSet(ctx context.Context, orgID int64, role Role) ([]int64, error) {
	accounts, err := r.store.ListAccounts(ctx, orgID)
	if err != nil {
		return nil, err
	}

	mapped, err := r.store.GetMappedAccount(ctx, store.GetMappedAccountParams{
		OrgID:  orgID,
		MapKey: string(role),
	})
	if err == nil {
		return BuildTree(accounts).Descendants(mapped)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var ids []int64
	for _, pred := range rolePredicates[role] {
		for _, a := range sortedByCode(accounts) {
			if pred(a) && !containsID(ids, a.ID) {
				ids = append(ids, a.ID)
			}
		}
	}
	return ids, nil
}

// resolveByHeuristics picks the first code-ordered account satisfying the
// role's highest-priority matching predicate. Returns 0 when nothing
// matches.
func resolveByHeuristics(accounts []store.Account, role Role) int64 {
	sorted := sortedByCode(accounts)
	for _, pred := range rolePredicates[role] {
		for _, a := range sorted {
			if pred(a) {
				return a.ID
			}
		}
	}
	return 0
}

func sortedByCode(accounts []store.Account) []store.Account {
	sorted := make([]store.Account, len(accounts))
	copy(sorted, accounts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })
	return sorted
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
