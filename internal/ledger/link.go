package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/hisabdesk/api/internal/store"
)

// LinkStore provides the reads and the one lazy write the link resolver
// needs. Satisfied by *store.Queries.
type LinkStore interface {
	AccountStore
	GetBankAccount(ctx context.Context, arg store.GetBankAccountParams) (store.BankAccount, error)
	SetBankAccountGL(ctx context.Context, arg store.SetBankAccountGLParams) (int64, error)
	GetCustomer(ctx context.Context, arg store.GetCustomerParams) (store.Customer, error)
	GetSupplier(ctx context.Context, arg store.GetSupplierParams) (store.Supplier, error)
}

// LinkResolver finds or heuristically assigns ledger accounts for
// ancillary records (bank accounts, payment counterparties), persisting
// discovered bank-account links so the lookup runs once.
type LinkResolver struct {
	store LinkStore
	keys  *KeyAccountResolver
}

// NewLinkResolver creates a LinkResolver.
func NewLinkResolver(s LinkStore, keys *KeyAccountResolver) *LinkResolver {
	return &LinkResolver{store: s, keys: keys}
}

// LinkBankAccount returns the GL account id for the bank account,
// resolving and persisting it if still unlinked. Resolution order: the
// stored link, bank-like account types, then a name substring match.
// Returns 0 when nothing resolves; the caller treats that as "no ledger
// linkage available". Safe to call concurrently: the persist only fires
// while the record is unlinked, and a lost race re-reads the winner.
func (r *LinkResolver) LinkBankAccount(ctx context.Context, orgID, bankAccountID int64) (int64, error) {
	ba, err := r.store.GetBankAccount(ctx, store.GetBankAccountParams{ID: bankAccountID, OrgID: orgID})
	if err != nil {
		return 0, err
	}
	if ba.GlAccountID.Valid {
		return ba.GlAccountID.Int64, nil
	}

	accounts, err := r.store.ListAccounts(ctx, orgID)
	if err != nil {
		return 0, err
	}

	glID := resolveByHeuristics(accounts, RoleBank)
	if glID == 0 {
		glID = matchAccountByName(accounts, ba.BankName, ba.AccountName)
	}
	if glID == 0 {
		return 0, nil
	}

	affected, err := r.store.SetBankAccountGL(ctx, store.SetBankAccountGLParams{
		ID:          bankAccountID,
		OrgID:       orgID,
		GlAccountID: glID,
	})
	if err != nil {
		return 0, fmt.Errorf("persist gl link: %w", err)
	}
	if affected == 0 {
		// A concurrent resolver linked first; its choice stands.
		ba, err := r.store.GetBankAccount(ctx, store.GetBankAccountParams{ID: bankAccountID, OrgID: orgID})
		if err != nil {
			return 0, err
		}
		if ba.GlAccountID.Valid {
			return ba.GlAccountID.Int64, nil
		}
	}
	return glID, nil
}

// ResolvePaymentCounterpart returns the GL account to post against for a
// payment counterparty. Order: the entity's own gl_account_id, the org's
// AR/AP key account, then the suspense fallback. As long as the org has
// at least one account the result is never 0, so every payment can post.
func (r *LinkResolver) ResolvePaymentCounterpart(ctx context.Context, orgID int64, counterpartyKind string, counterpartyID int64) (int64, error) {
	var role Role
	switch counterpartyKind {
	case "customer":
		c, err := r.store.GetCustomer(ctx, store.GetCustomerParams{ID: counterpartyID, OrgID: orgID})
		if err != nil {
			return 0, err
		}
		if c.GlAccountID.Valid {
			return c.GlAccountID.Int64, nil
		}
		role = RoleAR
	case "supplier":
		s, err := r.store.GetSupplier(ctx, store.GetSupplierParams{ID: counterpartyID, OrgID: orgID})
		if err != nil {
			return 0, err
		}
		if s.GlAccountID.Valid {
			return s.GlAccountID.Int64, nil
		}
		role = RoleAP
	default:
		return 0, ErrUnknownCounterparty
	}

	id, err := r.keys.Resolve(ctx, orgID, role)
	if err != nil {
		return 0, err
	}
	if id != 0 {
		return id, nil
	}

	accounts, err := r.store.ListAccounts(ctx, orgID)
	if err != nil {
		return 0, err
	}
	return SuspenseAccount(accounts), nil
}

// suspensePredicates is tried in order; the final predicate matches any
// account, so the fallback only fails on an empty chart of accounts.
var suspensePredicates = []accountPredicate{
	nameContains("clearing", "suspense"),
	typeIs("clearing", "suspense"),
	typeIs("liability", "current liability", "other liability", "equity"),
	func(store.Account) bool { return true },
}

// SuspenseAccount picks the last-resort clearing account from the chart:
// clearing/suspense by name or type, then a generic liability/equity
// account, then the lowest-code account of any kind. Returns 0 only when
// the chart is empty.
func SuspenseAccount(accounts []store.Account) int64 {
	sorted := sortedByCode(accounts)
	for _, pred := range suspensePredicates {
		for _, a := range sorted {
			if pred(a) {
				return a.ID
			}
		}
	}
	return 0
}

// matchAccountByName finds the first code-ordered account whose name
// contains, or is contained in, either of the given names.
func matchAccountByName(accounts []store.Account, names ...string) int64 {
	for _, a := range sortedByCode(accounts) {
		accName := strings.ToLower(a.Name)
		for _, n := range names {
			n = strings.ToLower(strings.TrimSpace(n))
			if n == "" {
				continue
			}
			if strings.Contains(accName, n) || strings.Contains(n, accName) {
				return a.ID
			}
		}
	}
	return 0
}
