package enum

// ── User roles ──

const (
	RoleOwner      = "OWNER"
	RoleAccountant = "ACCOUNTANT"
	RoleStaff      = "STAFF"
)

// ── Journal types ──

const (
	JournalTypePayment = "payment"
	JournalTypeReceipt = "receipt"
	JournalTypeManual  = "manual"
)

// ── Payment directions ──

const (
	PaymentDirectionIn  = "IN"  // money received (customer pays us)
	PaymentDirectionOut = "OUT" // money paid out (we pay a supplier)
)

// ── Counterparty kinds ──

const (
	CounterpartyCustomer = "customer"
	CounterpartySupplier = "supplier"
)
