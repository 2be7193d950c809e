package ledger

// Two sentinel accounts live outside normal user ownership so deposits and
// withdrawals can be recorded as ordinary two-sided transfers: cash leaves
// through the withdraw sink and enters from the deposit source.
const (
	WithdrawSinkAccount  = "0000000001"
	DepositSourceAccount = "0000000002"

	// BankUserID owns the sentinel accounts.
	BankUserID = "thebank"
)

// IsSentinel reports whether accountNumber is one of the two sentinel
// accounts any user may transfer against.
func IsSentinel(accountNumber string) bool {
	return accountNumber == WithdrawSinkAccount || accountNumber == DepositSourceAccount
}
