// Package fees computes platform and gateway fees for a settlement amount.
//
// All amounts are integer minor currency units (paise, cents). Fee rates are
// expressed in per-mille so the computation stays in integer arithmetic and is
// exactly reproducible: the same (amount, method) pair always yields the same
// breakdown.
package fees

// Method identifies how the buyer pays.
type Method string

const (
	MethodCard         Method = "card"
	MethodNetbanking   Method = "netbanking"
	MethodUPI          Method = "upi"
	MethodWallet       Method = "wallet"
	MethodBankTransfer Method = "bank_transfer"
)

// platformPermille is the platform commission: 2.5%.
const platformPermille int64 = 25

// gatewayPermille maps a payment method to its processing rate.
var gatewayPermille = map[Method]int64{
	MethodCard:         29, // 2.9%
	MethodNetbanking:   19, // 1.9%
	MethodUPI:          15, // 1.5%
	MethodWallet:       20, // 2.0%
	MethodBankTransfer: 10, // 1.0%
}

// Breakdown is the fee split for a single transaction.
type Breakdown struct {
	Platform int64 `json:"platform"`
	Payment  int64 `json:"payment"`
	Total    int64 `json:"total"`
}

// Known reports whether method is a recognized payment method.
func Known(method Method) bool {
	_, ok := gatewayPermille[method]
	return ok
}

// Compute returns the fee breakdown for amount paid via method.
// Unknown methods are charged at the card rate. Negative amounts are
// treated as zero; validation belongs to the caller.
func Compute(amount int64, method Method) Breakdown {
	if amount < 0 {
		amount = 0
	}
	rate, ok := gatewayPermille[method]
	if !ok {
		rate = gatewayPermille[MethodCard]
	}
	platform := roundPermille(amount, platformPermille)
	payment := roundPermille(amount, rate)
	return Breakdown{
		Platform: platform,
		Payment:  payment,
		Total:    platform + payment,
	}
}

// roundPermille computes amount*permille/1000 rounded half-up to the
// nearest minor unit.
func roundPermille(amount, permille int64) int64 {
	return (amount*permille + 500) / 1000
}
