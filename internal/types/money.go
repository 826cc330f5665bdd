// README: Common money value object used across modules.
package types

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Add returns m+o. A zero-currency operand adopts the other's currency.
// Amounts are not converted; callers check SameCurrency before summing.
func (m Money) Add(o Money) Money {
	cur := m.Currency
	if cur == "" {
		cur = o.Currency
	}
	return Money{Amount: m.Amount + o.Amount, Currency: cur}
}

// SameCurrency reports whether m and o can be summed. An empty currency
// matches anything.
func (m Money) SameCurrency(o Money) bool {
	return m.Currency == "" || o.Currency == "" || m.Currency == o.Currency
}
