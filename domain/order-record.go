package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderRecord tracks the individual resting orders seen in the last
// depth snapshot, keyed by a synthetic identity. It is valid only for
// the lifetime of the current synchronized epoch; a reset discards it
// entirely.
type OrderRecord map[string]PriceLevel

// SyntheticOrderID derives an order identity from side, size and
// price. The venue exposes no native order id in pricebook responses,
// so two distinct resting orders with equal size at the same price
// collide; the level aggregate still counts both, the record keeps
// only one entry. Accepted approximation, covered by tests.
func SyntheticOrderID(side Side, size, price decimal.Decimal) string {
	return fmt.Sprintf("%s@%s@%s", side, size, price)
}
