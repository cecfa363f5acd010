package sweep

import "errors"

var (
	ErrNoOrders = errors.New("no orders")
)
