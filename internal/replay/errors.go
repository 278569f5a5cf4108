package replay

import "errors"

// ErrInvalidOrdering is returned when events are not in non-decreasing time order.
var ErrInvalidOrdering = errors.New("events are not in chronological order")
