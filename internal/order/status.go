package order

// Order lifecycle statuses as displayed in the back office.
const (
	StatusPending     = "Pending"
	StatusForPrinting = "For Printing"
	StatusForDelivery = "For Delivery"
	StatusDelivered   = "Delivered"
	StatusCancelled   = "Cancelled"
)

// forward maps each status to the next one in the fulfilment flow.
var forward = map[string]string{
	StatusPending:     StatusForPrinting,
	StatusForPrinting: StatusForDelivery,
	StatusForDelivery: StatusDelivered,
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusForPrinting, StatusForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func Terminal(s string) bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether an order may move from one status to another.
// The fulfilment flow only moves forward one step at a time; cancellation is
// allowed from any non-terminal status.
func CanTransition(from, to string) bool {
	if !ValidStatus(from) || !ValidStatus(to) || from == to {
		return false
	}
	if Terminal(from) {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return forward[from] == to
}
