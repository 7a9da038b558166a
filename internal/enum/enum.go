package enum

const (
	OrderStatusOpen      = "OPEN"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

const (
	OrderTypeDineIn   = "DINE_IN"
	OrderTypeTakeaway = "TAKEAWAY"
	OrderTypeDelivery = "DELIVERY"
)

const (
	LineKindMenuItem = "MENU_ITEM"
	LineKindDeal     = "DEAL"
)

// SelectionMode is the closed set of ways a variant's options may be chosen.
type SelectionMode string

const (
	SelectSingle   SelectionMode = "SINGLE"   // exactly one option (radio)
	SelectMultiple SelectionMode = "MULTIPLE" // zero or more options (checkbox)
	SelectAll      SelectionMode = "ALL"      // every allowed option, fixed
)

// Valid reports whether m is one of the three known modes.
func (m SelectionMode) Valid() bool {
	switch m {
	case SelectSingle, SelectMultiple, SelectAll:
		return true
	}
	return false
}

const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED_AMOUNT"
)

const (
	StaffRoleManager = "MANAGER"
	StaffRoleCashier = "CASHIER"
)

// Resources terminals can subscribe to for change notifications.
const (
	ResourceOrders     = "orders"
	ResourceOrderItems = "order_items"
	ResourcePayments   = "payments"
)
