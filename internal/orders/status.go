package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

func ValidStatus(s Status) bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func ValidPaymentStatus(p PaymentStatus) bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// adminNext is the administrator-facing transition table. Every move is
// currently allowed, backward ones included; tightening the rule later is a
// table edit, not a rewrite. Cancel and delete have their own guards below
// and do not consult this table.
var adminNext = map[Status]map[Status]bool{
	StatusPending:    {StatusPending: true, StatusProcessing: true, StatusShipped: true, StatusDelivered: true, StatusCancelled: true},
	StatusProcessing: {StatusPending: true, StatusProcessing: true, StatusShipped: true, StatusDelivered: true, StatusCancelled: true},
	StatusShipped:    {StatusPending: true, StatusProcessing: true, StatusShipped: true, StatusDelivered: true, StatusCancelled: true},
	StatusDelivered:  {StatusPending: true, StatusProcessing: true, StatusShipped: true, StatusDelivered: true, StatusCancelled: true},
	StatusCancelled:  {StatusPending: true, StatusProcessing: true, StatusShipped: true, StatusDelivered: true, StatusCancelled: true},
}

func CanTransition(from, to Status) bool {
	return adminNext[from][to]
}

// Terminal states admit no further lifecycle transitions.
func Terminal(s Status) bool {
	return s == StatusDelivered || s == StatusCancelled
}

func CanCancel(s Status) bool { return !Terminal(s) }

func CanDelete(s Status) bool { return s == StatusCancelled }

// CancelPayment maps the payment status on cancellation: paid orders are
// refunded, everything else is marked failed.
func CancelPayment(p PaymentStatus) PaymentStatus {
	if p == PaymentPaid {
		return PaymentRefunded
	}
	return PaymentFailed
}
