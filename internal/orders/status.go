package orders

import "fmt"

type Status string

const (
	StatusPending         Status = "pending"
	StatusProcessing      Status = "processing"
	StatusShipped         Status = "shipped"
	StatusDelivered       Status = "delivered"
	StatusCancelled       Status = "cancelled"
	StatusReturnRequested Status = "return_requested"
	StatusReturned        Status = "returned"
	StatusRefunded        Status = "refunded"
)

// Actor is who asks for a status change.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorOperator Actor = "operator"
)

var validNext = map[Actor]map[Status]map[Status]bool{
	ActorCustomer: {
		StatusPending:    {StatusCancelled: true},
		StatusProcessing: {StatusCancelled: true},
		StatusDelivered:  {StatusReturnRequested: true},
		StatusReturned:   {StatusRefunded: true},
	},
	ActorOperator: {
		StatusPending:         {StatusProcessing: true, StatusCancelled: true},
		StatusProcessing:      {StatusShipped: true, StatusCancelled: true},
		StatusShipped:         {StatusDelivered: true},
		StatusReturnRequested: {StatusReturned: true},
		StatusReturned:        {StatusRefunded: true},
	},
}

func CanTransition(actor Actor, from, to Status) bool {
	return validNext[actor][from][to]
}

// Terminal states have no way out.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusRefunded
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered,
		StatusCancelled, StatusReturnRequested, StatusReturned, StatusRefunded:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}
