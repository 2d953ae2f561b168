package models

type InvoiceStatus string

const (
	InvoiceStatusPending  InvoiceStatus = "pending"
	InvoiceStatusApproved InvoiceStatus = "approved"
	InvoiceStatusRejected InvoiceStatus = "rejected"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusApproved, InvoiceStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s InvoiceStatus) Terminal() bool {
	return s == InvoiceStatusApproved || s == InvoiceStatusRejected
}

type BikeStatus string

const (
	BikeStatusInTransit BikeStatus = "in_transit"
	BikeStatusAvailable BikeStatus = "available"
	BikeStatusSold      BikeStatus = "sold"
	BikeStatusReturned  BikeStatus = "returned"
	BikeStatusDamaged   BikeStatus = "damaged"
)

func (s BikeStatus) Valid() bool {
	switch s {
	case BikeStatusInTransit, BikeStatusAvailable, BikeStatusSold, BikeStatusReturned, BikeStatusDamaged:
		return true
	}
	return false
}

type WebhookStatus string

const (
	WebhookStatusReceived  WebhookStatus = "received"
	WebhookStatusProcessed WebhookStatus = "processed"
	WebhookStatusFailed    WebhookStatus = "failed"
)
