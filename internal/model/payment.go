package model

import "time"

// PaymentStatus is the outcome of a payment attempt.  SUCCESS and FAILED
// are terminal.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// PaymentMethod identifies how a payment was made.
type PaymentMethod string

const PaymentCreditCard PaymentMethod = "CREDIT_CARD"

// Payment is an append-only record of one charge against a reservation.
type Payment struct {
	ID                    uint64        `json:"id"`                                // payments.id
	ReservationID         uint64        `json:"reservation_id"`                    // payments.reservation_id
	TransactionID         string        `json:"transaction_id"`                    // payments.transaction_id
	Method                PaymentMethod `json:"payment_method"`                    // payments.payment_method
	Amount                Money         `json:"amount"`                            // payments.amount
	Status                PaymentStatus `json:"status"`                            // payments.status
	PaymentDate           time.Time     `json:"payment_date"`                      // payments.payment_date
	ProcessedDate         *time.Time    `json:"processed_date,omitempty"`          // payments.processed_date (nullable)
	CardLastFour          string        `json:"card_last_four"`                    // payments.card_last_four
	CardHolderName        string        `json:"card_holder_name"`                  // payments.card_holder_name
	GatewayResponse       string        `json:"gateway_response"`                  // payments.gateway_response
	FailureReason         *string       `json:"failure_reason,omitempty"`          // payments.failure_reason (nullable)
	OriginalTransactionID *string       `json:"original_transaction_id,omitempty"` // payments.original_transaction_id (nullable)
}
