package checkout

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentResult is the outcome of the payment confirmation step.
type PaymentResult struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"paymentId,omitempty"`
}

// PaymentConfirmer runs the payment step for methods other than cash on delivery.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, method PaymentMethod, amount decimal.Decimal) (PaymentResult, error)
}

// SimulatedConfirmer approves every payment. There is no gateway behind it.
type SimulatedConfirmer struct{}

func (SimulatedConfirmer) Confirm(_ context.Context, _ PaymentMethod, _ decimal.Decimal) (PaymentResult, error) {
	return PaymentResult{Success: true, PaymentID: "PAY-" + uuid.NewString()}, nil
}
