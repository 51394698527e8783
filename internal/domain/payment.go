package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChargeRequest описывает списание средств с клиента.
type ChargeRequest struct {
	Amount     decimal.Decimal
	CustomerID string
	Currency   string
	// IdempotencyKey позволяет провайдеру не списать дважды при повторе запроса.
	IdempotencyKey string
}

// Validate проверяет корректность запроса на списание.
func (r ChargeRequest) Validate() []error {
	var errs []error

	switch {
	case r.CustomerID == "":
		errs = append(errs, ErrCustomerRequired)
	case !r.Amount.IsPositive():
		errs = append(errs, ErrPaymentAmountInvalid)
	}

	return errs
}

// ChargeResult — подтверждение успешного списания.
type ChargeResult struct {
	Reference string
	Amount    decimal.Decimal
	Currency  string
	ChargedAt time.Time
}
