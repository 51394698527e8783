package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// Коды ошибок валидации.
const (
	CodeMissingField = "MissingField"
	CodeInvalidField = "InvalidField"
	CodeNotFound     = "NotFound"
)

// FieldError описывает одно замечание к входным данным заказа.
type FieldError struct {
	Code    string
	Field   string
	Message string
}

// Result — итог проверки. Customer заполнен только при Valid=true.
type Result struct {
	Valid    bool
	Errors   []FieldError
	Customer domain.Customer
}

// Messages возвращает тексты ошибок в исходном порядке.
func (r Result) Messages() []string {
	msgs := make([]string, 0, len(r.Errors))
	for _, fe := range r.Errors {
		msgs = append(msgs, fe.Message)
	}
	return msgs
}

// HasCode сообщает, есть ли среди ошибок ошибка с данным кодом.
func (r Result) HasCode(code string) bool {
	for _, fe := range r.Errors {
		if fe.Code == code {
			return true
		}
	}
	return false
}

// Validator проверяет структуру заказа и существование клиента и товаров.
type Validator struct {
	customers domain.CustomerDirectory
	products  domain.ProductCatalog
	logger    *log.Entry
}

// NewValidator создаёт валидатор заказов.
func NewValidator(customers domain.CustomerDirectory, products domain.ProductCatalog, logger *log.Entry) *Validator {
	if logger == nil {
		logger = log.New().WithField("component", "order-validator")
	}
	return &Validator{customers: customers, products: products, logger: logger}
}

// Validate проверяет вход. Ошибка возвращается только при сбое справочников;
// замечания к данным попадают в Result.Errors.
func (v *Validator) Validate(ctx context.Context, customerID string, items []domain.ItemRequest, shippingAddress string) (Result, error) {
	if errs := structuralErrors(customerID, items, shippingAddress); len(errs) > 0 {
		return Result{Errors: errs}, nil
	}

	customer, err := v.customers.GetCustomer(ctx, customerID)
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound):
		return Result{Errors: []FieldError{{Code: CodeNotFound, Field: "customerId", Message: "Customer not found"}}}, nil
	case err != nil:
		return Result{}, fmt.Errorf("lookup customer %s: %w", customerID, err)
	}

	var errs []FieldError
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.ProductID]; dup {
			continue
		}
		seen[item.ProductID] = struct{}{}

		_, err := v.products.GetProduct(ctx, item.ProductID)
		switch {
		case errors.Is(err, domain.ErrProductNotFound):
			errs = append(errs, FieldError{
				Code:    CodeNotFound,
				Field:   "productId",
				Message: fmt.Sprintf("Product %s not found", item.ProductID),
			})
		case err != nil:
			return Result{}, fmt.Errorf("lookup product %s: %w", item.ProductID, err)
		}
	}
	if len(errs) > 0 {
		v.logger.WithFields(log.Fields{"customer_id": customerID, "missing": len(errs)}).Debug("order references unknown products")
		return Result{Errors: errs}, nil
	}

	return Result{Valid: true, Customer: customer}, nil
}

func structuralErrors(customerID string, items []domain.ItemRequest, shippingAddress string) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(customerID) == "" {
		errs = append(errs, FieldError{Code: CodeMissingField, Field: "customerId", Message: "customerId is required"})
	}
	if len(items) == 0 {
		errs = append(errs, FieldError{Code: CodeMissingField, Field: "items", Message: "items array must not be empty"})
	}
	if strings.TrimSpace(shippingAddress) == "" {
		errs = append(errs, FieldError{Code: CodeMissingField, Field: "shippingAddress", Message: "shippingAddress is required"})
	}

	for i, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			field := fmt.Sprintf("items[%d].productId", i)
			errs = append(errs, FieldError{Code: CodeMissingField, Field: field, Message: field + " is required"})
		}
		if item.Quantity <= 0 {
			field := fmt.Sprintf("items[%d].quantity", i)
			errs = append(errs, FieldError{Code: CodeInvalidField, Field: field, Message: field + " must be greater than zero"})
		}
	}

	return errs
}
