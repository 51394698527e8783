package domain

import (
	"errors"
	"strings"
)

// Виды ошибок саги. Каждая операция оркестратора возвращает *Error, чей Kind
// равен одному из этих значений; проверка выполняется через errors.Is.
var (
	// ErrValidationFailed — некорректный ввод или несуществующая ссылка (ошибка клиента, без побочных эффектов).
	ErrValidationFailed = errors.New("validation failed")
	// ErrInsufficientStock — склад не смог зарезервировать товары (без побочных эффектов).
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrPaymentFailed — списание не прошло; резерв уже снят компенсацией.
	ErrPaymentFailed = errors.New("payment failed")
	// ErrNotFound — заказ или сущность не найдены.
	ErrNotFound = errors.New("not found")
	// ErrConflict — недопустимый переход статуса.
	ErrConflict = errors.New("conflict")
	// ErrCompensationIncomplete — шаг компенсации при отмене не выполнился, нужен повтор.
	ErrCompensationIncomplete = errors.New("compensation incomplete")
	// ErrUpstreamUnavailable — таймаут или недоступность внешнего сервиса.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

var errorKinds = []error{
	ErrValidationFailed,
	ErrInsufficientStock,
	ErrPaymentFailed,
	ErrNotFound,
	ErrConflict,
	ErrCompensationIncomplete,
	ErrUpstreamUnavailable,
}

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отсутствующего адреса доставки.
	ErrShippingAddressRequired = errors.New("shipping address is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка отрицательной суммы в заказе.
	ErrAmountNegative = errors.New("order amounts must be non-negative")
	// Ошибка несоответствия total и subtotal - discount + tax.
	ErrTotalMismatch = errors.New("order total does not match subtotal - discount + tax")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product_id is required")
	// Ошибка неизвестного статуса заказа.
	ErrStatusInvalid = errors.New("order status is invalid")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyExists — заказ с таким ID уже сохранён.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrOrderVersionConflict сигнализирует, что заказ изменился параллельно.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrCustomerNotFound возвращается справочником клиентов.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrProductNotFound возвращается каталогом товаров.
	ErrProductNotFound = errors.New("product not found")
	// ErrInventoryTemporary — временная ошибка склада, операцию можно повторить.
	ErrInventoryTemporary = errors.New("inventory temporary error")
	// ErrPaymentDeclined — платёж отклонён провайдером (бизнес-ошибка).
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrPaymentTemporary — временная ошибка платёжного провайдера.
	ErrPaymentTemporary = errors.New("payment temporary error")
	// ErrPaymentAmountInvalid — сумма списания или возврата должна быть положительной.
	ErrPaymentAmountInvalid = errors.New("payment amount must be positive")
	// ErrPaymentReferenceRequired — для возврата нужен идентификатор платежа.
	ErrPaymentReferenceRequired = errors.New("payment reference is required")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrIdempotencyInProgress — запрос с тем же ключом ещё обрабатывается.
	ErrIdempotencyInProgress = errors.New("request with this idempotency key is in progress")
	// ErrIdempotencyKeyReused — ключ уже использован с другим содержимым запроса.
	ErrIdempotencyKeyReused = errors.New("idempotency key is already used with a different request")
)

// Error — ошибка операции саги с видом из таксономии и деталями для клиента.
type Error struct {
	Kind          error
	Message       string
	Details       []string
	StockFailures []StockFailure
	Err           error
}

// NewError создаёт ошибку заданного вида.
func NewError(kind error, message string, details ...string) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// WithCause прикрепляет исходную ошибку.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Kind != nil:
		b.WriteString(e.Kind.Error())
	default:
		b.WriteString("saga error")
	}
	if len(e.Details) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Details, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap отдаёт вид и причину, чтобы errors.Is находил обе.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf возвращает вид ошибки из таксономии или nil, если ошибка к ней не относится.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var sagaErr *Error
	if errors.As(err, &sagaErr) && sagaErr.Kind != nil {
		return sagaErr.Kind
	}
	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
