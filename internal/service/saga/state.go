package saga

// State — состояние саги создания заказа.
type State string

const (
	StateValidating         State = "validating"
	StatePricing            State = "pricing"
	StateReservingInventory State = "reserving_inventory"
	StateChargingPayment    State = "charging_payment"
	StatePersisting         State = "persisting"
	StateAuditingNotifying  State = "auditing_and_notifying"
	StateConfirmed          State = "confirmed"
	StateCompensating       State = "compensating"
	StateFailed             State = "failed"
)

// run хранит локальное состояние одной саги; между вызовами ничего не сохраняется.
type run struct {
	orderID string
	state   State
	history []State
}

func newRun(orderID string) *run {
	return &run{orderID: orderID}
}

func (r *run) enter(state State) {
	r.state = state
	r.history = append(r.history, state)
}
