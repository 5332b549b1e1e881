package domain

import "errors"

var (
	// ErrProductNotFound возвращается, если товара нет в меню.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductIDRequired у товара нет идентификатора.
	ErrProductIDRequired = errors.New("product id is required")
	// ErrProductNameRequired у товара нет названия.
	ErrProductNameRequired = errors.New("product name is required")
	// ErrProductPriceInvalid отрицательная цена товара.
	ErrProductPriceInvalid = errors.New("product price must be non-negative")
	// ErrProductDuplicate в меню два товара с одним id.
	ErrProductDuplicate = errors.New("duplicate product id in menu")
	// ErrLineQtyInvalid количество в позиции корзины меньше единицы.
	ErrLineQtyInvalid = errors.New("line quantity must be at least 1")
	// ErrLineQtyTooLarge количество в позиции превысило бы MaxLineQuantity.
	ErrLineQtyTooLarge = errors.New("line quantity exceeds the per-item limit")
	// ErrDuplicateLine в корзине две позиции с одним product id.
	ErrDuplicateLine = errors.New("cart contains duplicate product lines")

	// ErrSessionRequired не передан идентификатор сессии.
	ErrSessionRequired = errors.New("session id is required")

	// ErrCartEmpty оформление заказа невозможно с пустой корзиной.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrAddressRequired не заполнен адрес доставки.
	ErrAddressRequired = errors.New("delivery address is required")
	// ErrPhoneRequired не заполнен телефон.
	ErrPhoneRequired = errors.New("phone is required")
	// ErrPaymentMethodInvalid способ оплаты не из списка поддерживаемых.
	ErrPaymentMethodInvalid = errors.New("payment method is not supported")
	// ErrCardDetailsNotAccepted данные карты передаются только для online_card.
	ErrCardDetailsNotAccepted = errors.New("card details are accepted only for online card payment")
	// ErrSubmitInFlight отправка заказа уже выполняется.
	ErrSubmitInFlight = errors.New("checkout submission already in flight")
	// ErrCheckoutCompleted заказ уже оформлен, workflow завершён.
	ErrCheckoutCompleted = errors.New("checkout already completed")
	// ErrCheckoutNotFound checkout workflow не найден.
	ErrCheckoutNotFound = errors.New("checkout not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyExists заказ с таким ID уже сохранён.
	ErrOrderAlreadyExists = errors.New("order already exists")

	// ErrPaymentDeclined платёж отклонён провайдером (бизнес-ошибка).
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrPaymentIndeterminate неопределённый статус платежа; требуется reconcile.
	ErrPaymentIndeterminate = errors.New("payment indeterminate state")
	// ErrPaymentTemporary временная ошибка платёжного провайдера, можно повторить попытку.
	ErrPaymentTemporary = errors.New("payment temporary error")

	// ErrTimeSlotRequired нельзя перейти дальше без выбранного времени.
	ErrTimeSlotRequired = errors.New("time slot is required")
	// ErrTimeSlotUnknown время не входит в список доступных слотов.
	ErrTimeSlotUnknown = errors.New("time slot is not available")
	// ErrPartySizeOutOfRange число гостей вне диапазона 1..10.
	ErrPartySizeOutOfRange = errors.New("party size must be between 1 and 10")
	// ErrDateInPast дата бронирования раньше сегодняшней.
	ErrDateInPast = errors.New("reservation date must not be in the past")
	// ErrContactIncomplete не заполнены имя, email или телефон.
	ErrContactIncomplete = errors.New("contact name, email and phone are required")
	// ErrTransitionNotAllowed переход недопустим из текущего шага.
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	// ErrStepMismatch поле нельзя менять на текущем шаге.
	ErrStepMismatch = errors.New("field is not editable at current step")
	// ErrReservationFrozen подтверждённая бронь не изменяется.
	ErrReservationFrozen = errors.New("reservation is confirmed and immutable")
	// ErrReservationNotFound бронь не найдена.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrOutboxPublish ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrTimelineWorkflowRequired событие timeline без workflow id.
	ErrTimelineWorkflowRequired = errors.New("timeline event requires workflow id")

	// ErrIdempotencyKeyRequired пустой idempotency key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired пустой hash запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists ключ уже использован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch ключ использован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound ключ не найден.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// IsGuardFailure сообщает, является ли ошибка невыполненным условием перехода
// (заблокированное действие), а не сбоем.
func IsGuardFailure(err error) bool {
	switch {
	case errors.Is(err, ErrCartEmpty),
		errors.Is(err, ErrAddressRequired),
		errors.Is(err, ErrPhoneRequired),
		errors.Is(err, ErrTimeSlotRequired),
		errors.Is(err, ErrContactIncomplete):
		return true
	default:
		return false
	}
}

// IsTemporaryPaymentError проверяет, можно ли повторить вызов платёжного провайдера.
func IsTemporaryPaymentError(err error) bool {
	return errors.Is(err, ErrPaymentTemporary)
}
