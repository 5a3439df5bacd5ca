package entity

import "errors"

// Классы ошибок ядра симуляции. Конкретные ошибки оборачивают их через %w,
// вызывающий код классифицирует их через errors.Is.
var (
	// ErrNotFound - сущность с таким идентификатором не найдена
	ErrNotFound = errors.New("не найдено")

	// ErrInvalidParams - неверные параметры запроса
	ErrInvalidParams = errors.New("неверные параметры")

	// ErrPermissionDenied - действие не разрешено актору
	ErrPermissionDenied = errors.New("действие не разрешено")

	// ErrInvalidState - нарушен инвариант ядра (дефект)
	ErrInvalidState = errors.New("недопустимое состояние")

	// ErrBackendFailure - физический шаг не дал результата, тик останавливается
	ErrBackendFailure = errors.New("сбой физического движка")
)

// Коды результатов действий для транспортного слоя
const (
	CodeOK           = "ok"
	CodeNotFound     = "not_found"
	CodeInvalidParam = "invalid_params"
	CodeNotPermitted = "not_permitted"
	CodeInternal     = "internal"
)

// CodeFor возвращает код результата для ошибки
func CodeFor(err error) string {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidParams):
		return CodeInvalidParam
	case errors.Is(err, ErrPermissionDenied):
		return CodeNotPermitted
	default:
		return CodeInternal
	}
}
