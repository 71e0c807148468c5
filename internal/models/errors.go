package models

import "errors"

var (
	// ErrInvalidStatus - запрошен переход в статус, отличный от verified/rejected
	ErrInvalidStatus = errors.New("invalid target status")
	// ErrNotFound - инцидент с таким id не существует
	ErrNotFound = errors.New("incident not found")
	// ErrAlreadyFinalized - инцидент уже проверен или отклонен; защищает от повторной диспетчеризации
	ErrAlreadyFinalized = errors.New("incident already finalized")
	// ErrLocatorUnavailable - пространственный индекс недоступен
	ErrLocatorUnavailable = errors.New("responder locator unavailable")
	// ErrChannelDelivery - доставка одному адресату не удалась
	ErrChannelDelivery = errors.New("channel delivery failed")
	// ErrPermanentDelivery - провайдер отклонил сообщение, повтор не поможет
	ErrPermanentDelivery = errors.New("permanent delivery error")
	// ErrOrchestrationTimeout - диспетчеризация превысила мягкий дедлайн
	ErrOrchestrationTimeout = errors.New("dispatch orchestration timed out")
)
