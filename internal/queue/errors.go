package queue

import "errors"

var (
	ErrAlreadyQueued = errors.New("пользователь уже состоит в этой очереди")
	ErrQueueClosed   = errors.New("очередь закрыта")
	ErrNotInQueue    = errors.New("запись в очереди не найдена")
	ErrUnauthorized  = errors.New("операция доступна только администратору")
)
