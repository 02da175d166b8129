package registration

import "errors"

var (
	ErrAlreadyRegistered  = errors.New("пользователь уже зарегистрирован")
	ErrRegistrationClosed = errors.New("регистрация отключена администратором")
	ErrRequestPending     = errors.New("заявка уже ожидает решения администратора")
	ErrNoBegin            = errors.New("регистрация не начата")
	ErrUnauthorized       = errors.New("операция доступна только администратору")
	// ErrRequestNotFound — безобидный сигнал "заявка уже обработана": при гонке
	// двух админов второй decide получает его и ничего не делает.
	ErrRequestNotFound = errors.New("заявка не найдена")
)
