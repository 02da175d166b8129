package response

// SuccessResponse представляет успешный ответ API
type SuccessResponse struct {
	Message string `json:"message" example:"Операция успешно выполнена"`
}

// ErrorResponse представляет ответ с ошибкой API
type ErrorResponse struct {
	// Код ошибки для программной обработки
	// example: VALIDATION_ERROR
	Code string `json:"code"`

	// Человекочитаемое сообщение об ошибке
	// example: Ошибка валидации данных
	Message string `json:"message"`

	// Дополнительные детали об ошибке (опционально)
	Details string `json:"details,omitempty"`
}

// TokenResponse представляет ответ с токенами авторизации
type TokenResponse struct {
	// JWT токен для доступа к защищенным эндпоинтам
	AccessToken string `json:"access_token"`

	// JWT токен для обновления access токена
	RefreshToken string `json:"refresh_token"`
}

// JoinResponse — ответ на вступление в очередь с выданной позицией.
type JoinResponse struct {
	Message  string `json:"message" example:"Вступление в очередь прошло успешно"`
	Position int    `json:"position" example:"1"`
}

// ToggleResponse — ответ на переключение флага регистрации.
type ToggleResponse struct {
	RegistrationEnabled bool `json:"registration_enabled"`
}

// DailyTasksResponse — итог ручного запуска ежедневных задач.
type DailyTasksResponse struct {
	Opened   int      `json:"opened"`
	Archived int      `json:"archived"`
	Failures []string `json:"failures,omitempty"`
}
