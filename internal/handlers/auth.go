package handlers

import (
	"errors"
	"net/http"
	"time"

	"labqueue/internal/auth"
	"labqueue/internal/models"
	"labqueue/internal/registration"
	"labqueue/internal/response"
	"labqueue/internal/storage"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type RegisterBeginRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

type RegisterNameRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
}

type RegisterCancelRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

type LoginRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterBegin начинает регистрацию пользователя
// @Summary		Начало регистрации
// @Description	Проверяет возможность регистрации и переводит пользователя к вводу ФИО
// @Tags			auth
// @Accept			json
// @Produce		json
// @Param			request	body		RegisterBeginRequest		true	"ID пользователя и пароль"
// @Success		200		{object}	response.SuccessResponse	"Ожидается ввод ФИО"
// @Failure		400		{object}	response.ErrorResponse		"ALREADY_REGISTERED, REQUEST_PENDING, REGISTRATION_CLOSED, VALIDATION_ERROR"
// @Failure		500		{object}	response.ErrorResponse		"Ошибка сервера (DB_ERROR, PASSWORD_HASH_ERROR)"
// @Router			/auth/register [post]
func RegisterBegin(c *gin.Context) {
	var req RegisterBeginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "PASSWORD_HASH_ERROR",
			Message: "Ошибка при хешировании пароля",
		})
		return
	}

	if err := Registrations.Begin(req.UserID, string(hash)); err != nil {
		switch {
		case errors.Is(err, registration.ErrAlreadyRegistered):
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "ALREADY_REGISTERED",
				Message: "Пользователь уже зарегистрирован",
			})
		case errors.Is(err, registration.ErrRequestPending):
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "REQUEST_PENDING",
				Message: "Заявка уже ожидает решения администратора",
			})
		case errors.Is(err, registration.ErrRegistrationClosed):
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "REGISTRATION_CLOSED",
				Message: "Регистрация временно отключена",
			})
		default:
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    "DB_ERROR",
				Message: "Ошибка при проверке регистрации",
				Details: err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Введите ваше ФИО"})
}

// RegisterName принимает ФИО и отправляет заявку админам
// @Summary		Отправка ФИО
// @Description	Сохраняет заявку и уведомляет администраторов
// @Tags			auth
// @Accept			json
// @Produce		json
// @Param			request	body		RegisterNameRequest			true	"ID пользователя и ФИО"
// @Success		200		{object}	response.SuccessResponse	"Заявка отправлена"
// @Failure		400		{object}	response.ErrorResponse		"NO_BEGIN, VALIDATION_ERROR"
// @Router			/auth/register/name [post]
func RegisterName(c *gin.Context) {
	var req RegisterNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	if err := Registrations.SubmitName(req.UserID, req.FullName); err != nil {
		if errors.Is(err, registration.ErrNoBegin) {
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "NO_BEGIN",
				Message: "Сначала начните регистрацию",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при сохранении заявки",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Заявка отправлена администраторам"})
}

// RegisterCancel отменяет незавершённую регистрацию
// @Summary		Отмена регистрации
// @Tags			auth
// @Accept			json
// @Produce		json
// @Param			request	body		RegisterCancelRequest		true	"ID пользователя"
// @Success		200		{object}	response.SuccessResponse	"Регистрация отменена"
// @Failure		400		{object}	response.ErrorResponse		"VALIDATION_ERROR"
// @Router			/auth/register/cancel [post]
func RegisterCancel(c *gin.Context) {
	var req RegisterCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	Registrations.Cancel(req.UserID)
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Регистрация отменена"})
}

// Login выдаёт токены зарегистрированному пользователю
// @Summary		Авторизация пользователя
// @Tags			auth
// @Accept			json
// @Produce		json
// @Param			request	body		LoginRequest			true	"Данные для авторизации"
// @Success		200		{object}	response.TokenResponse	"Успешная авторизация"
// @Failure		400		{object}	response.ErrorResponse	"VALIDATION_ERROR"
// @Failure		401		{object}	response.ErrorResponse	"INVALID_CREDENTIALS"
// @Failure		500		{object}	response.ErrorResponse	"TOKEN_GENERATION_ERROR"
// @Router			/auth/login [post]
func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	var user models.User
	if err := storage.DB.First(&user, "telegram_id = ?", req.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{
			Code:    "INVALID_CREDENTIALS",
			Message: "Неверный ID или пароль",
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{
			Code:    "INVALID_CREDENTIALS",
			Message: "Неверный ID или пароль",
		})
		return
	}

	accessToken, err := auth.GenerateToken(user.TelegramID, user.IsAdmin, time.Minute*15, auth.AccessSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "TOKEN_GENERATION_ERROR",
			Message: "Ошибка при генерации access токена",
		})
		return
	}

	refreshToken, err := auth.GenerateToken(user.TelegramID, user.IsAdmin, time.Hour*24*7, auth.RefreshSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "TOKEN_GENERATION_ERROR",
			Message: "Ошибка при генерации refresh токена",
		})
		return
	}

	c.JSON(http.StatusOK, response.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshToken обновляет пару токенов
// @Summary		Обновление access токена
// @Tags			auth
// @Accept			json
// @Produce		json
// @Param			refresh_token	body		RefreshTokenRequest		true	"Refresh токен"
// @Success		200				{object}	response.TokenResponse	"Успешное обновление"
// @Failure		400				{object}	response.ErrorResponse	"VALIDATION_ERROR"
// @Failure		401				{object}	response.ErrorResponse	"INVALID_REFRESH_TOKEN, USER_NOT_FOUND"
// @Failure		500				{object}	response.ErrorResponse	"TOKEN_GENERATION_ERROR"
// @Router			/auth/refresh [post]
func RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	userID, _, err := auth.ParseToken(req.RefreshToken, auth.RefreshSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{
			Code:    "INVALID_REFRESH_TOKEN",
			Message: "Неверный или просроченный refresh токен",
		})
		return
	}

	// Признак админа перечитываем из базы, а не из старого токена.
	var user models.User
	if err := storage.DB.First(&user, "telegram_id = ?", userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{
			Code:    "USER_NOT_FOUND",
			Message: "Пользователь не найден",
		})
		return
	}

	newAccessToken, err := auth.GenerateToken(user.TelegramID, user.IsAdmin, time.Minute*15, auth.AccessSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "TOKEN_GENERATION_ERROR",
			Message: "Ошибка при генерации access токена",
		})
		return
	}

	newRefreshToken, err := auth.GenerateToken(user.TelegramID, user.IsAdmin, time.Hour*24*7, auth.RefreshSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "TOKEN_GENERATION_ERROR",
			Message: "Ошибка при генерации нового refresh токена",
		})
		return
	}

	c.JSON(http.StatusOK, response.TokenResponse{
		AccessToken:  newAccessToken,
		RefreshToken: newRefreshToken,
	})
}
