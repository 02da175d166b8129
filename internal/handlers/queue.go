package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"labqueue/internal/queue"
	"labqueue/internal/response"

	"github.com/gin-gonic/gin"
)

type JoinRequest struct {
	LabNumber int `json:"lab_number" binding:"required,min=1"`
}

// JoinQueueHandler обрабатывает запрос на вступление в очередь
// @Summary		Вступление в очередь
// @Description	Добавляет пользователя в открытую очередь расписания и возвращает позицию
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			id		path		string		true	"ID расписания"
// @Param			request	body		JoinRequest	true	"Номер лабораторной"
// @Security		BearerAuth
// @Success		200	{object}	response.JoinResponse	"Успешное вступление в очередь"
// @Failure		400	{object}	response.ErrorResponse	"INVALID_SCHEDULE_ID, ALREADY_IN_QUEUE, QUEUE_INACTIVE, VALIDATION_ERROR"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/schedules/{id}/join [post]
func JoinQueueHandler(c *gin.Context) {
	scheduleID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_SCHEDULE_ID",
			Message: "Неверный идентификатор расписания",
		})
		return
	}

	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	userID := c.GetInt64("userID")
	position, err := Queues.Join(uint(scheduleID), userID, req.LabNumber)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrAlreadyQueued):
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "ALREADY_IN_QUEUE",
				Message: "Пользователь уже состоит в этой очереди",
			})
		case errors.Is(err, queue.ErrQueueClosed):
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "QUEUE_INACTIVE",
				Message: "Очередь не активна",
			})
		default:
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    "DB_ERROR",
				Message: "Ошибка добавления в очередь",
				Details: err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, response.JoinResponse{
		Message:  "Вступление в очередь прошло успешно",
		Position: position,
	})
}

// LeaveQueueHandler обрабатывает запрос на выход из очереди
// @Summary		Выход из очереди
// @Description	Удаляет запись пользователя; позиции остальных не меняются
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID расписания"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Успешный выход из очереди"
// @Failure		400	{object}	response.ErrorResponse	"INVALID_SCHEDULE_ID, NOT_IN_QUEUE"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/schedules/{id}/leave [post]
func LeaveQueueHandler(c *gin.Context) {
	scheduleID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_SCHEDULE_ID",
			Message: "Неверный идентификатор расписания",
		})
		return
	}

	userID := c.GetInt64("userID")
	if err := Queues.Leave(uint(scheduleID), userID); err != nil {
		if errors.Is(err, queue.ErrNotInQueue) {
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "NOT_IN_QUEUE",
				Message: "Запись в очереди не найдена",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при выходе из очереди",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Вы успешно вышли из очереди"})
}

// QueueStatusResponse содержит состояние очереди и список участников.
type QueueStatusResponse struct {
	ScheduleID   uint          `json:"schedule_id"`
	IsOpen       bool          `json:"is_open"`
	Participants []queue.Entry `json:"participants"`
}

// GetQueueHandler возвращает очередь расписания
// @Summary		Получение очереди
// @Description	Возвращает участников по возрастанию позиций; доступно и для закрытых очередей
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID расписания"
// @Success		200	{object}	QueueStatusResponse	"Состояние очереди"
// @Failure		400	{object}	response.ErrorResponse	"INVALID_SCHEDULE_ID"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/schedules/{id}/queue [get]
func GetQueueHandler(c *gin.Context) {
	scheduleID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_SCHEDULE_ID",
			Message: "Неверный идентификатор расписания",
		})
		return
	}

	isOpen, err := Queues.IsOpen(uint(scheduleID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки состояния очереди",
			Details: err.Error(),
		})
		return
	}

	participants, err := Queues.List(uint(scheduleID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки записей очереди",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, QueueStatusResponse{
		ScheduleID:   uint(scheduleID),
		IsOpen:       isOpen,
		Participants: participants,
	})
}
