package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"labqueue/internal/queue"
	"labqueue/internal/registration"
	"labqueue/internal/response"

	"github.com/gin-gonic/gin"
)

type DecideRequest struct {
	Approve *bool `json:"approve" binding:"required"`
}

// DecideRegistrationHandler — решение админа по заявке на регистрацию
// @Summary		Решение по заявке
// @Description	Одобряет или отклоняет заявку. Повторное решение по уже обработанной заявке — безобидный no-op (REQUEST_NOT_FOUND)
// @Tags			admin
// @Accept			json
// @Produce		json
// @Param			user_id	path		string			true	"ID пользователя"
// @Param			request	body		DecideRequest	true	"Решение"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Решение принято или заявка уже обработана"
// @Failure		400	{object}	response.ErrorResponse	"INVALID_USER_ID, VALIDATION_ERROR"
// @Failure		403	{object}	response.ErrorResponse	"UNAUTHORIZED"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/admin/registrations/{user_id}/decide [post]
func DecideRegistrationHandler(c *gin.Context) {
	targetID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_USER_ID",
			Message: "Неверный идентификатор пользователя",
		})
		return
	}

	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	adminID := c.GetInt64("userID")
	if err := Registrations.Decide(adminID, targetID, *req.Approve); err != nil {
		switch {
		case errors.Is(err, registration.ErrUnauthorized):
			c.JSON(http.StatusForbidden, response.ErrorResponse{
				Code:    "UNAUTHORIZED",
				Message: "Операция доступна только администратору",
			})
		case errors.Is(err, registration.ErrRequestNotFound):
			// Гонка двух админов: заявку уже обработали, это не ошибка.
			c.JSON(http.StatusOK, response.SuccessResponse{
				Message: "Заявка уже обработана",
			})
		default:
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    "DB_ERROR",
				Message: "Ошибка при обработке заявки",
				Details: err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Решение принято"})
}

// ToggleRegistrationHandler переключает доступность регистрации
// @Summary		Переключение регистрации
// @Tags			admin
// @Produce		json
// @Security		BearerAuth
// @Success		200	{object}	response.ToggleResponse	"Новое значение флага"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/admin/settings/registration/toggle [post]
func ToggleRegistrationHandler(c *gin.Context) {
	enabled, err := SettingsSvc.ToggleRegistration()
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при переключении регистрации",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, response.ToggleResponse{RegistrationEnabled: enabled})
}

// OpenQueueHandler вручную открывает очередь расписания (операция new_queue)
// @Summary		Открытие очереди
// @Tags			admin
// @Produce		json
// @Param			id	path		string	true	"ID расписания"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Очередь открыта"
// @Failure		400	{object}	response.ErrorResponse	"INVALID_SCHEDULE_ID"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/admin/schedules/{id}/open [post]
func OpenQueueHandler(c *gin.Context) {
	scheduleID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_SCHEDULE_ID",
			Message: "Неверный идентификатор расписания",
		})
		return
	}

	if _, err := Queues.Open(uint(scheduleID)); err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при открытии очереди",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Очередь открыта"})
}

// CloseQueueHandler вручную закрывает очередь расписания (операция reschedule)
// @Summary		Закрытие очереди
// @Tags			admin
// @Produce		json
// @Param			id	path		string	true	"ID расписания"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Очередь закрыта"
// @Failure		400	{object}	response.ErrorResponse	"INVALID_SCHEDULE_ID"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/admin/schedules/{id}/close [post]
func CloseQueueHandler(c *gin.Context) {
	scheduleID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_SCHEDULE_ID",
			Message: "Неверный идентификатор расписания",
		})
		return
	}

	if err := Queues.Close(uint(scheduleID)); err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при закрытии очереди",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Очередь закрыта"})
}

// RemoveUserHandler убирает пользователя из очереди по решению админа
// @Summary		Удаление пользователя из очереди
// @Tags			admin
// @Produce		json
// @Param			id		path		string	true	"ID расписания"
// @Param			user_id	path		string	true	"ID пользователя"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Пользователь убран из очереди"
// @Failure		400	{object}	response.ErrorResponse	"INVALID_SCHEDULE_ID, INVALID_USER_ID, NOT_IN_QUEUE"
// @Failure		403	{object}	response.ErrorResponse	"UNAUTHORIZED"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/admin/schedules/{id}/remove/{user_id} [post]
func RemoveUserHandler(c *gin.Context) {
	scheduleID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_SCHEDULE_ID",
			Message: "Неверный идентификатор расписания",
		})
		return
	}
	targetID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_USER_ID",
			Message: "Неверный идентификатор пользователя",
		})
		return
	}

	adminID := c.GetInt64("userID")
	if err := Queues.RemoveUser(adminID, uint(scheduleID), targetID); err != nil {
		switch {
		case errors.Is(err, queue.ErrUnauthorized):
			c.JSON(http.StatusForbidden, response.ErrorResponse{
				Code:    "UNAUTHORIZED",
				Message: "Операция доступна только администратору",
			})
		case errors.Is(err, queue.ErrNotInQueue):
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "NOT_IN_QUEUE",
				Message: "Запись в очереди не найдена",
			})
		default:
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    "DB_ERROR",
				Message: "Ошибка при удалении из очереди",
				Details: err.Error(),
			})
		}
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Пользователь убран из очереди"})
}

// RunDailyTasksHandler вручную запускает ежедневные задачи
// @Summary		Запуск ежедневных задач
// @Description	Открывает завтрашние очереди и архивирует вчерашние; повторный запуск безопасен
// @Tags			admin
// @Produce		json
// @Security		BearerAuth
// @Success		200	{object}	response.DailyTasksResponse	"Итог выполнения"
// @Router			/api/admin/tasks/daily [post]
func RunDailyTasksHandler(c *gin.Context) {
	now := time.Now()

	opened, err := Planner.RunDailyOpenTask(now)
	var failures []string
	if err != nil {
		failures = append(failures, err.Error())
	}

	archived, archiveFailures := Planner.RunDailyArchiveTask(now)
	for _, f := range archiveFailures {
		failures = append(failures, f.Error())
	}

	c.JSON(http.StatusOK, response.DailyTasksResponse{
		Opened:   opened,
		Archived: archived,
		Failures: failures,
	})
}
