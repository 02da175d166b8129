package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"labqueue/internal/response"
	"labqueue/internal/schedule"
	"labqueue/internal/storage"

	"github.com/gin-gonic/gin"
)

type ScheduleItem struct {
	ID          uint   `json:"id"`
	Subject     string `json:"subject"`
	Subgroup    string `json:"subgroup"`
	DefenseDate string `json:"defense_date"`
}

type ScheduleListResponse struct {
	Items []ScheduleItem `json:"items"`
	Total int            `json:"total"`
}

var scheduleCtx = context.Background()

// GetSchedulesHandler возвращает каталог расписаний
// @Summary		Получение каталога расписаний
// @Description	Возвращает все слоты защит, кэширует результат в Redis
// @Tags			schedule
// @Accept			json
// @Produce		json
// @Success		200	{object}	ScheduleListResponse	"Каталог расписаний"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/schedules [get]
func GetSchedulesHandler(c *gin.Context) {
	cacheKey := "schedules_all"
	redisClient := storage.RedisClient

	// Проверка кэша. Недоступный Redis не мешает ответу из базы.
	if redisClient != nil {
		cached, err := redisClient.Get(scheduleCtx, cacheKey).Result()
		if err == nil && cached != "" {
			var resp ScheduleListResponse
			if err := json.Unmarshal([]byte(cached), &resp); err == nil {
				c.JSON(http.StatusOK, resp)
				return
			}
		}
	}

	schedules, err := schedule.ListAll(storage.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки каталога расписаний",
			Details: err.Error(),
		})
		return
	}

	items := make([]ScheduleItem, 0, len(schedules))
	for _, s := range schedules {
		items = append(items, ScheduleItem{
			ID:          s.ID,
			Subject:     s.Subject,
			Subgroup:    s.Subgroup,
			DefenseDate: s.DefenseDate.Format("2006-01-02"),
		})
	}
	resp := ScheduleListResponse{Items: items, Total: len(items)}

	// Кэширование результата на 6 часов. Каталог статичен после сидинга.
	if redisClient != nil {
		if body, err := json.Marshal(resp); err == nil {
			redisClient.Set(scheduleCtx, cacheKey, string(body), time.Hour*6)
		}
	}

	c.JSON(http.StatusOK, resp)
}
