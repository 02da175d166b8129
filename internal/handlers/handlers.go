package handlers

import (
	"labqueue/internal/queue"
	"labqueue/internal/registration"
	"labqueue/internal/settings"
	"labqueue/internal/tasks"
)

// Сервисы ядра, с которыми работают обработчики. Заполняются в main через Init.
var (
	Registrations *registration.Service
	Queues        *queue.Service
	SettingsSvc   *settings.Service
	Planner       *tasks.Planner
)

func Init(reg *registration.Service, q *queue.Service, st *settings.Service, p *tasks.Planner) {
	Registrations = reg
	Queues = q
	SettingsSvc = st
	Planner = p
}
