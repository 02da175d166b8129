package models

import (
	"time"

	"gorm.io/gorm"
)

// User — зарегистрированный студент или админ. Создаётся только после
// одобрения заявки администратором.
type User struct {
	TelegramID   int64  `gorm:"primaryKey"` // ID пользователя в Telegram
	FullName     string `gorm:"not null"`
	PasswordHash string `gorm:"not null"`
	IsAdmin      bool   `gorm:"default:false"`
	CreatedAt    time.Time
}

// Schedule — слот сдачи: предмет + подгруппа + дата защиты.
type Schedule struct {
	gorm.Model
	Subject     string    `gorm:"uniqueIndex:idx_schedule_slot;not null"`
	Subgroup    string    `gorm:"uniqueIndex:idx_schedule_slot;not null"`
	DefenseDate time.Time `gorm:"uniqueIndex:idx_schedule_slot;index;not null"` // дата без времени, UTC
}

// ActiveQueue — состояние очереди расписания. Отсутствие строки означает,
// что очередь ни разу не открывалась (считается закрытой).
type ActiveQueue struct {
	ScheduleID uint `gorm:"primaryKey"`
	IsOpen     bool `gorm:"default:false"`
}

// QueueEntry — запись в активной очереди. Позиция выдаётся один раз и не
// переиспользуется, поэтому удаление записи жёсткое, без soft delete.
type QueueEntry struct {
	ID         uint      `gorm:"primaryKey"`
	ScheduleID uint      `gorm:"uniqueIndex:idx_queue_entry_slot;not null"`
	UserID     int64     `gorm:"uniqueIndex:idx_queue_entry_slot;not null"`
	LabNumber  int       `gorm:"not null"`
	Position   int       `gorm:"index;not null"`
	JoinedAt   time.Time `gorm:"autoCreateTime"`
}

// ArchiveEntry — исторический снимок записи очереди на момент архивации.
// Колонки без внешних ключей: архив переживает удаление пользователей и расписаний.
type ArchiveEntry struct {
	ID         uint      `gorm:"primaryKey"`
	ScheduleID uint      `gorm:"index;not null"`
	UserID     int64     `gorm:"not null"`
	LabNumber  int       `gorm:"not null"`
	Position   int       `gorm:"not null"`
	ArchivedAt time.Time `gorm:"autoCreateTime"`
}

// Settings — единственная строка с настройками бота.
type Settings struct {
	ID                  uint `gorm:"primaryKey"`
	RegistrationEnabled bool `gorm:"default:true"`
}
