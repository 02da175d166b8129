package queue

import (
	"errors"

	"labqueue/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service отвечает за записи в очередях и за состояние открыта/закрыта.
// Все операции, меняющие очередь одного расписания, сериализуются блокировкой
// строки active_queues этого расписания; очереди разных расписаний друг другу
// не мешают.
type Service struct {
	db      *gorm.DB
	isAdmin func(int64) bool
}

func NewService(db *gorm.DB, isAdmin func(int64) bool) *Service {
	return &Service{db: db, isAdmin: isAdmin}
}

// Join добавляет пользователя в открытую очередь и возвращает выданную позицию.
// Позиция — MAX(position)+1 того же расписания, вычисляется и вставляется в одной
// транзакции под блокировкой, чтобы параллельные вступления не получили дубликат.
func (s *Service) Join(scheduleID uint, userID int64, labNumber int) (int, error) {
	var position int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var aq models.ActiveQueue
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("schedule_id = ?", scheduleID).
			First(&aq).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQueueClosed
			}
			return err
		}
		if !aq.IsOpen {
			return ErrQueueClosed
		}

		var existing models.QueueEntry
		err := tx.Where("schedule_id = ? AND user_id = ?", scheduleID, userID).
			First(&existing).Error
		if err == nil {
			return ErrAlreadyQueued
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var maxPosition int
		row := tx.Model(&models.QueueEntry{}).
			Where("schedule_id = ?", scheduleID).
			Select("COALESCE(MAX(position),0)").Row()
		if err := row.Scan(&maxPosition); err != nil {
			return err
		}
		position = maxPosition + 1

		entry := models.QueueEntry{
			ScheduleID: scheduleID,
			UserID:     userID,
			LabNumber:  labNumber,
			Position:   position,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return 0, err
	}
	return position, nil
}

// Leave убирает запись пользователя. Позиции остальных не пересчитываются:
// позиция — идентификатор, а не плотный ранг, дыры в нумерации ожидаемы.
func (s *Service) Leave(scheduleID uint, userID int64) error {
	res := s.db.Where("schedule_id = ? AND user_id = ?", scheduleID, userID).
		Delete(&models.QueueEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotInQueue
	}
	return nil
}

// RemoveUser — то же, что Leave, но от имени администратора.
func (s *Service) RemoveUser(adminID int64, scheduleID uint, userID int64) error {
	if !s.isAdmin(adminID) {
		return ErrUnauthorized
	}
	return s.Leave(scheduleID, userID)
}

// Entry — строка очереди для показа пользователю.
type Entry struct {
	Position  int    `json:"position"`
	UserID    int64  `json:"user_id"`
	FullName  string `json:"full_name"`
	LabNumber int    `json:"lab_number"`
}

// List возвращает очередь по возрастанию позиций. Работает и для закрытых
// расписаний, чтобы можно было посмотреть итоговый список.
func (s *Service) List(scheduleID uint) ([]Entry, error) {
	entries := make([]Entry, 0)
	err := s.db.Table("queue_entries").
		Select("queue_entries.position, queue_entries.user_id, users.full_name, queue_entries.lab_number").
		Joins("JOIN users ON users.telegram_id = queue_entries.user_id").
		Where("queue_entries.schedule_id = ?", scheduleID).
		Order("queue_entries.position ASC").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Open открывает очередь расписания. Идемпотентна; changed=true только при
// реальном переходе закрыта -> открыта, чтобы не рассылать повторные уведомления.
func (s *Service) Open(scheduleID uint) (bool, error) {
	changed := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var aq models.ActiveQueue
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("schedule_id = ?", scheduleID).
			First(&aq).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			changed = true
			return tx.Create(&models.ActiveQueue{ScheduleID: scheduleID, IsOpen: true}).Error
		}
		if err != nil {
			return err
		}
		if aq.IsOpen {
			return nil
		}
		changed = true
		return tx.Model(&models.ActiveQueue{}).
			Where("schedule_id = ?", scheduleID).
			Update("is_open", true).Error
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// Close закрывает очередь расписания. Идемпотентна.
func (s *Service) Close(scheduleID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var aq models.ActiveQueue
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("schedule_id = ?", scheduleID).
			First(&aq).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.ActiveQueue{ScheduleID: scheduleID, IsOpen: false}).Error
		}
		if err != nil {
			return err
		}
		if !aq.IsOpen {
			return nil
		}
		return tx.Model(&models.ActiveQueue{}).
			Where("schedule_id = ?", scheduleID).
			Update("is_open", false).Error
	})
}

// IsOpen сообщает, открыта ли очередь. Отсутствие строки — закрыта.
func (s *Service) IsOpen(scheduleID uint) (bool, error) {
	var aq models.ActiveQueue
	err := s.db.Where("schedule_id = ?", scheduleID).First(&aq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return aq.IsOpen, nil
}
