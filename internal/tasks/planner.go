package tasks

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"labqueue/internal/models"
	"labqueue/internal/notify"
	"labqueue/internal/queue"
	"labqueue/internal/schedule"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Planner выполняет ежедневные задачи: открытие завтрашних очередей и
// архивацию вчерашних. Обе задачи — чистые функции от состояния базы и
// опорной даты, поэтому повторный запуск ничего не применяет дважды.
type Planner struct {
	db       *gorm.DB
	queues   *queue.Service
	notifier notify.Notifier
}

func NewPlanner(db *gorm.DB, queues *queue.Service, notifier notify.Notifier) *Planner {
	return &Planner{db: db, queues: queues, notifier: notifier}
}

// RunDailyOpenTask открывает очереди расписаний с завтрашней датой защиты и
// уведомляет всех зарегистрированных пользователей — по одному уведомлению на
// каждый реально открывшийся слот. Уже открытые слоты уведомлений не дают,
// поэтому повторный запуск в тот же день молчит.
func (p *Planner) RunDailyOpenTask(now time.Time) (int, error) {
	tomorrow := now.UTC().AddDate(0, 0, 1)

	schedules, err := schedule.ByDate(p.db, tomorrow)
	if err != nil {
		return 0, err
	}
	if len(schedules) == 0 {
		log.Println("Нет расписаний на завтра, открывать нечего.")
		return 0, nil
	}

	var opened []models.Schedule
	for _, sched := range schedules {
		changed, err := p.queues.Open(sched.ID)
		if err != nil {
			log.Printf("Ошибка открытия очереди для расписания %d: %v", sched.ID, err)
			continue
		}
		if changed {
			opened = append(opened, sched)
		}
	}

	if len(opened) == 0 {
		return 0, nil
	}

	var userIDs []int64
	if err := p.db.Model(&models.User{}).Pluck("telegram_id", &userIDs).Error; err != nil {
		log.Println("Не удалось загрузить список пользователей для рассылки:", err)
		return len(opened), nil
	}

	// Текст собирается из полей самого слота, по уведомлению на каждый
	// открывшийся слот.
	for _, sched := range opened {
		text := fmt.Sprintf("Открыта запись на защиту: %s, подгруппа %s, %s",
			sched.Subject, sched.Subgroup, sched.DefenseDate.Format("02.01.2006"))
		res := notify.Fanout(p.notifier, userIDs, text)
		log.Printf("Очередь %d открыта, уведомлено %d, сбоев %d", sched.ID, res.Delivered, res.Failed)
	}
	return len(opened), nil
}

var errQueueNotOpen = errors.New("очередь не открыта")

// RunDailyArchiveTask переносит в архив очереди расписаний с вчерашней датой.
// Каждое расписание мигрирует в своей транзакции: копирование записей в архив,
// их удаление и закрытие очереди либо происходят целиком, либо откатываются.
// Сбой одного расписания не останавливает архивацию остальных.
func (p *Planner) RunDailyArchiveTask(reference time.Time) (int, []error) {
	yesterday := reference.UTC().AddDate(0, 0, -1)

	schedules, err := schedule.ByDate(p.db, yesterday)
	if err != nil {
		return 0, []error{err}
	}

	archived := 0
	var failures []error
	for _, sched := range schedules {
		if err := p.archiveOne(sched.ID); err != nil {
			if errors.Is(err, errQueueNotOpen) {
				continue
			}
			log.Printf("Ошибка архивации расписания %d: %v", sched.ID, err)
			failures = append(failures, fmt.Errorf("расписание %d: %w", sched.ID, err))
			continue
		}
		archived++
	}

	if archived > 0 || len(failures) > 0 {
		log.Printf("Архивация завершена: успешно %d, сбоев %d", archived, len(failures))
	}
	return archived, failures
}

func (p *Planner) archiveOne(scheduleID uint) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		var aq models.ActiveQueue
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("schedule_id = ?", scheduleID).
			First(&aq).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errQueueNotOpen
		}
		if err != nil {
			return err
		}
		if !aq.IsOpen {
			return errQueueNotOpen
		}

		var entries []models.QueueEntry
		if err := tx.Where("schedule_id = ?", scheduleID).Find(&entries).Error; err != nil {
			return err
		}
		for _, e := range entries {
			archiveEntry := models.ArchiveEntry{
				ScheduleID: e.ScheduleID,
				UserID:     e.UserID,
				LabNumber:  e.LabNumber,
				Position:   e.Position,
			}
			if err := tx.Create(&archiveEntry).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("schedule_id = ?", scheduleID).Delete(&models.QueueEntry{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.ActiveQueue{}).
			Where("schedule_id = ?", scheduleID).
			Update("is_open", false).Error
	})
}

// InitScheduler запускает cron с единственным ежедневным срабатыванием.
// Задачи идут последовательно, но сбой открытия не мешает архивации.
func InitScheduler(p *Planner) *cron.Cron {
	c := cron.New(cron.WithSeconds())

	spec := os.Getenv("DAILY_CRON_SPEC")
	if spec == "" {
		spec = "0 0 0 * * *"
	}

	_, err := c.AddFunc(spec, func() {
		now := time.Now()
		if _, err := p.RunDailyOpenTask(now); err != nil {
			log.Println("Ошибка задачи открытия очередей:", err)
		}
		if _, failures := p.RunDailyArchiveTask(now); len(failures) > 0 {
			log.Printf("Задача архивации завершилась с %d сбоями", len(failures))
		}
	})
	if err != nil {
		log.Println("Ошибка запуска ежедневной cron-задачи:", err)
	}

	c.Start()
	log.Println("Cron-планировщик запущен.")
	return c
}
