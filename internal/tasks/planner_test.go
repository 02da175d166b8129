package tasks

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"labqueue/internal/models"
	"labqueue/internal/queue"
	"labqueue/internal/storage"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[int64][]string
	fail map[int64]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(map[int64][]string), fail: make(map[int64]bool)}
}

func (f *fakeNotifier) Notify(userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[userID] {
		return errors.New("доставка не удалась")
	}
	f.sent[userID] = append(f.sent[userID], text)
	return nil
}

func (f *fakeNotifier) count(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent[userID])
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	if os.Getenv("TEST_DB_HOST") == "" {
		_ = godotenv.Load("../../.env")
	}
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("TEST_DB_HOST не задан, пропускаем интеграционный тест")
	}
	storage.ConnectTestingDatabase()
	db := storage.DB
	if err := db.AutoMigrate(&models.User{}, &models.Schedule{}, &models.ActiveQueue{},
		&models.QueueEntry{}, &models.ArchiveEntry{}, &models.Settings{}); err != nil {
		t.Fatal("Ошибка при миграции:", err)
	}
	db.Exec("TRUNCATE TABLE users, schedules, active_queues, queue_entries, archive_entries, settings RESTART IDENTITY CASCADE;")
	return db
}

func newTestPlanner(t *testing.T, db *gorm.DB) (*Planner, *queue.Service, *fakeNotifier) {
	t.Helper()
	notifier := newFakeNotifier()
	queues := queue.NewService(db, func(int64) bool { return true })
	return NewPlanner(db, queues, notifier), queues, notifier
}

func createSchedule(t *testing.T, db *gorm.DB, subject, subgroup string, date time.Time) models.Schedule {
	t.Helper()
	sched := models.Schedule{Subject: subject, Subgroup: subgroup, DefenseDate: date}
	assert.NoError(t, db.Create(&sched).Error)
	return sched
}

func createUser(t *testing.T, db *gorm.DB, id int64, name string) {
	t.Helper()
	assert.NoError(t, db.Create(&models.User{TelegramID: id, FullName: name, PasswordHash: "hashed"}).Error)
}

var now = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

func TestDailyOpenTask(t *testing.T) {
	db := testDB(t)
	planner, queues, notifier := newTestPlanner(t, db)

	tomorrow := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	s1 := createSchedule(t, db, "Операционные системы", "1", tomorrow)
	s2 := createSchedule(t, db, "Базы данных", "2", tomorrow)
	createSchedule(t, db, "Сети", "1", tomorrow.AddDate(0, 0, 5)) // не завтра, не открывается
	createUser(t, db, 100, "Иван Иванов")
	createUser(t, db, 200, "Петр Петров")

	opened, err := planner.RunDailyOpenTask(now)
	assert.NoError(t, err)
	assert.Equal(t, 2, opened)

	for _, sched := range []models.Schedule{s1, s2} {
		open, err := queues.IsOpen(sched.ID)
		assert.NoError(t, err)
		assert.True(t, open)
	}

	// По одному уведомлению на каждый открывшийся слот каждому пользователю.
	assert.Equal(t, 2, notifier.count(100))
	assert.Equal(t, 2, notifier.count(200))

	// Повторный запуск в тот же день: слоты уже открыты, рассылки нет.
	opened, err = planner.RunDailyOpenTask(now)
	assert.NoError(t, err)
	assert.Equal(t, 0, opened)
	assert.Equal(t, 2, notifier.count(100))
}

func TestDailyOpenTaskNotificationPerSchedule(t *testing.T) {
	db := testDB(t)
	planner, _, notifier := newTestPlanner(t, db)

	tomorrow := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	createSchedule(t, db, "Операционные системы", "1", tomorrow)
	createSchedule(t, db, "Базы данных", "2", tomorrow)
	createUser(t, db, 100, "Иван Иванов")

	_, err := planner.RunDailyOpenTask(now)
	assert.NoError(t, err)

	notifier.mu.Lock()
	texts := notifier.sent[100]
	notifier.mu.Unlock()
	assert.Len(t, texts, 2)
	// Тексты собираются из полей каждого слота, а не последнего в пачке.
	joined := texts[0] + "\n" + texts[1]
	assert.Contains(t, joined, "Операционные системы")
	assert.Contains(t, joined, "Базы данных")
}

func TestDailyOpenTaskDeliveryFailureDoesNotAbort(t *testing.T) {
	db := testDB(t)
	planner, _, notifier := newTestPlanner(t, db)
	notifier.fail[100] = true

	tomorrow := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	createSchedule(t, db, "Операционные системы", "1", tomorrow)
	createUser(t, db, 100, "Иван Иванов")
	createUser(t, db, 200, "Петр Петров")

	opened, err := planner.RunDailyOpenTask(now)
	assert.NoError(t, err)
	assert.Equal(t, 1, opened)
	assert.Equal(t, 0, notifier.count(100))
	assert.Equal(t, 1, notifier.count(200), "Сбой доставки одному получателю не прерывает рассылку")
}

func TestDailyArchiveTask(t *testing.T) {
	db := testDB(t)
	planner, queues, _ := newTestPlanner(t, db)

	yesterday := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	sched := createSchedule(t, db, "Операционные системы", "1", yesterday)
	other := createSchedule(t, db, "Базы данных", "2", yesterday.AddDate(0, 0, 3))

	for _, s := range []models.Schedule{sched, other} {
		_, err := queues.Open(s.ID)
		assert.NoError(t, err)
	}
	for i, userID := range []int64{100, 200} {
		entry := models.QueueEntry{ScheduleID: sched.ID, UserID: userID, LabNumber: i + 1, Position: i + 1}
		assert.NoError(t, db.Create(&entry).Error)
	}

	archived, failures := planner.RunDailyArchiveTask(now)
	assert.Empty(t, failures)
	assert.Equal(t, 1, archived)

	// Все записи перенесены в архив, активная очередь пуста и закрыта.
	var entryCount, archiveCount int64
	assert.NoError(t, db.Model(&models.QueueEntry{}).Where("schedule_id = ?", sched.ID).Count(&entryCount).Error)
	assert.NoError(t, db.Model(&models.ArchiveEntry{}).Where("schedule_id = ?", sched.ID).Count(&archiveCount).Error)
	assert.Equal(t, int64(0), entryCount)
	assert.Equal(t, int64(2), archiveCount)

	var archiveEntries []models.ArchiveEntry
	assert.NoError(t, db.Where("schedule_id = ?", sched.ID).Order("position ASC").Find(&archiveEntries).Error)
	assert.Equal(t, 1, archiveEntries[0].Position)
	assert.Equal(t, int64(100), archiveEntries[0].UserID)
	assert.False(t, archiveEntries[0].ArchivedAt.IsZero())

	open, err := queues.IsOpen(sched.ID)
	assert.NoError(t, err)
	assert.False(t, open)

	// Чужое расписание не тронуто.
	open, err = queues.IsOpen(other.ID)
	assert.NoError(t, err)
	assert.True(t, open)

	// Повторный запуск: открытых расписаний на эту дату нет, задача молчит.
	archived, failures = planner.RunDailyArchiveTask(now)
	assert.Empty(t, failures)
	assert.Equal(t, 0, archived)
	assert.NoError(t, db.Model(&models.ArchiveEntry{}).Where("schedule_id = ?", sched.ID).Count(&archiveCount).Error)
	assert.Equal(t, int64(2), archiveCount)
}

func TestDailyArchiveTaskFailureIsolation(t *testing.T) {
	db := testDB(t)
	planner, queues, _ := newTestPlanner(t, db)

	yesterday := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	broken := createSchedule(t, db, "Операционные системы", "1", yesterday)
	healthy := createSchedule(t, db, "Базы данных", "2", yesterday)

	for _, s := range []models.Schedule{broken, healthy} {
		_, err := queues.Open(s.ID)
		assert.NoError(t, err)
	}
	for _, s := range []models.Schedule{broken, healthy} {
		for i, userID := range []int64{100, 200} {
			entry := models.QueueEntry{ScheduleID: s.ID, UserID: userID, LabNumber: i + 1, Position: i + 1}
			assert.NoError(t, db.Create(&entry).Error)
		}
	}

	// Ограничение пропускает первую запись сломанного расписания и
	// отклоняет вторую: миграция падает на полпути.
	db.Exec("ALTER TABLE archive_entries DROP CONSTRAINT IF EXISTS archive_entries_migration_fault;")
	assert.NoError(t, db.Exec(fmt.Sprintf(
		"ALTER TABLE archive_entries ADD CONSTRAINT archive_entries_migration_fault CHECK (NOT (schedule_id = %d AND position > 1));",
		broken.ID)).Error)
	defer db.Exec("ALTER TABLE archive_entries DROP CONSTRAINT IF EXISTS archive_entries_migration_fault;")

	archived, failures := planner.RunDailyArchiveTask(now)
	assert.Equal(t, 1, archived)
	assert.Len(t, failures, 1)
	assert.Contains(t, failures[0].Error(), fmt.Sprintf("расписание %d", broken.ID))

	// Здоровое расписание заархивировано и закрыто.
	var archiveCount int64
	assert.NoError(t, db.Model(&models.ArchiveEntry{}).Where("schedule_id = ?", healthy.ID).Count(&archiveCount).Error)
	assert.Equal(t, int64(2), archiveCount)
	open, err := queues.IsOpen(healthy.ID)
	assert.NoError(t, err)
	assert.False(t, open)

	// Сломанное расписание откатилось целиком: частично скопированных
	// строк в архиве нет, очередь цела и открыта.
	var entryCount int64
	assert.NoError(t, db.Model(&models.ArchiveEntry{}).Where("schedule_id = ?", broken.ID).Count(&archiveCount).Error)
	assert.Equal(t, int64(0), archiveCount)
	assert.NoError(t, db.Model(&models.QueueEntry{}).Where("schedule_id = ?", broken.ID).Count(&entryCount).Error)
	assert.Equal(t, int64(2), entryCount)
	open, err = queues.IsOpen(broken.ID)
	assert.NoError(t, err)
	assert.True(t, open)

	// После снятия ограничения повторный запуск доархивирует остаток.
	db.Exec("ALTER TABLE archive_entries DROP CONSTRAINT archive_entries_migration_fault;")
	archived, failures = planner.RunDailyArchiveTask(now)
	assert.Empty(t, failures)
	assert.Equal(t, 1, archived)
	assert.NoError(t, db.Model(&models.ArchiveEntry{}).Where("schedule_id = ?", broken.ID).Count(&archiveCount).Error)
	assert.Equal(t, int64(2), archiveCount)
}

func TestDailyArchiveTaskSkipsNeverOpened(t *testing.T) {
	db := testDB(t)
	planner, _, _ := newTestPlanner(t, db)

	yesterday := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	createSchedule(t, db, "Операционные системы", "1", yesterday)

	archived, failures := planner.RunDailyArchiveTask(now)
	assert.Empty(t, failures)
	assert.Equal(t, 0, archived)
}
