package registration

import (
	"errors"
	"os"
	"sync"
	"testing"

	"labqueue/internal/models"
	"labqueue/internal/settings"
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

const (
	adminA int64 = 1
	adminB int64 = 2
)

func newTestService(t *testing.T, db *gorm.DB, notifier *fakeNotifier) (*Service, *settings.Service) {
	t.Helper()
	st := settings.NewService(db)
	assert.NoError(t, st.EnsureDefaults())
	isAdmin := func(id int64) bool { return id == adminA || id == adminB }
	adminIDs := func() []int64 { return []int64{adminA, adminB} }
	return NewService(db, notifier, st, isAdmin, adminIDs), st
}

func TestRegistrationApproveFlow(t *testing.T) {
	db := testDB(t)
	notifier := newFakeNotifier()
	svc, _ := newTestService(t, db, notifier)

	assert.NoError(t, svc.Begin(500, "hash500"))
	assert.NoError(t, svc.SubmitName(500, "Иван Иванов"))

	// По одному запросу на решение каждому админу.
	assert.Equal(t, 1, notifier.count(adminA))
	assert.Equal(t, 1, notifier.count(adminB))
	assert.True(t, svc.HasPending(500))

	assert.NoError(t, svc.Decide(adminA, 500, true))

	var user models.User
	assert.NoError(t, db.First(&user, "telegram_id = ?", int64(500)).Error)
	assert.Equal(t, "Иван Иванов", user.FullName)
	assert.Equal(t, "hash500", user.PasswordHash)
	assert.False(t, user.IsAdmin)
	assert.Equal(t, 1, notifier.count(500))

	// Повторное решение по той же заявке — безобидный no-op.
	assert.ErrorIs(t, svc.Decide(adminB, 500, true), ErrRequestNotFound)
}

func TestRegistrationRejectFlow(t *testing.T) {
	db := testDB(t)
	notifier := newFakeNotifier()
	svc, _ := newTestService(t, db, notifier)

	assert.NoError(t, svc.Begin(500, "hash500"))
	assert.NoError(t, svc.SubmitName(500, "Иван Иванов"))
	assert.NoError(t, svc.Decide(adminA, 500, false))

	var user models.User
	err := db.First(&user, "telegram_id = ?", int64(500)).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Equal(t, 1, notifier.count(500))
	assert.False(t, svc.HasPending(500))
}

func TestBeginAlreadyRegistered(t *testing.T) {
	db := testDB(t)
	notifier := newFakeNotifier()
	svc, _ := newTestService(t, db, notifier)

	user := models.User{TelegramID: 500, FullName: "Иван Иванов", PasswordHash: "hash"}
	assert.NoError(t, db.Create(&user).Error)

	assert.ErrorIs(t, svc.Begin(500, "hash500"), ErrAlreadyRegistered)
}

func TestBeginWhileRequestPending(t *testing.T) {
	db := testDB(t)
	notifier := newFakeNotifier()
	svc, _ := newTestService(t, db, notifier)

	assert.NoError(t, svc.Begin(500, "hash1"))
	assert.NoError(t, svc.SubmitName(500, "Иван Иванов"))

	// Заявка в ожидании не перезатирается повторной попыткой.
	assert.ErrorIs(t, svc.Begin(500, "hash2"), ErrRequestPending)
}

func TestRegistrationClosedAndReopened(t *testing.T) {
	db := testDB(t)
	notifier := newFakeNotifier()
	svc, st := newTestService(t, db, notifier)

	enabled, err := st.ToggleRegistration()
	assert.NoError(t, err)
	assert.False(t, enabled)

	assert.ErrorIs(t, svc.Begin(500, "hash500"), ErrRegistrationClosed)

	enabled, err = st.ToggleRegistration()
	assert.NoError(t, err)
	assert.True(t, enabled)

	assert.NoError(t, svc.Begin(500, "hash500"))
}

func TestCancelDiscardsAwaitingState(t *testing.T) {
	db := testDB(t)
	notifier := newFakeNotifier()
	svc, _ := newTestService(t, db, notifier)

	assert.NoError(t, svc.Begin(500, "hash500"))
	svc.Cancel(500)
	assert.ErrorIs(t, svc.SubmitName(500, "Иван Иванов"), ErrNoBegin)

	// Отмена без начатой регистрации — no-op.
	svc.Cancel(501)
}

func TestDecideUnauthorized(t *testing.T) {
	db := testDB(t)
	notifier := newFakeNotifier()
	svc, _ := newTestService(t, db, notifier)

	assert.NoError(t, svc.Begin(500, "hash500"))
	assert.NoError(t, svc.SubmitName(500, "Иван Иванов"))

	assert.ErrorIs(t, svc.Decide(999, 500, true), ErrUnauthorized)
	assert.True(t, svc.HasPending(500), "Неавторизованное решение не трогает заявку")
}

func TestConcurrentDecideExactlyOnce(t *testing.T) {
	db := testDB(t)
	notifier := newFakeNotifier()
	svc, _ := newTestService(t, db, notifier)

	assert.NoError(t, svc.Begin(500, "hash500"))
	assert.NoError(t, svc.SubmitName(500, "Иван Иванов"))

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, admin := range []int64{adminA, adminB} {
		wg.Add(1)
		go func(adminID int64) {
			defer wg.Done()
			results <- svc.Decide(adminID, 500, true)
		}(admin)
	}
	wg.Wait()
	close(results)

	succeeded, notFound := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrRequestNotFound):
			notFound++
		default:
			t.Fatal("Неожиданная ошибка:", err)
		}
	}
	assert.Equal(t, 1, succeeded, "Ровно одно решение должно пройти")
	assert.Equal(t, 1, notFound, "Второе решение должно стать no-op")

	var count int64
	assert.NoError(t, db.Model(&models.User{}).Where("telegram_id = ?", int64(500)).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSubmitNameSurvivesAdminDeliveryFailure(t *testing.T) {
	db := testDB(t)
	notifier := newFakeNotifier()
	notifier.fail[adminA] = true
	svc, _ := newTestService(t, db, notifier)

	assert.NoError(t, svc.Begin(500, "hash500"))
	assert.NoError(t, svc.SubmitName(500, "Иван Иванов"), "Сбой доставки одному админу не откатывает заявку")

	assert.Equal(t, 1, notifier.count(adminB))
	assert.True(t, svc.HasPending(500))
	assert.NoError(t, svc.Decide(adminB, 500, true))
}
