package registration

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"labqueue/internal/models"
	"labqueue/internal/notify"
	"labqueue/internal/settings"

	"gorm.io/gorm"
)

// Request — заявка на регистрацию, ожидающая решения администратора.
// Живёт только в памяти процесса; при рестарте пользователь начинает заново.
type Request struct {
	FullName     string
	PasswordHash string
	CreatedAt    time.Time
}

// Service ведёт конечный автомат регистрации по каждому пользователю:
// NONE -> AWAITING_NAME -> PENDING_ADMIN -> {APPROVED | REJECTED}.
type Service struct {
	db       *gorm.DB
	notifier notify.Notifier
	settings *settings.Service
	isAdmin  func(int64) bool
	adminIDs func() []int64

	mu       sync.Mutex
	awaiting map[int64]string  // userID -> хеш пароля, состояние AWAITING_NAME
	pending  map[int64]Request // userID -> заявка, состояние PENDING_ADMIN
}

func NewService(db *gorm.DB, notifier notify.Notifier, st *settings.Service,
	isAdmin func(int64) bool, adminIDs func() []int64) *Service {
	return &Service{
		db:       db,
		notifier: notifier,
		settings: st,
		isAdmin:  isAdmin,
		adminIDs: adminIDs,
		awaiting: make(map[int64]string),
		pending:  make(map[int64]Request),
	}
}

// Begin начинает регистрацию: проверяет, что пользователь ещё не зарегистрирован,
// регистрация включена и заявки в ожидании нет, и переводит его в AWAITING_NAME.
func (s *Service) Begin(userID int64, passwordHash string) error {
	var existing models.User
	err := s.db.First(&existing, "telegram_id = ?", userID).Error
	if err == nil {
		return ErrAlreadyRegistered
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	enabled, err := s.settings.IsRegistrationEnabled()
	if err != nil {
		return err
	}
	if !enabled {
		return ErrRegistrationClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[userID]; ok {
		return ErrRequestPending
	}
	s.awaiting[userID] = passwordHash
	return nil
}

// SubmitName принимает ФИО, фиксирует заявку и рассылает админам запрос на
// решение. Рассылка best-effort: сбой доставки одному админу не откатывает
// сохранённую заявку и не мешает остальным.
func (s *Service) SubmitName(userID int64, fullName string) error {
	s.mu.Lock()
	hash, ok := s.awaiting[userID]
	if !ok {
		s.mu.Unlock()
		return ErrNoBegin
	}
	delete(s.awaiting, userID)
	s.pending[userID] = Request{FullName: fullName, PasswordHash: hash, CreatedAt: time.Now()}
	s.mu.Unlock()

	text := fmt.Sprintf("Новая заявка на регистрацию: %s (ID %d). Одобрить или отклонить?", fullName, userID)
	res := notify.Fanout(s.notifier, s.adminIDs(), text)
	if res.Failed > 0 {
		log.Printf("Заявка %d: уведомлено админов %d, сбоев доставки %d", userID, res.Delivered, res.Failed)
	}
	return nil
}

// Cancel отменяет незавершённую регистрацию. Работает только из AWAITING_NAME,
// иначе ничего не делает.
func (s *Service) Cancel(userID int64) {
	s.mu.Lock()
	delete(s.awaiting, userID)
	s.mu.Unlock()
}

// take атомарно изымает заявку; именно это даёт exactly-once: из двух
// одновременных decide только один получает заявку, второй — ErrRequestNotFound.
func (s *Service) take(userID int64) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.pending[userID]
	if ok {
		delete(s.pending, userID)
	}
	return req, ok
}

// Decide одобряет или отклоняет заявку. При одобрении создаётся запись
// пользователя; при сбое базы заявка возвращается в очередь ожидания, чтобы
// админ мог повторить решение.
func (s *Service) Decide(adminID, targetID int64, approve bool) error {
	if !s.isAdmin(adminID) {
		return ErrUnauthorized
	}

	req, ok := s.take(targetID)
	if !ok {
		return ErrRequestNotFound
	}

	if !approve {
		if err := s.notifier.Notify(targetID, "Ваша заявка на регистрацию отклонена."); err != nil {
			log.Printf("Не удалось уведомить пользователя %d об отклонении: %v", targetID, err)
		}
		return nil
	}

	user := models.User{
		TelegramID:   targetID,
		FullName:     req.FullName,
		PasswordHash: req.PasswordHash,
	}
	if err := s.db.Create(&user).Error; err != nil {
		s.mu.Lock()
		if _, exists := s.pending[targetID]; !exists {
			s.pending[targetID] = req
		}
		s.mu.Unlock()
		return err
	}

	if err := s.notifier.Notify(targetID, "Ваша заявка одобрена, добро пожаловать!"); err != nil {
		log.Printf("Не удалось уведомить пользователя %d об одобрении: %v", targetID, err)
	}
	return nil
}

// HasPending сообщает, ждёт ли заявка пользователя решения.
func (s *Service) HasPending(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[userID]
	return ok
}
