package settings

import (
	"labqueue/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service управляет единственной строкой настроек.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// EnsureDefaults создаёт строку настроек при первом запуске.
func (s *Service) EnsureDefaults() error {
	return s.db.FirstOrCreate(&models.Settings{}, models.Settings{ID: 1}).Error
}

func (s *Service) IsRegistrationEnabled() (bool, error) {
	var st models.Settings
	if err := s.db.First(&st, 1).Error; err != nil {
		return false, err
	}
	return st.RegistrationEnabled, nil
}

// ToggleRegistration переключает флаг регистрации и возвращает новое значение.
// На уже поданные заявки переключение не влияет.
func (s *Service) ToggleRegistration() (bool, error) {
	var enabled bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var st models.Settings
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&st, 1).Error; err != nil {
			return err
		}
		enabled = !st.RegistrationEnabled
		return tx.Model(&st).Update("registration_enabled", enabled).Error
	})
	if err != nil {
		return false, err
	}
	return enabled, nil
}
