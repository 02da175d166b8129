package schedule

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"labqueue/internal/models"

	"gorm.io/gorm"
)

// Seed — одна тройка (предмет, подгруппа, дата защиты) из файла расписания.
type Seed struct {
	Subject     string
	Subgroup    string
	DefenseDate time.Time
}

const dateLayout = "2006-01-02"

// ParseSeedFile читает JSON вида {"подгруппа": {"предмет": ["2026-03-01", ...]}}
// и разворачивает его в плоский список троек.
func ParseSeedFile(path string) ([]Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var data map[string]map[string][]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("неверный формат файла расписания: %w", err)
	}

	var seeds []Seed
	for subgroup, subjects := range data {
		for subject, dates := range subjects {
			for _, d := range dates {
				date, err := time.ParseInLocation(dateLayout, d, time.UTC)
				if err != nil {
					return nil, fmt.Errorf("неверная дата %q для %s/%s: %w", d, subject, subgroup, err)
				}
				seeds = append(seeds, Seed{Subject: subject, Subgroup: subgroup, DefenseDate: date})
			}
		}
	}
	return seeds, nil
}

// SeedCatalog заполняет каталог расписаний при первом запуске.
// Если таблица уже не пуста, ничего не делает.
func SeedCatalog(db *gorm.DB, seeds []Seed) error {
	var count int64
	if err := db.Model(&models.Schedule{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, s := range seeds {
		sched := models.Schedule{
			Subject:     s.Subject,
			Subgroup:    s.Subgroup,
			DefenseDate: s.DefenseDate,
		}
		if err := db.Create(&sched).Error; err != nil {
			return err
		}
	}
	log.Printf("Каталог расписаний заполнен: %d слотов", len(seeds))
	return nil
}

// ByDate возвращает расписания с указанной датой защиты (время отбрасывается).
func ByDate(db *gorm.DB, date time.Time) ([]models.Schedule, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	var schedules []models.Schedule
	err := db.Where("defense_date = ?", day).Find(&schedules).Error
	return schedules, err
}

// ListAll возвращает весь каталог по дате, предмету и подгруппе.
func ListAll(db *gorm.DB) ([]models.Schedule, error) {
	var schedules []models.Schedule
	err := db.Order("defense_date ASC, subject ASC, subgroup ASC").Find(&schedules).Error
	return schedules, err
}

// Find ищет слот по тройке (предмет, подгруппа, дата).
func Find(db *gorm.DB, subject, subgroup string, date time.Time) (*models.Schedule, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	var sched models.Schedule
	err := db.Where("subject = ? AND subgroup = ? AND defense_date = ?", subject, subgroup, day).
		First(&sched).Error
	if err != nil {
		return nil, err
	}
	return &sched, nil
}
