package auth

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"

	"labqueue/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// NewDBAdminChecker возвращает проверку "является ли пользователь админом"
// для передачи в сервисы ядра.
func NewDBAdminChecker(db *gorm.DB) func(int64) bool {
	return func(userID int64) bool {
		var user models.User
		if err := db.First(&user, "telegram_id = ?", userID).Error; err != nil {
			return false
		}
		return user.IsAdmin
	}
}

// NewAdminLister возвращает загрузку списка ID админов для рассылок.
func NewAdminLister(db *gorm.DB) func() []int64 {
	return func() []int64 {
		var ids []int64
		if err := db.Model(&models.User{}).Where("is_admin = ?", true).
			Pluck("telegram_id", &ids).Error; err != nil {
			log.Println("Не удалось загрузить список админов:", err)
			return nil
		}
		return ids
	}
}

// SeedAdmins создаёт или помечает админов из ADMIN_IDS (пароль — ADMIN_PASSWORD).
// Нужен для первоначальной загрузки: без хотя бы одного админа некому одобрять заявки.
func SeedAdmins(db *gorm.DB) error {
	raw := os.Getenv("ADMIN_IDS")
	if raw == "" {
		log.Println("ADMIN_IDS не задан, админы не заведены.")
		return nil
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		return errors.New("ADMIN_PASSWORD обязателен при заданном ADMIN_IDS")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("Неверный ID админа %q, пропускаем", part)
			continue
		}

		var user models.User
		err = db.First(&user, "telegram_id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user = models.User{
				TelegramID:   id,
				FullName:     "Администратор",
				PasswordHash: string(hash),
				IsAdmin:      true,
			}
			if err := db.Create(&user).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if !user.IsAdmin {
			if err := db.Model(&user).Update("is_admin", true).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
