package main

import (
	"fmt"
	"log"
	"os"

	_ "labqueue/docs"
	"labqueue/internal/auth"
	"labqueue/internal/handlers"
	"labqueue/internal/models"
	"labqueue/internal/queue"
	"labqueue/internal/registration"
	"labqueue/internal/schedule"
	"labqueue/internal/settings"
	"labqueue/internal/storage"
	"labqueue/internal/tasks"
	"labqueue/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @Title						Онлайн очередь для сдачи лабораторных
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	key := os.Getenv("ENV_CHEK")
	if key == "" {
		fmt.Println("Подключение к .env")
		err := godotenv.Load()
		if err != nil {
			log.Fatal("Ошибка получения .env")
		}
	}

	storage.ConnectDatabase()

	if err := storage.DB.AutoMigrate(
		&models.User{},
		&models.Schedule{},
		&models.ActiveQueue{},
		&models.QueueEntry{},
		&models.ArchiveEntry{},
		&models.Settings{},
	); err != nil {
		log.Fatal("Ошибка при миграции... ", err.Error())
	}

	storage.InitRedis()

	settingsSvc := settings.NewService(storage.DB)
	if err := settingsSvc.EnsureDefaults(); err != nil {
		log.Fatal("Ошибка инициализации настроек... ", err.Error())
	}

	if err := auth.SeedAdmins(storage.DB); err != nil {
		log.Fatal("Ошибка заведения админов... ", err.Error())
	}

	// Сидинг каталога расписаний выполняется только при пустой таблице.
	if seedFile := os.Getenv("SCHEDULE_SEED_FILE"); seedFile != "" {
		seeds, err := schedule.ParseSeedFile(seedFile)
		if err != nil {
			log.Fatal("Ошибка чтения файла расписаний... ", err.Error())
		}
		if err := schedule.SeedCatalog(storage.DB, seeds); err != nil {
			log.Fatal("Ошибка сидинга расписаний... ", err.Error())
		}
	}

	isAdmin := auth.NewDBAdminChecker(storage.DB)
	queueSvc := queue.NewService(storage.DB, isAdmin)
	registrationSvc := registration.NewService(storage.DB, ws.HubInstance, settingsSvc,
		isAdmin, auth.NewAdminLister(storage.DB))
	planner := tasks.NewPlanner(storage.DB, queueSvc, ws.HubInstance)

	handlers.Init(registrationSvc, queueSvc, settingsSvc, planner)

	tasks.InitScheduler(planner)

	go ws.HubInstance.Run()

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", handlers.RegisterBegin)
		authGroup.POST("/register/name", handlers.RegisterName)
		authGroup.POST("/register/cancel", handlers.RegisterCancel)
		authGroup.POST("/login", handlers.Login)
		authGroup.POST("/refresh", handlers.RefreshToken)
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/schedules", handlers.GetSchedulesHandler)
		apiGroup.GET("/schedules/:id/queue", handlers.GetQueueHandler)
	}

	userGroup := r.Group("/api", auth.AuthMiddleware())
	{
		userGroup.POST("/schedules/:id/join", handlers.JoinQueueHandler)
		userGroup.POST("/schedules/:id/leave", handlers.LeaveQueueHandler)
		userGroup.GET("/notifications/ws", ws.NotificationsHandler)
	}

	adminGroup := r.Group("/api/admin", auth.AuthMiddleware(), auth.AdminMiddleware())
	{
		adminGroup.POST("/registrations/:user_id/decide", handlers.DecideRegistrationHandler)
		adminGroup.POST("/settings/registration/toggle", handlers.ToggleRegistrationHandler)
		adminGroup.POST("/schedules/:id/open", handlers.OpenQueueHandler)
		adminGroup.POST("/schedules/:id/close", handlers.CloseQueueHandler)
		adminGroup.POST("/schedules/:id/remove/:user_id", handlers.RemoveUserHandler)
		adminGroup.POST("/tasks/daily", handlers.RunDailyTasksHandler)
	}

	if err := r.Run(":8080"); err != nil {
		log.Fatal("Ошибка запуска сервера...", err.Error())
	}
}
