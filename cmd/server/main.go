package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"
	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/api/handlers"
	"github.com/socialflowhq/socialflow/internal/api/middleware"
	"github.com/socialflowhq/socialflow/internal/instagram"
	job "github.com/socialflowhq/socialflow/internal/jobs"
	"github.com/socialflowhq/socialflow/internal/queue"
	"github.com/socialflowhq/socialflow/internal/repository"
	"github.com/socialflowhq/socialflow/internal/service"
	"github.com/socialflowhq/socialflow/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "something went wrong"})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	accountRepo := repository.NewConnectedAccountRepository(db)
	postRepo := repository.NewScheduledPostRepository(db)
	stateRepo := repository.NewOAuthStateRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)

	vault := utils.NewTokenVault(cfg.EncryptionKey)
	igClient := instagram.NewGraphClient(*cfg)

	oauthService := service.NewOAuthService(*cfg, stateRepo, accountRepo, igClient, vault)
	accountService := service.NewAccountService(*cfg, accountRepo, igClient, vault)
	postService := service.NewPostService(postRepo, accountRepo)
	publishService := service.NewPublishService(*cfg, postRepo, accountRepo, igClient, vault)
	r2Service, err := service.NewR2Service(*cfg)
	if err != nil {
		log.Fatalf("Failed to configure media storage: %v", err)
	}
	mediaService := service.NewMediaService(mediaAssetRepo, r2Service)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	oauth := handlers.NewOAuthHandler(oauthService, *cfg)
	app.Get("/auth/instagram", authMiddleware.AuthMiddleware(), oauth.ConnectInstagram)
	app.Get("/auth/instagram/callback", oauth.CallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	account := handlers.NewAccountHandler(accountService)
	api.Get("/accounts", account.ListAccounts)
	api.Post("/accounts/remove", account.DisconnectAccount)
	api.Post("/accounts/refresh", account.RefreshAccountToken)

	post := handlers.NewPostHandler(postService, client)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/cancel", post.CancelPost)
	api.Post("/posts/update", post.UpdatePost)
	api.Post("/posts/reschedule", post.ReschedulePost)

	media := handlers.NewMediaHandler(mediaService)
	api.Post("/media/upload", media.UploadMedia)
	api.Get("/media", media.ListMedia)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(*cfg, accountRepo, accountService)
	duePostJob := job.NewDuePostJob(*cfg, postRepo, publishService)

	// queue
	queueW := queue.NewQueue(postRepo, publishService)

	c := cron.New()
	c.AddFunc("@every 00h01m00s", duePostJob.ProcessDuePosts)
	c.AddFunc("@every 06h00m00s", refreshTokenJob.RefreshTokens)
	c.AddFunc("@every 01h00m00s", func() {
		if err := stateRepo.DeleteExpired(context.Background(), time.Now()); err != nil {
			log.Printf("Failed to purge expired oauth states: %v", err)
		}
	})
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishPost, queueW.HandlePublishPostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
