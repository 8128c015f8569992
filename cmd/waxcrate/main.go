package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/TimoLindner/WaxCrate/app/controllers"
	"github.com/TimoLindner/WaxCrate/internal/pkg/billing"
	"github.com/TimoLindner/WaxCrate/internal/pkg/cache"
	"github.com/TimoLindner/WaxCrate/internal/pkg/database"
	"github.com/TimoLindner/WaxCrate/internal/pkg/entitlements"
	"github.com/TimoLindner/WaxCrate/internal/pkg/env"
	"github.com/TimoLindner/WaxCrate/internal/pkg/router"
	"github.com/TimoLindner/WaxCrate/internal/pkg/webhookqueue"
)

func main() {
	app, queue := NewApplication()

	// stop the retry workers cleanly on shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		queue.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *webhookqueue.Queue) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	billing.SetupStripe()

	db := database.GetDB()
	repo := entitlements.NewRepository(db)
	evaluator := entitlements.NewService(repo)
	reconciler := billing.NewServiceFromDB(db)

	workers, err := strconv.Atoi(env.GetEnv("WEBHOOK_RETRY_WORKERS", "2"))
	if err != nil || workers < 1 {
		workers = 2
	}
	queue := webhookqueue.NewQueue(reconciler, workers)
	queue.Start()

	controllers.Setup(reconciler, evaluator, repo, queue)

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "WaxCrate Entitlements",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app, queue
}
