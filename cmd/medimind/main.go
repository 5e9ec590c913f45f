package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/medimind/medimind/internal/ai"
	"github.com/medimind/medimind/internal/config"
	"github.com/medimind/medimind/internal/database"
	"github.com/medimind/medimind/internal/escalation"
	"github.com/medimind/medimind/internal/handlers"
	"github.com/medimind/medimind/internal/ledger"
	"github.com/medimind/medimind/internal/notify"
	"github.com/medimind/medimind/internal/repository"
	"github.com/medimind/medimind/internal/scheduler"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate required config
	if cfg.DatabaseURI == "" {
		log.Fatal("DATABASE_URI is required")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	// Run migrations
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Open followup ledger
	store, err := ledger.OpenBadger(cfg.LedgerPath)
	if err != nil {
		log.Fatalf("Failed to open followup ledger: %v", err)
	}
	defer store.Close()

	// Initialize AI client (optional)
	var aiClient *ai.Client
	if cfg.AIAPIKey != "" {
		aiClient = ai.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
		log.Printf("AI client initialized (model: %s)", cfg.AIModel)
	} else {
		log.Println("AI client not configured, using the built-in message pool")
	}

	// Pick a notification device. Without Telegram credentials the process
	// still runs, it just accumulates registrations instead of delivering.
	var device notify.Device
	var timerDevice *notify.TimerDevice
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tgAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			log.Fatalf("Failed to create Telegram API: %v", err)
		}
		timerDevice = notify.NewTimerDevice(notify.NewTelegramSink(tgAPI, cfg.TelegramChatID))
		device = timerDevice
		log.Println("Delivering notifications via Telegram")
	} else {
		device = notify.NewMemoryDevice()
		log.Println("TELEGRAM_TOKEN or TELEGRAM_CHAT_ID not set, notification delivery disabled")
	}

	// Create repositories
	medicineRepo := repository.NewMedicineRepository(db)
	logRepo := repository.NewMedicineLogRepository(db)

	// Create the scheduling core
	var gen escalation.MessageGenerator
	if aiClient != nil {
		gen = aiClient
	}
	engine := escalation.New(device, logRepo, store, gen, cfg.FollowupInterval)
	sched := scheduler.New(device, cfg.MissedCutoffMinute, cfg.MissedDelay)
	h := handlers.New(logRepo, sched, engine)
	if timerDevice != nil {
		timerDevice.OnFire(h.HandleFired)
		defer timerDevice.Close()
	}

	// Restore followup state and rebuild the day's schedule
	if err := engine.Load(ctx); err != nil {
		log.Printf("Failed to load followup state, continuing with an empty ledger: %v", err)
	}
	if err := engine.Reconcile(ctx); err != nil {
		log.Printf("Followup reconciliation incomplete: %v", err)
	}

	meds, err := medicineRepo.GetActive(ctx)
	if err != nil {
		log.Fatalf("Failed to load active medicines: %v", err)
	}
	sched.ScheduleAll(ctx, meds)
	log.Printf("Scheduled reminders for %d active medicines", len(meds))

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")
	cancel()
}
