package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"interview-orchestrator/internal/ai"
	"interview-orchestrator/internal/bot"
	"interview-orchestrator/internal/config"
	"interview-orchestrator/internal/dispatch"
	"interview-orchestrator/internal/events"
	"interview-orchestrator/internal/hr"
	"interview-orchestrator/internal/queue"
	"interview-orchestrator/internal/realtime"
	"interview-orchestrator/internal/secrets"
	"interview-orchestrator/internal/storage"
	"interview-orchestrator/internal/store"
	"interview-orchestrator/internal/telemetry"
	workerproc "interview-orchestrator/internal/worker"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	q := queue.NewRedisQueue(cfg)

	workerID := os.Getenv("WORKER_ID")
	if workerID == "" {
		hostname, _ := os.Hostname()
		if hostname != "" {
			workerID = hostname
		} else {
			workerID = fmt.Sprintf("worker-%d", os.Getpid())
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	rt := realtime.NewPublisher(redisClient)

	box, err := secrets.NewBox(cfg.CredentialsKey)
	if err != nil {
		log.Fatalf("init credentials box: %v", err)
	}
	voices, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init voice storage: %v", err)
	}
	sender, err := bot.NewSender(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("init telegram sender: %v", err)
	}

	aiClient := ai.New(cfg)
	board := hr.NewClient(cfg)
	emitter := dispatch.NewEmitter(cfg, st, q)

	processor := workerproc.NewProcessor(cfg, q, st, workerID)

	screen := workerproc.NewScreenHandler(st, aiClient, rt, q, cfg.VisibilityTimeout)
	processor.RegisterHandler(events.ResponseScreen, screen.HandleSingle)
	processor.RegisterHandler(events.ResponseScreenNew, screen.HandleNew)
	processor.RegisterHandler(events.ResponseScreenAll, screen.HandleAll)
	processor.RegisterHandler(events.ResponseScreenBatch, screen.HandleBatch)

	welcome := workerproc.NewWelcomeHandler(st, board, box, rt, q, cfg.VisibilityTimeout)
	processor.RegisterHandler(events.CandidateWelcomeSend, welcome.HandleSend)
	processor.RegisterHandler(events.CandidateWelcomeBatch, welcome.HandleBatch)

	resume := workerproc.NewResumeHandler(st, aiClient, q, cfg.VisibilityTimeout)
	processor.RegisterHandler(events.ResumeParseNew, resume.HandleParseNew)
	processor.RegisterHandler(events.ResumeParseMissing, resume.HandleParseMissing)

	vacancy := workerproc.NewVacancyHandler(st, board, aiClient, box, rt, emitter)
	processor.RegisterHandler(events.VacancyUpdate, vacancy.HandleUpdate)
	processor.RegisterHandler(events.VacancyUpdateActive, vacancy.HandleUpdateActive)
	processor.RegisterHandler(events.VacancyResponsesRefresh, vacancy.HandleResponsesRefresh)
	processor.RegisterHandler(events.VacancyExtractRequirements, vacancy.HandleExtractRequirements)

	credentials := workerproc.NewCredentialsHandler(st, board, box)
	processor.RegisterHandler(events.IntegrationVerify, credentials.HandleVerify)

	transcribe := workerproc.NewTranscribeHandler(st, voices, aiClient)
	processor.RegisterHandler(events.TelegramVoiceTranscribe, transcribe.Handle)

	interview := workerproc.NewInterviewHandler(cfg, st, aiClient, sender, emitter)
	processor.RegisterHandler(events.TelegramInterviewAnalyze, interview.HandleAnalyze)
	processor.RegisterHandler(events.TelegramInterviewComplete, interview.HandleComplete)
	processor.RegisterHandler(events.TelegramInterviewNextQuestion, interview.HandleNextQuestion)
	processor.RegisterHandler(events.TelegramAuthError, interview.HandleAuthError)

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	log.Printf("worker started with visibility=%s backoff_initial=%s", cfg.VisibilityTimeout, cfg.BackoffInitial)
	if err := processor.Run(ctx); err != nil {
		log.Printf("worker stopped: %v", err)
	}
}
