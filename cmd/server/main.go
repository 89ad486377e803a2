// cmd/server/main.go
package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/telinga/telinga-backend/internal/channel"
	"github.com/telinga/telinga-backend/internal/config"
	"github.com/telinga/telinga-backend/internal/controller"
	"github.com/telinga/telinga-backend/internal/db"
	"github.com/telinga/telinga-backend/internal/metrics"
	"github.com/telinga/telinga-backend/internal/model"
	"github.com/telinga/telinga-backend/internal/queue"
	"github.com/telinga/telinga-backend/internal/repository"
	"github.com/telinga/telinga-backend/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("failed to init logger: ", err)
	}
	defer logger.Sync()

	database, err := db.Open(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	rabbit := queue.NewRabbitQueue(cfg.Rabbit.URL, 50, logger)
	defer rabbit.Close()

	customerRepo := &repository.CustomerRepository{DB: database}
	feedbackRepo := &repository.FeedbackRepository{DB: database}
	scheduledRepo := &repository.ScheduledMessageRepository{DB: database}
	deliveryRepo := &repository.DeliveryRecordRepository{DB: database}
	meetingRepo := &repository.MeetingRequestRepository{DB: database}

	channels := channel.Registry{
		model.ChannelSMS: channel.NewTwilioSMSClient(
			cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.PhoneNumber, logger),
		model.ChannelEmail: channel.NewSMTPEmailClient(
			cfg.Email.From, cfg.Email.SMTPPassword, cfg.Email.SMTPHost, cfg.Email.SMTPPort, logger),
	}

	intakeService := &service.IntakeService{
		FeedbackRepo: feedbackRepo,
		Queue:        rabbit,
		Verifiers: map[model.Channel]service.SignatureVerifier{
			model.ChannelSMS: &service.TwilioSignatureVerifier{
				Validator: channel.NewTwilioValidator(cfg.Twilio.AuthToken),
			},
			model.ChannelEmail: &service.EmailSignatureVerifier{
				Validator: channel.NewEmailWebhookValidator(cfg.Email.WebhookSecret),
			},
		},
		Cache:  &service.RedisDedupeCache{Client: redisClient},
		Logger: logger,
	}

	schedulerService := &service.SchedulerService{
		ScheduledRepo: scheduledRepo,
		MeetingRepo:   meetingRepo,
		CustomerRepo:  customerRepo,
		Renderer:      &service.TemplateRenderer{},
		Queue:         rabbit,
		Logger:        logger,
	}

	deliveryService := &service.DeliveryService{
		ScheduledRepo: scheduledRepo,
		DeliveryRepo:  deliveryRepo,
		CustomerRepo:  customerRepo,
		Channels:      channels,
		Cfg:           cfg.Pipeline,
		Logger:        logger,
	}

	webhookController := &controller.WebhookController{
		IntakeService:   intakeService,
		DeliveryService: deliveryService,
		PublicBaseURL:   cfg.Server.PublicBaseURL,
		Logger:          logger,
	}
	importController := &controller.ImportController{
		SchedulerService: schedulerService,
		Logger:           logger,
	}
	messageController := &controller.MessageController{
		ScheduledRepo:    scheduledRepo,
		SchedulerService: schedulerService,
		Logger:           logger,
	}
	rateLimiter := &controller.RateLimiter{
		Redis:  redisClient,
		Limit:  cfg.Server.RateLimit,
		Window: cfg.Server.RateLimitWindow,
		Logger: logger,
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(rateLimiter.Middleware)
		r.Post("/webhooks/sms", webhookController.InboundSMS)
		r.Post("/webhooks/email", webhookController.InboundEmail)
		r.Post("/webhooks/status", webhookController.DeliveryStatus)
	})

	r.Post("/imports", importController.UploadBatch)
	r.Get("/messages/{id}", messageController.GetMessage)
	r.Post("/messages/{id}/cancel", messageController.CancelMessage)
	r.Get("/metrics", metrics.Handler)

	logger.Info("server running", zap.String("addr", cfg.Server.Addr))
	if err := http.ListenAndServe(cfg.Server.Addr, r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
