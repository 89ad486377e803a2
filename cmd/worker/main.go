// cmd/worker/main.go
package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/telinga/telinga-backend/internal/channel"
	"github.com/telinga/telinga-backend/internal/classifier"
	"github.com/telinga/telinga-backend/internal/config"
	"github.com/telinga/telinga-backend/internal/db"
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

	rabbit := queue.NewRabbitQueue(cfg.Rabbit.URL, 50, logger)
	defer rabbit.Close()

	customerRepo := &repository.CustomerRepository{DB: database}
	threadRepo := &repository.ThreadRepository{DB: database}
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

	correlator := &service.CorrelatorService{
		CustomerRepo: customerRepo,
		ThreadRepo:   threadRepo,
		FeedbackRepo: feedbackRepo,
		Logger:       logger,
	}

	scheduler := &service.SchedulerService{
		ScheduledRepo: scheduledRepo,
		MeetingRepo:   meetingRepo,
		CustomerRepo:  customerRepo,
		Renderer:      &service.TemplateRenderer{},
		Queue:         rabbit,
		Logger:        logger,
	}

	delivery := &service.DeliveryService{
		ScheduledRepo: scheduledRepo,
		DeliveryRepo:  deliveryRepo,
		CustomerRepo:  customerRepo,
		Channels:      channels,
		Cfg:           cfg.Pipeline,
		Logger:        logger,
	}

	pipeline := &service.PipelineService{
		FeedbackRepo: feedbackRepo,
		Correlator:   correlator,
		Classifier: classifier.NewGPTClassifier(
			cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens,
			cfg.OpenAI.Temperature, cfg.OpenAI.Timeout, logger),
		Scheduler: scheduler,
		Responder: cfg.Responder,
		Logger:    logger,
	}

	ctx := context.Background()

	err = rabbit.Subscribe(queue.TopicCorrelate, func(data []byte) error {
		var task queue.CorrelateTask
		if err := json.Unmarshal(data, &task); err != nil {
			logger.Error("invalid correlate task, dropping", zap.Error(err))
			return nil
		}
		return pipeline.ProcessFeedback(ctx, task.FeedbackMessageID)
	})
	if err != nil {
		logger.Fatal("failed to subscribe", zap.String("topic", queue.TopicCorrelate), zap.Error(err))
	}

	err = rabbit.Subscribe(queue.TopicDispatch, func(data []byte) error {
		var task queue.DispatchTask
		if err := json.Unmarshal(data, &task); err != nil {
			logger.Error("invalid dispatch task, dropping", zap.Error(err))
			return nil
		}
		return delivery.Dispatch(ctx, task.ScheduledMessageID)
	})
	if err != nil {
		logger.Fatal("failed to subscribe", zap.String("topic", queue.TopicDispatch), zap.Error(err))
	}

	dueTicker := time.NewTicker(cfg.Pipeline.DueScanInterval)
	pollTicker := time.NewTicker(cfg.Pipeline.StatusPollInterval)
	defer dueTicker.Stop()
	defer pollTicker.Stop()

	logger.Info("worker running")
	for {
		select {
		case now := <-dueTicker.C:
			enqueued, err := scheduler.ScanDue(now)
			if err != nil {
				logger.Error("due scan failed", zap.Error(err))
				continue
			}
			if enqueued > 0 {
				logger.Info("due messages enqueued", zap.Int("count", enqueued))
			}
		case <-pollTicker.C:
			if err := delivery.PollStatuses(ctx); err != nil {
				logger.Error("status poll failed", zap.Error(err))
			}
		}
	}
}
