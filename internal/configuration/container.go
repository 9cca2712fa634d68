package configuration

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/nikspatil0120/eduplatform-sub001/internal/db"
	"github.com/nikspatil0120/eduplatform-sub001/internal/directory"
	"github.com/nikspatil0120/eduplatform-sub001/internal/handler"
	"github.com/nikspatil0120/eduplatform-sub001/internal/hub"
	"github.com/nikspatil0120/eduplatform-sub001/internal/model"
	"github.com/nikspatil0120/eduplatform-sub001/internal/notify"
	"github.com/nikspatil0120/eduplatform-sub001/internal/presence"
	"github.com/nikspatil0120/eduplatform-sub001/internal/repo"
	"github.com/nikspatil0120/eduplatform-sub001/internal/service"
)

type Container struct {
	ChatHandler         handler.ChatHandler
	NotificationHandler handler.NotificationHandler
	MonitorHandler      handler.MonitorHandler
	ChatService         *service.ChatService
	Hub                 *hub.Hub
	Config              Config
	Logger              *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
	cancelJobs  context.CancelFunc
}

func BuildContainer(configPath string) (*Container, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	con, err := db.OpenConnection(config.ChatDatabase.Uri, config.ChatDatabase.Database)
	if err != nil {
		return nil, err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	messageRepo := repo.NewMessageRepository(
		db.NewRepository[model.Message](con, config.ChatDatabase.MessagesCollection), logger)
	notificationRepo := repo.NewNotificationRepository(
		db.NewRepository[model.Notification](con, config.ChatDatabase.NotificationsCollection), logger)

	authz := directory.NewMongoAuthZ(con, config.ChatDatabase.EnrollmentsCollection, logger)
	users := directory.NewMongoUserDirectory(con, config.ChatDatabase.UsersCollection, logger)

	tracker := presence.NewTracker(time.Duration(config.Chat.TypingTTLSeconds)*time.Second, logger)
	h := hub.NewHub(tracker)

	chatService := service.NewChatService(messageRepo, tracker, h, authz, users, logger)
	h.SetEventHandler(chatService)

	senders := []notify.ChannelSender{
		notify.NewInApp(h),
		&notify.Email{
			Host: config.Notify.SMTP.Host,
			Port: config.Notify.SMTP.Port,
			User: config.Notify.SMTP.User,
			Pass: config.Notify.SMTP.Pass,
			From: config.Notify.SMTP.From,
		},
		&notify.Push{Endpoint: config.Notify.Push.Endpoint, APIKey: config.Notify.Push.APIKey},
		&notify.SMS{Endpoint: config.Notify.SMS.Endpoint, APIKey: config.Notify.SMS.APIKey, Sender: config.Notify.SMS.Sender},
	}

	dispatcher := notify.NewDispatcher(notificationRepo, users, senders, logger)
	dispatcher.SetChannelTimeout(time.Duration(config.Notify.ChannelTimeoutSeconds) * time.Second)

	notificationService := service.NewNotificationService(dispatcher, notificationRepo, logger)

	// background jobs: scheduled-notification sweep and retention purge
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	notificationService.StartScheduledSweep(jobCtx, time.Duration(config.Notify.SweepSeconds)*time.Second)
	chatService.StartRetentionSweep(jobCtx,
		time.Duration(config.Chat.RetentionSweepMinutes)*time.Minute,
		time.Duration(config.Chat.RetentionDays)*24*time.Hour,
	)

	monitor := hub.NewMonitorService(h, tracker)

	return &Container{
		ChatHandler:         handler.NewChatHandler(chatService),
		NotificationHandler: handler.NewNotificationHandler(notificationService),
		MonitorHandler:      handler.NewMonitorHandler(monitor),
		ChatService:         chatService,
		Hub:                 h,
		Config:              *config,
		Logger:              logger,
		mongoClient:         con,
		cancelJobs:          cancelJobs,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop background sweeps first
	if c.cancelJobs != nil {
		c.cancelJobs()
	}

	// Stop the hub (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
