package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ragchat/internal/config"
	"ragchat/internal/model"
	mysqlClient "ragchat/internal/platform/mysql"
	rabbitmqClient "ragchat/internal/platform/rabbitmq"
	redisClient "ragchat/internal/platform/redis"
	"ragchat/internal/repository"
	"ragchat/internal/session"
	"ragchat/internal/worker"
)

type App struct {
	Config            *config.Config
	Logger            *zap.Logger
	MySQL             *gorm.DB
	Redis             *redis.Client
	MQConn            *amqp.Connection
	Sessions          *session.Store
	InteractionWorker *worker.InteractionPersistWorker

	StartedAt time.Time
}

func New(ctx context.Context, logger *zap.Logger) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.Document{}, &model.Chunk{}, &model.Interaction{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	interactionRepo := repository.NewInteractionRepository(mysqlDB)
	interactionWorker := worker.NewInteractionPersistWorker(
		mqConn, interactionRepo, cfg.RabbitMQ.InteractionPersistQueue, logger)
	if err := interactionWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start interaction worker failed: %w", err)
	}

	sessions := session.NewStore(
		time.Duration(cfg.Session.IdleTTLSeconds)*time.Second,
		cfg.Session.MaxSessions,
	)
	sessions.StartSweeper(time.Duration(cfg.Session.SweepIntervalSeconds) * time.Second)

	return &App{
		Config:            cfg,
		Logger:            logger,
		MySQL:             mysqlDB,
		Redis:             redisCli,
		MQConn:            mqConn,
		Sessions:          sessions,
		InteractionWorker: interactionWorker,
		StartedAt:         time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Sessions != nil {
		a.Sessions.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.InteractionWorker != nil {
		a.InteractionWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
