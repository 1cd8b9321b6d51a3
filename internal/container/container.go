package container

import (
	"context"
	"fmt"

	"animerec/internal/bot"
	"animerec/internal/config"
	"animerec/internal/handlers"
	"animerec/internal/quota"
	"animerec/internal/services"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

type Container struct {
	Config      *config.Config
	Redis       *redis.Client
	Logger      *logrus.Logger
	AniList     *services.AniListClient
	Recommender services.Recommender
	Pipeline    *services.RecommendationPipeline
	Home        *services.HomepageLoader
	Limiter     quota.Limiter
	Handler     *handlers.Handler
	Bot         *bot.Handler
}

// New wires every component from cfg. The model is built from cfg.LLM.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	model, err := services.NewModel(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return NewWithModel(ctx, cfg, logger, model)
}

// NewWithModel is New with a caller-supplied model.
func NewWithModel(ctx context.Context, cfg *config.Config, logger *logrus.Logger, model llms.Model) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	limiter, err := c.newLimiter(ctx)
	if err != nil {
		return nil, err
	}
	c.Limiter = limiter

	c.AniList = services.NewAniListClientWithConfig(&services.ClientConfig{
		BaseURL:       cfg.AniList.URL,
		Timeout:       cfg.AniList.Timeout,
		RatePerMinute: cfg.AniList.RatePerMinute,
		Logger:        logger,
	})

	c.Recommender = services.NewLLMRecommender(&services.RecommenderConfig{
		Model:       model,
		Provider:    cfg.LLM.Provider,
		Temperature: cfg.LLM.Temperature,
		Logger:      logger,
	})

	c.Pipeline = services.NewRecommendationPipeline(&services.PipelineConfig{
		Recommender: c.Recommender,
		Details:     c.AniList,
		Concurrency: cfg.AniList.DetailConcurrency,
		Logger:      logger,
	})

	c.Home = services.NewHomepageLoader(c.AniList, logger)

	c.Handler, err = handlers.New(c.Pipeline, c.Home, c.Limiter, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}
	if err := c.Handler.TrustProxies(cfg.TrustedProxies); err != nil {
		c.Close()
		return nil, err
	}

	if cfg.Telegram.Enabled() {
		c.Bot = bot.NewHandler(c.Pipeline, c.Home, bot.NewBot(cfg.Telegram.BotToken, logger), c.Limiter, logger)
		c.Handler.MountWebhook(c.Bot, cfg.Telegram.WebhookSecret)
	}

	logger.WithFields(logrus.Fields{
		"llm_provider":       cfg.LLM.Provider,
		"llm_model":          cfg.LLM.Model,
		"detail_concurrency": cfg.AniList.DetailConcurrency,
		"search_quota":       cfg.Quota.SearchesPerMinute,
		"shared_quota":       c.Redis != nil,
		"telegram":           c.Bot != nil,
	}).Info("Services initialized")

	return c, nil
}

func (c *Container) newLimiter(ctx context.Context) (quota.Limiter, error) {
	perMinute := c.Config.Quota.SearchesPerMinute
	if perMinute == 0 {
		return quota.Unlimited{}, nil
	}

	if !c.Config.Redis.Enabled() {
		return quota.NewMemoryLimiter(perMinute), nil
	}

	client, err := quota.NewRedisClient(ctx, c.Config.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}
	c.Redis = client
	c.Logger.Info("Redis connection successful")

	return quota.NewRedisLimiter(client, perMinute, c.Logger), nil
}

func (c *Container) Close() {
	if c.Redis != nil {
		c.Redis.Close()
		c.Logger.Info("Redis connection closed")
	}
}
