// Package app wires configuration, storage, the oracle and the services
// into one App instance shared by every command.
package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"muninn/internal/config"
	"muninn/internal/oracle"
	"muninn/internal/services"
	"muninn/internal/store"
	"muninn/internal/store/primary"
)

type App struct {
	Config *config.Config

	PrimaryStore *primary.StoreImpl
	JobClient    store.JobClient
	Oracle       *oracle.Client

	AuthService           *services.AuthService
	TopicService          *services.TopicService
	EntryService          *services.EntryService
	CategorizationService *services.CategorizationService
	ChatService           *services.ChatService
	TopicCache            *services.TopicCache
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	if err := app.initPrimaryStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initJobClient(); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.initOracle(ctx); err != nil {
		app.Close()
		return nil, err
	}
	app.initServices()

	log.Debug("application initialization complete")
	return app, nil
}

func (a *App) initPrimaryStore(ctx context.Context) error {
	ps, err := primary.NewPrimaryStore(ctx, a.Config.Database.Primary.DSN)
	if err != nil {
		return fmt.Errorf("init primary store: %w", err)
	}
	a.PrimaryStore = ps
	return nil
}

func (a *App) initJobClient() error {
	a.JobClient = store.NewAsynqJobClient(asynq.RedisClientOpt{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	return nil
}

func (a *App) initOracle(ctx context.Context) error {
	var transport oracle.Transport
	var err error
	switch a.Config.Oracle.Provider {
	case "openai":
		transport, err = oracle.NewOpenAITransport(a.Config.Oracle.OpenaiApiKey, a.Config.Oracle.Model)
	case "gemini":
		transport, err = oracle.NewGeminiTransport(ctx, a.Config.Oracle.GoogleApiKey, a.Config.Oracle.Model)
	default:
		err = fmt.Errorf("unknown oracle provider %q", a.Config.Oracle.Provider)
	}
	if err != nil {
		return fmt.Errorf("init oracle: %w", err)
	}
	a.Oracle = oracle.NewClient(transport, a.Config.Oracle.Timeout)
	log.Infof("oracle provider %s model %s", a.Oracle.Name(), a.Oracle.ModelName())
	return nil
}

func (a *App) initServices() {
	ps := a.PrimaryStore
	a.TopicCache = services.NewTopicCache(ps)
	a.AuthService = services.NewAuthService(ps, a.Config.Auth.JWTSecret, a.Config.Auth.TokenTTL)
	a.TopicService = services.NewTopicService(ps, a.TopicCache)
	a.EntryService = services.NewEntryService(ps, ps)
	a.CategorizationService = services.NewCategorizationService(a.Oracle, ps, ps, ps, a.TopicCache)
	a.ChatService = services.NewChatService(a.Oracle, ps, ps, ps, a.JobClient, a.Config.Chat.ContextMessages)
}

// Close releases held connections. Safe to call on a partially built App.
func (a *App) Close() {
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			log.Warnf("close job client: %v", err)
		}
	}
	if a.PrimaryStore != nil {
		a.PrimaryStore.Close()
	}
}
