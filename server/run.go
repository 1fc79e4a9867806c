// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"strategos/core/advisor/agent"
	"strategos/core/advisor/approval"
	"strategos/core/advisor/audit"
	"strategos/core/advisor/config"
	"strategos/core/advisor/llm"
	"strategos/core/advisor/llm/anthropic"
	"strategos/core/advisor/llm/bedrock"
	"strategos/core/advisor/llm/openai"
	"strategos/core/advisor/memory"
	"strategos/core/advisor/rag"
	"strategos/core/shared/logger"
)

// Run wires the whole service from configuration and serves HTTP until
// SIGINT/SIGTERM. Returned errors are startup failures; shutdown is
// graceful.
func Run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.New("advisord")
	ctx := context.Background()

	router, err := buildRouter(ctx, cfg)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Approval.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Approval.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisClient.Close()
	}

	var memStore memory.Store
	if redisClient != nil {
		memStore = memory.NewRedisStore(redisClient)
	} else {
		memStore = memory.NewInMemoryStore()
	}

	var trail audit.Trail
	if cfg.Audit.DatabaseURL != "" {
		pgTrail, err := audit.OpenPostgresTrail(cfg.Audit.DatabaseURL)
		if err != nil {
			return err
		}
		defer pgTrail.Close()
		trail = pgTrail
	} else {
		trail = audit.NewMemoryTrail()
	}

	var approvalStore approval.Store
	if redisClient != nil {
		approvalStore = approval.NewRedisStore(redisClient)
	} else {
		approvalStore = approval.NewMemoryStore()
	}
	workflow := approval.NewWorkflow(approvalStore, trail,
		approval.WithExpiration(cfg.Approval.Expiration.Std()))

	lifecycle, err := agent.NewLifecycle(agent.Deps{
		Memory:        memStore,
		Retriever:     rag.NewStaticRetriever(cfg.Corpus),
		Generator:     agent.NewRouterOptionGenerator(router),
		Trail:         trail,
		Policy:        cfg.DecisionPolicy(),
		ContextPolicy: cfg.ContextPolicy(),
	})
	if err != nil {
		return err
	}

	srv := New(lifecycle, workflow, router, trail, Options{
		JWTSecret:   cfg.Server.JWTSecret,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("", "listening", map[string]interface{}{"addr": cfg.Server.ListenAddr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("", "shutting down", map[string]interface{}{"signal": sig.String()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildRouter constructs the provider router with every configured
// adapter. API keys referencing Secrets Manager ARNs are resolved once
// at startup.
func buildRouter(ctx context.Context, cfg *config.Config) (*llm.Router, error) {
	taskPrefs := make(map[llm.TaskType][]string, len(cfg.Routing.TaskPreferences))
	for task, providers := range cfg.Routing.TaskPreferences {
		taskPrefs[llm.TaskType(task)] = providers
	}
	selector := llm.NewProviderSelector(
		llm.RoutingStrategy(cfg.Routing.Strategy), taskPrefs, cfg.Routing.CostOrder)

	router := llm.NewRouter(
		llm.WithSelector(selector),
		llm.WithCallTimeout(cfg.Routing.DefaultTimeout.Std()),
	)

	var resolver *llm.KeyResolver
	for _, p := range cfg.Providers {
		apiKey := p.APIKey
		if p.APIKeySecretARN != "" {
			if resolver == nil {
				var err error
				resolver, err = llm.NewKeyResolver(ctx, p.Region)
				if err != nil {
					return nil, fmt.Errorf("building secrets resolver: %w", err)
				}
			}
			var err error
			apiKey, err = resolver.Resolve(ctx, p.APIKeySecretARN)
			if err != nil {
				return nil, fmt.Errorf("resolving api key for provider %q: %w", p.Name, err)
			}
		}

		var provider llm.Provider
		switch p.Type {
		case config.ProviderTypeAnthropic:
			provider = anthropic.New(anthropic.Config{
				Name:    p.Name,
				APIKey:  apiKey,
				Model:   p.Model,
				BaseURL: p.BaseURL,
			})
		case config.ProviderTypeOpenAI:
			provider = openai.New(openai.Config{
				Name:    p.Name,
				APIKey:  apiKey,
				Model:   p.Model,
				BaseURL: p.BaseURL,
			})
		case config.ProviderTypeBedrock:
			var err error
			provider, err = bedrock.New(ctx, bedrock.Config{
				Name:   p.Name,
				Region: p.Region,
				Model:  p.Model,
			})
			if err != nil {
				return nil, fmt.Errorf("building bedrock provider %q: %w", p.Name, err)
			}
		}

		var addErr error
		if p.Timeout > 0 {
			addErr = router.AddProviderWithTimeout(provider, p.Timeout.Std())
		} else {
			addErr = router.AddProvider(provider)
		}
		if addErr != nil {
			return nil, fmt.Errorf("registering provider %q: %w", p.Name, addErr)
		}
	}
	return router, nil
}
