package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/99minutos/seedboard/internal/api"
	"github.com/99minutos/seedboard/internal/api/handler"
	"github.com/99minutos/seedboard/internal/api/middleware"
	"github.com/99minutos/seedboard/internal/core/domain"
	"github.com/99minutos/seedboard/internal/core/ports"
	"github.com/99minutos/seedboard/internal/core/service"
	"github.com/99minutos/seedboard/internal/infrastructure/config"
	"github.com/99minutos/seedboard/internal/infrastructure/db/file"
	"github.com/99minutos/seedboard/internal/infrastructure/db/memory"
	mongodb "github.com/99minutos/seedboard/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/seedboard/internal/infrastructure/db/redis"
	"github.com/99minutos/seedboard/internal/infrastructure/queue"
	"github.com/99minutos/seedboard/internal/infrastructure/ws"
	"github.com/99minutos/seedboard/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		Long:  "Run the HTTP and websocket server. All settings come from the environment.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

// backend bundles the persistence pieces selected by STORAGE.
type backend struct {
	roles  ports.RoleRepository
	board  ports.BoardRepository
	guard  ports.DuplicateGuard
	audit  ports.EventRepository
	checks []handler.DependencyCheck
	close  func(ctx context.Context)
	// maxPosts is the largest board the backend can store; 0 means unbounded.
	maxPosts int
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: !cfg.IsProduction(),
		Fields: map[string]string{"service": "seedboard", "instance": uuid.NewString()},
	})

	policy, err := config.LoadPolicy(cfg.PolicyFile, service.DefaultPolicy())
	if err != nil {
		return err
	}

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		be.close(closeCtx)
	}()

	policy, err = capPostLimit(policy, cfg.MaxPosts, be.maxPosts)
	if err != nil {
		return err
	}

	roles := service.NewRoleStore(be.roles, cfg.OperatorIdentities(), log.With().Str("component", "roles").Logger())
	if err := roles.Load(ctx); err != nil {
		return err
	}
	board := service.NewBoardState(be.board, cfg.InitialTopic, cfg.MaxPosts, log.With().Str("component", "board").Logger())
	if err := board.Load(ctx); err != nil {
		return err
	}
	if stored := board.Snapshot().MaxPosts; stored > policy.MaxPostsLimit {
		if _, err := board.SetMax(ctx, policy.MaxPostsLimit); err != nil {
			return err
		}
		log.Warn().Int("stored", stored).Int("limit", policy.MaxPostsLimit).Msg("stored post maximum above backend limit, lowered")
	}

	var svc *service.BoardService
	hub := ws.NewHub(func() domain.Event { return svc.SnapshotEvent() }, 0, log.With().Str("component", "viewers").Logger())

	sinks := []queue.Sink{hub}
	if be.audit != nil {
		sinks = append(sinks, queue.NewAuditSink(be.audit))
	}
	dispatcher := queue.NewDispatcher(cfg.BroadcastBuffer, log.With().Str("component", "dispatcher").Logger(), sinks...)
	svc = service.NewBoardService(roles, board, policy, dispatcher, be.guard, log.With().Str("component", "service").Logger())

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	dispatcher.Start(workerCtx)

	secret := cfg.SessionSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn().Msg("SESSION_SECRET not set, sessions will not survive a restart")
	}

	e := api.NewRouter(api.Deps{
		Service:  svc,
		Sessions: middleware.NewSessions(secret, 0, cfg.IsProduction()),
		Viewers:  hub,
		Checks:   be.checks,
		Log:      log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("storage", cfg.Storage).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			cancelWorkers()
			dispatcher.Wait()
			return fmt.Errorf("server: %w", err)
		}
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	hub.Close()
	cancelWorkers()
	dispatcher.Wait()
	return nil
}

func openBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	be := &backend{close: func(context.Context) {}}

	switch cfg.Storage {
	case config.StorageMemory:
		repo := memory.NewSnapshotRepository()
		be.roles, be.board = repo, repo

	case config.StorageFile:
		repo, err := file.NewSnapshotRepository(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		be.roles, be.board = repo, repo
		be.checks = append(be.checks, handler.DependencyCheck{
			Name: "data_dir",
			Ping: func(context.Context) error {
				_, err := os.Stat(cfg.DataDir)
				return err
			},
		})

	case config.StorageMongo:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			log.Warn().Err(err).Msg("failed to ensure mongo indexes")
		}
		repo := mongodb.NewSnapshotRepository(db)
		be.roles, be.board = repo, repo
		be.audit = mongodb.NewEventRepository(db)
		be.maxPosts = mongodb.MaxRetainedPosts
		be.checks = append(be.checks, handler.DependencyCheck{
			Name: "mongodb",
			Ping: func(ctx context.Context) error { return client.Ping(ctx, nil) },
		})
		be.close = func(ctx context.Context) { _ = client.Disconnect(ctx) }

	case config.StorageRedis:
		client, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return nil, err
		}
		repo := redisdb.NewSnapshotRepository(client, redisdb.DefaultPrefix)
		be.roles, be.board = repo, repo
		if cfg.DuplicateWindow > 0 {
			be.guard = redisdb.NewDuplicateGuard(client, redisdb.DefaultPrefix, cfg.DuplicateWindow)
		}
		be.checks = append(be.checks, handler.DependencyCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
		be.close = func(context.Context) { _ = client.Close() }
	}

	if be.guard == nil && cfg.DuplicateWindow > 0 {
		be.guard = memory.NewDuplicateGuard(cfg.DuplicateWindow)
	}
	return be, nil
}

// capPostLimit lowers the /max ceiling to what the backend can store.
func capPostLimit(policy service.Policy, initial, limit int) (service.Policy, error) {
	if limit <= 0 {
		return policy, nil
	}
	if initial > limit {
		return policy, fmt.Errorf("MAX_POSTS %d exceeds the %d posts this storage backend can hold", initial, limit)
	}
	if policy.MaxPostsLimit > limit {
		policy.MaxPostsLimit = limit
	}
	return policy, nil
}
