package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quizbot/internal/app"
	"quizbot/internal/app/observability"
	"quizbot/internal/bot"
	"quizbot/internal/db"
	"quizbot/internal/exam"
	"quizbot/internal/question"
	"quizbot/internal/report"
	"quizbot/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the HTTP surface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if configPath != "" {
		_ = os.Setenv("CONFIG_PATH", configPath)
	}
	cfg := app.LoadConfig()
	if cfg.BotToken == "" {
		return errors.New("BOT_TOKEN is not configured")
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, sqlDB, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if sqlDB != nil {
		defer sqlDB.Close()
	}

	var dialogs bot.DialogStore = bot.NewMemDialogs()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		dialogs = bot.NewRedisDialogs(client, cfg.DialogTTL)
		log.Printf("dialog state backed by redis at %s", cfg.RedisAddr)
	}

	client := bot.NewClient(cfg.BotToken)
	delivery := bot.NewDelivery(client)
	exams := exam.NewService(st, delivery, delivery)
	questions := question.NewService(st)
	reports := report.NewService(st)
	authority := bot.NewAuthority(cfg.SuperAdminID, cfg.AdminIDs, st)
	handler := bot.NewHandler(client, dialogs, authority, exams, questions, reports, st)

	collector := observability.NewCollector(sqlDB)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: app.NewRouter(cfg, handler, collector),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("quizbot http listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.WebhookURL != "" {
		g.Go(func() error {
			if err := client.SetWebhook(ctx, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
				return fmt.Errorf("set webhook: %w", err)
			}
			log.Printf("webhook registered at %s", cfg.WebhookURL)
			<-ctx.Done()
			return nil
		})
	} else {
		g.Go(func() error {
			log.Printf("long polling for updates")
			err := bot.NewPoller(client, handler).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStore picks the backend from config. Memory mode keeps everything
// process-local, for development without a database.
func openStore(ctx context.Context, cfg app.Config) (store.Store, *sql.DB, error) {
	if cfg.DBDriver == "memory" {
		log.Printf("using in-memory store; data is lost on restart")
		return store.NewMemStore(), nil, nil
	}

	conn, err := db.Open(ctx, cfg.DBDriver, cfg.DBDSN, db.Config{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifeMins) * time.Minute,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx, conn, cfg.DBDriver); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return store.NewSQLStore(conn), conn, nil
}
