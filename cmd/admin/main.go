package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicshield/backend/internal/api/handler"
	"civicshield/backend/internal/authz"
	"civicshield/backend/internal/complaint"
	"civicshield/backend/internal/config"
	"civicshield/backend/internal/corpus"
	"civicshield/backend/internal/escalation"
	"civicshield/backend/internal/logger"
	"civicshield/backend/internal/models"
	"civicshield/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type env struct {
	cfg   *config.Config
	log   *zap.Logger
	store *storage.Service
}

// open connects to the database; redis is optional for the admin CLI.
func open(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	lg, err := logger.New(cfg.Log.Level, "console", "civicshield-admin")
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(cfg)
	if err != nil {
		return nil, err
	}
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	}
	return &env{cfg: cfg, log: lg, store: storage.NewStorageService(db, rdb)}, nil
}

func main() {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Maintenance commands for the civicshield backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(migrateCmd(), backfillCmd(), sweepCmd(), reconcileCmd(), tokenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		log.Fatalf("Error: %v", err)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and fast-forward the complaint counter",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			if err := storage.AutoMigrate(e.store.DB); err != nil {
				return err
			}
			next, err := e.store.MigrateCounter(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Migrations complete. Next complaint id: %s\n", models.FormatComplaintID(next))
			return nil
		},
	}
}

func backfillCmd() *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Compute embeddings for analysed complaints that have none",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			index := corpus.NewIndex(e.store, corpus.Options{
				TTL:           e.cfg.Embedding.TTL,
				VocabSize:     e.cfg.Embedding.VocabSize,
				ColdStartDims: e.cfg.Embedding.ColdStartDims,
				Threshold:     e.cfg.Embedding.Threshold,
				TopK:          e.cfg.Embedding.TopK,
			}, e.log, nil)
			n, err := index.BackfillAll(cmd.Context(), batch)
			if err != nil {
				return err
			}
			fmt.Printf("Stored %d embeddings.\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&batch, "batch", config.BackfillBatchSize, "complaints per batch")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one escalation sweep over overdue complaints",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			az, err := authz.New(cmd.Context())
			if err != nil {
				return err
			}
			svc := complaint.NewService(complaint.Deps{
				Storage:  e.store,
				Authz:    az,
				Deadline: escalation.Deadline,
				Language: e.cfg.HistoryLang,
				Log:      e.log,
			})
			s := escalation.NewScheduler(escalation.Deps{
				Store:     e.store,
				Escalator: svc,
				Locker:    e.store,
				Log:       e.log,
				LockTTL:   e.cfg.Escalation.LockTTL,
			})
			fmt.Printf("Escalated %d complaints.\n", s.Sweep(cmd.Context()))
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "List complaints stuck before analysis finished",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			stale, err := e.store.FindStale(cmd.Context(),
				[]models.Status{models.StatusSubmitted, models.StatusAIReview},
				time.Now().UTC().Add(-olderThan))
			if err != nil {
				return err
			}
			for _, c := range stale {
				fmt.Printf("%s\t%s\t%s\n", c.ComplaintID, c.Status, c.UpdatedAt.Format(time.RFC3339))
			}
			fmt.Printf("%d stale complaints. A running backend re-queues them on its next reconcile.\n", len(stale))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 10*time.Minute, "minimum time since the last update")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		actor models.Actor
		role  string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			auth, err := handler.NewAuthenticator(cfg.Auth.JWTSecret)
			if err != nil {
				return err
			}
			if actor.Role, err = models.ParseRole(role); err != nil {
				return err
			}
			token, err := auth.IssueToken(actor, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor.ID, "id", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "user", "user, admin or authority")
	cmd.Flags().StringVar(&actor.Name, "name", "", "display name")
	cmd.Flags().StringVar(&actor.Department, "department", "", "department of staff actors")
	cmd.Flags().StringVar(&actor.AnonID, "anon-id", "", "identity document of user actors")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
