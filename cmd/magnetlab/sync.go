package main

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/magnetlab/magnetlab/internal/config"
	"github.com/magnetlab/magnetlab/internal/crypto"
	"github.com/magnetlab/magnetlab/internal/store"
	"github.com/magnetlab/magnetlab/internal/store/postgres"
	syncpkg "github.com/magnetlab/magnetlab/internal/sync"
)

var (
	syncEmail string
	syncName  string
)

var syncCmd = &cobra.Command{
	Use:   "sync <funnel-page-slug>",
	Short: "Push one lead to a funnel page's integrations from the command line.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(args[0])
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncEmail, "email", "", "lead email address (required)")
	syncCmd.Flags().StringVar(&syncName, "name", "", "lead full name")
	_ = syncCmd.MarkFlagRequired("email")
}

func runSync(slug string) error {
	email := strings.TrimSpace(syncEmail)
	if _, err := mail.ParseAddress(email); err != nil {
		return &exitError{code: 2, err: fmt.Errorf("invalid email %q: %w", email, err)}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if len(cfg.EncryptionKey) == 0 {
		return errors.New("ENCRYPTION_KEY is required to read provider credentials")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	aead, err := crypto.NewAESGCM(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("initializing credential cipher: %w", err)
	}
	st := postgres.NewPostgresStore(pool, aead)

	page, err := st.GetFunnelPageBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &exitError{code: 2, err: fmt.Errorf("funnel page %q not found", slug)}
		}
		return err
	}

	syncer := syncpkg.NewLeadSyncer(st, cfg.SyncWorkers)
	syncer.SyncLead(ctx, page.ID, syncpkg.Lead{Email: email, Name: strings.TrimSpace(syncName)})

	if err := ctx.Err(); err != nil {
		return context.Canceled
	}
	return nil
}
