// Package postgres implements the store interface on pgx. Provider API keys
// are sealed with AES-GCM before they touch the database.
package postgres

import (
	"context"
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/magnetlab/magnetlab/internal/crypto"
	"github.com/magnetlab/magnetlab/internal/store"
)

type PostgresStore struct {
	db   *pgxpool.Pool
	aead cipher.AEAD
}

var _ store.Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store backed by the given pool. aead seals
// provider API keys at rest.
func NewPostgresStore(db *pgxpool.Pool, aead cipher.AEAD) *PostgresStore {
	return &PostgresStore{db: db, aead: aead}
}

func (s *PostgresStore) GetFunnelPageByID(ctx context.Context, id uuid.UUID) (*store.FunnelPage, error) {
	const query = `
		SELECT id, user_id, name, slug, created_at
		FROM funnel_pages
		WHERE id = $1`
	return s.scanFunnelPage(s.db.QueryRow(ctx, query, id))
}

func (s *PostgresStore) GetFunnelPageBySlug(ctx context.Context, slug string) (*store.FunnelPage, error) {
	const query = `
		SELECT id, user_id, name, slug, created_at
		FROM funnel_pages
		WHERE slug = $1`
	return s.scanFunnelPage(s.db.QueryRow(ctx, query, slug))
}

func (s *PostgresStore) scanFunnelPage(row pgx.Row) (*store.FunnelPage, error) {
	page := &store.FunnelPage{}
	err := row.Scan(&page.ID, &page.UserID, &page.Name, &page.Slug, &page.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query funnel page: %w", err)
	}
	return page, nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, arg store.CreateLeadParams) (*store.Lead, error) {
	const query = `
		INSERT INTO leads (id, funnel_page_id, email, name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, funnel_page_id, email, name, created_at`
	lead := &store.Lead{}
	err := s.db.QueryRow(ctx, query, uuid.New(), arg.FunnelPageID, arg.Email, arg.Name).Scan(
		&lead.ID, &lead.FunnelPageID, &lead.Email, &lead.Name, &lead.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert lead: %w", err)
	}
	return lead, nil
}

func (s *PostgresStore) UpsertUserIntegration(ctx context.Context, arg store.UpsertUserIntegrationParams) error {
	sealed, err := crypto.Encrypt(s.aead, []byte(arg.APIKey))
	if err != nil {
		return fmt.Errorf("encrypt api key: %w", err)
	}
	metadata, err := json.Marshal(arg.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	const query = `
		INSERT INTO user_integrations (user_id, provider, api_key_encrypted, metadata, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, provider)
		DO UPDATE SET api_key_encrypted = EXCLUDED.api_key_encrypted,
		              metadata = EXCLUDED.metadata,
		              updated_at = now()`
	if _, err := s.db.Exec(ctx, query, arg.UserID, arg.Provider, sealed, metadata); err != nil {
		return fmt.Errorf("upsert user integration: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserIntegration(ctx context.Context, userID uuid.UUID, provider string) (*store.UserIntegration, error) {
	const query = `
		SELECT user_id, provider, api_key_encrypted, metadata, updated_at
		FROM user_integrations
		WHERE user_id = $1 AND provider = $2`
	integ := &store.UserIntegration{}
	var sealed []byte
	var metadata []byte
	err := s.db.QueryRow(ctx, query, userID, provider).Scan(
		&integ.UserID, &integ.Provider, &sealed, &metadata, &integ.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user integration: %w", err)
	}
	apiKey, err := crypto.Decrypt(s.aead, sealed)
	if err != nil {
		return nil, fmt.Errorf("decrypt api key for %s/%s: %w", userID, provider, err)
	}
	integ.APIKey = string(apiKey)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &integ.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return integ, nil
}

func (s *PostgresStore) DeleteUserIntegration(ctx context.Context, userID uuid.UUID, provider string) error {
	const query = `DELETE FROM user_integrations WHERE user_id = $1 AND provider = $2`
	tag, err := s.db.Exec(ctx, query, userID, provider)
	if err != nil {
		return fmt.Errorf("delete user integration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateIntegrationMapping(ctx context.Context, arg store.CreateIntegrationMappingParams) (*store.IntegrationMapping, error) {
	const query = `
		INSERT INTO funnel_integrations (id, funnel_page_id, provider, list_id, tag_id, user_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id, funnel_page_id, provider, list_id, tag_id, user_id, is_active, created_at`
	mapping := &store.IntegrationMapping{}
	err := s.db.QueryRow(ctx, query, uuid.New(), arg.FunnelPageID, arg.Provider, arg.ListID, arg.TagID, arg.UserID).Scan(
		&mapping.ID, &mapping.FunnelPageID, &mapping.Provider, &mapping.ListID,
		&mapping.TagID, &mapping.UserID, &mapping.IsActive, &mapping.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert integration mapping: %w", err)
	}
	return mapping, nil
}

func (s *PostgresStore) DeactivateIntegrationMapping(ctx context.Context, id uuid.UUID, funnelPageID uuid.UUID) error {
	const query = `
		UPDATE funnel_integrations
		SET is_active = FALSE
		WHERE id = $1 AND funnel_page_id = $2`
	tag, err := s.db.Exec(ctx, query, id, funnelPageID)
	if err != nil {
		return fmt.Errorf("deactivate integration mapping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListActiveIntegrationMappings(ctx context.Context, funnelPageID uuid.UUID) ([]store.IntegrationMapping, error) {
	const query = `
		SELECT id, funnel_page_id, provider, list_id, tag_id, user_id, is_active, created_at
		FROM funnel_integrations
		WHERE funnel_page_id = $1 AND is_active = TRUE
		ORDER BY created_at`
	rows, err := s.db.Query(ctx, query, funnelPageID)
	if err != nil {
		return nil, fmt.Errorf("query integration mappings: %w", err)
	}
	defer rows.Close()

	var out []store.IntegrationMapping
	for rows.Next() {
		var mapping store.IntegrationMapping
		if err := rows.Scan(
			&mapping.ID, &mapping.FunnelPageID, &mapping.Provider, &mapping.ListID,
			&mapping.TagID, &mapping.UserID, &mapping.IsActive, &mapping.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan integration mapping: %w", err)
		}
		out = append(out, mapping)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate integration mappings: %w", err)
	}
	return out, nil
}
