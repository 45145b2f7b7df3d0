package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/eventora/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const conversationColumns = `id, client_id, provider_id, service_id, status, last_message_at, created_at`

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(&c.ID, &c.ClientID, &c.ProviderID, &c.ServiceID, &c.Status, &c.LastMessageAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepository) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, id)
	return scanConversation(row)
}

// FindActive locates the single ACTIVE conversation for the triple, if any.
func (r *ConversationRepository) FindActive(ctx context.Context, clientID, providerID string, serviceID *string) (*domain.Conversation, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE client_id=$1 AND provider_id=$2
		  AND service_id IS NOT DISTINCT FROM $3
		  AND status='ACTIVE'`,
		clientID, providerID, serviceID)
	return scanConversation(row)
}

// Create inserts a new ACTIVE conversation. A unique-violation on the
// (client, provider, service) index surfaces as ErrDuplicateConversation so
// the service can re-fetch the row a concurrent caller created.
func (r *ConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO conversations (client_id, provider_id, service_id, status)
		VALUES ($1, $2, $3, 'ACTIVE')
		RETURNING id, status, created_at`,
		c.ClientID, c.ProviderID, c.ServiceID,
	).Scan(&c.ID, &c.Status, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateConversation
		}
		return err
	}
	return nil
}

// ListActiveForUser returns the ACTIVE conversations the user participates in,
// most recently active first. Feeds the bulk room join at connect time and the
// conversation list endpoint.
func (r *ConversationRepository) ListActiveForUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE (client_id=$1 OR provider_id=$1) AND status='ACTIVE'
		ORDER BY last_message_at DESC NULLS LAST, created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.ClientID, &c.ProviderID, &c.ServiceID, &c.Status, &c.LastMessageAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ConversationRepository) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE conversations SET last_message_at=$2 WHERE id=$1`, id, at)
	return err
}
