package postgres

import (
	"context"
	"fmt"

	"github.com/eventora/chat-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Insert(ctx context.Context, m *domain.Message) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content, message_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_read, created_at`,
		m.ConversationID, m.SenderID, m.Content, m.Type,
	).Scan(&m.ID, &m.IsRead, &m.CreatedAt)
}

// List pages through a conversation's messages, newest first, with the same
// cursor scheme the conversation list uses.
func (r *MessageRepository) List(ctx context.Context, conversationID, after string, limit int) ([]domain.Message, string, error) {
	limit = clampLimit(limit)
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}

	const q = `
		SELECT id, conversation_id, sender_id, content, message_type, is_read, created_at
		FROM messages
		WHERE conversation_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR created_at < $2
		    OR (created_at = $2 AND id < $3)
		  )
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, q, conversationID, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Type, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, "", err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}

// MarkRead flips every unread message not sent by readerID to read and
// reports how many rows changed. Zero means the caller should skip the
// read-receipt broadcast entirely.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	cmd, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE`,
		conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// CountUnread derives the unread count for one participant straight from
// storage. Always recomputed, never cached, so live badges cannot drift from
// the durable state.
func (r *MessageRepository) CountUnread(ctx context.Context, conversationID, userID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE`,
		conversationID, userID).Scan(&n)
	return n, err
}
