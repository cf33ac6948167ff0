package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/model"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `
	id,
	seq,
	match_id,
	sender_id,
	message_type,
	text,
	media_url,
	client_sent_at,
	created_at,
	read_at`

// MessagePosition is a point in a conversation's (created_at, seq) order.
type MessagePosition struct {
	CreatedAt time.Time
	Seq       int64
}

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

// Create inserts the message; the store assigns seq.
func (r *MessageRepo) Create(ctx context.Context, tx pgx.Tx, msg model.Message) (model.Message, error) {
	if msg.ID == uuid.Nil || msg.MatchID == uuid.Nil || msg.SenderID == uuid.Nil || !msg.Type.Valid() {
		return model.Message{}, fmt.Errorf("invalid message payload")
	}
	if tx == nil {
		return model.Message{}, fmt.Errorf("transaction is required")
	}

	created, err := scanMessage(tx.QueryRow(ctx, `
INSERT INTO messages (
	id,
	match_id,
	sender_id,
	message_type,
	text,
	media_url,
	client_sent_at,
	created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING`+messageColumns,
		msg.ID, msg.MatchID, msg.SenderID, string(msg.Type), msg.Text, msg.MediaURL, msg.ClientSentAt, msg.CreatedAt,
	))
	if err != nil {
		return model.Message{}, fmt.Errorf("create message: %w", err)
	}
	return created, nil
}

// Last returns the position of the newest message in the match.
func (r *MessageRepo) Last(ctx context.Context, tx pgx.Tx, matchID uuid.UUID) (MessagePosition, bool, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return MessagePosition{}, false, err
	}

	var pos MessagePosition
	err = q.QueryRow(ctx, `
SELECT created_at, seq
FROM messages
WHERE match_id = $1
ORDER BY created_at DESC, seq DESC
LIMIT 1
`, matchID).Scan(&pos.CreatedAt, &pos.Seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MessagePosition{}, false, nil
		}
		return MessagePosition{}, false, fmt.Errorf("get last message: %w", err)
	}
	return pos, true, nil
}

func (r *MessageRepo) Get(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Message, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return model.Message{}, err
	}

	msg, err := scanMessage(q.QueryRow(ctx, `SELECT`+messageColumns+` FROM messages WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Message{}, ErrMessageNotFound
		}
		return model.Message{}, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// MarkRead stamps unread messages from the other participant up to through.
// Already-read rows are untouched.
func (r *MessageRepo) MarkRead(ctx context.Context, tx pgx.Tx, matchID, readerID uuid.UUID, through, now time.Time) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	tag, err := tx.Exec(ctx, `
UPDATE messages
SET read_at = $4
WHERE match_id = $1
	AND sender_id <> $2
	AND created_at <= $3
	AND read_at IS NULL
`, matchID, readerID, through, now)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListAfter returns up to limit messages strictly after pos in
// (created_at, seq) order. A nil pos starts from the beginning.
func (r *MessageRepo) ListAfter(ctx context.Context, tx pgx.Tx, matchID uuid.UUID, pos *MessagePosition, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	q, err := conn(r.pool, tx)
	if err != nil {
		return nil, err
	}

	var (
		afterAt  *time.Time
		afterSeq int64
	)
	if pos != nil {
		afterAt = &pos.CreatedAt
		afterSeq = pos.Seq
	}

	rows, err := q.Query(ctx, `
SELECT`+messageColumns+`
FROM messages
WHERE match_id = $1
	AND ($2::timestamptz IS NULL OR (created_at, seq) > ($2::timestamptz, $3::bigint))
ORDER BY created_at, seq
LIMIT $4
`, matchID, afterAt, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]model.Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

func scanMessage(row pgx.Row) (model.Message, error) {
	var (
		msg     model.Message
		msgType string
	)
	if err := row.Scan(
		&msg.ID,
		&msg.Seq,
		&msg.MatchID,
		&msg.SenderID,
		&msgType,
		&msg.Text,
		&msg.MediaURL,
		&msg.ClientSentAt,
		&msg.CreatedAt,
		&msg.ReadAt,
	); err != nil {
		return model.Message{}, err
	}
	msg.Type = enums.MessageType(msgType)
	return msg, nil
}
