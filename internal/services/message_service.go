package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/isdelr/msgboard-be/internal/models"
)

// MessageServiceProvider defines the interface for message services.
type MessageServiceProvider interface {
	CreateMessage(ctx context.Context, userID int64, text string) (models.Message, error)
	GetMessageByID(ctx context.Context, id int64) (models.Message, error)
	ListMessages(ctx context.Context, offset, limit int) ([]models.Message, error)
	UpdateMessage(ctx context.Context, id int64, username, text string) (models.Message, error)
	DeleteMessage(ctx context.Context, id int64, username string) error
	MessagesAfter(ctx context.Context, afterID int64) ([]models.Message, error)
	LatestMessageID(ctx context.Context) (int64, error)
}

// MessageService provides business logic for message management.
type MessageService struct {
	db *sql.DB
	// pageLimitMax bounds the limit parameter of ListMessages.
	pageLimitMax int
}

// NewMessageService creates a new MessageService.
func NewMessageService(db *sql.DB, pageLimitMax int) *MessageService {
	return &MessageService{db: db, pageLimitMax: pageLimitMax}
}

// PageLimitMax reports the largest page size ListMessages will serve.
func (s *MessageService) PageLimitMax() int {
	return s.pageLimitMax
}

const messageColumns = `m.id, m.text, m.created_at, m.modified_at,
	u.id, u.username, u.bio, u.created_at`

const messageFrom = ` FROM messages m JOIN users u ON u.id = m.user_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (models.Message, error) {
	var msg models.Message
	var modified sql.NullTime
	var bio sql.NullString
	err := row.Scan(&msg.ID, &msg.Text, &msg.CreatedAt, &modified,
		&msg.User.ID, &msg.User.Username, &bio, &msg.User.CreatedAt)
	if err != nil {
		return models.Message{}, err
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	msg.User.CreatedAt = msg.User.CreatedAt.UTC()
	if modified.Valid {
		t := modified.Time.UTC()
		msg.ModifiedAt = &t
	}
	if bio.Valid {
		msg.User.Bio = &bio.String
	}
	return msg, nil
}

func collectMessages(rows *sql.Rows) ([]models.Message, error) {
	defer rows.Close()

	// Non-nil so an empty page encodes as [] rather than null.
	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CreateMessage inserts a new message for the given author.
func (s *MessageService) CreateMessage(ctx context.Context, userID int64, text string) (models.Message, error) {
	if text == "" {
		return models.Message{}, fmt.Errorf("%w: must specify text", ErrInvalid)
	}

	created := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO messages(user_id, text, created_at) VALUES(?, ?, ?)",
		userID, text, created)
	if err != nil {
		return models.Message{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Message{}, err
	}
	return s.GetMessageByID(ctx, id)
}

// GetMessageByID retrieves a single message with its author.
func (s *MessageService) GetMessageByID(ctx context.Context, id int64) (models.Message, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+messageColumns+messageFrom+" WHERE m.id = ?", id)
	msg, err := scanMessage(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Message{}, fmt.Errorf("%w: no message with id %d", ErrNotFound, id)
		}
		return models.Message{}, err
	}
	return msg, nil
}

// ListMessages returns one page of messages ordered by ascending id. An
// offset past the end of the board yields an empty page, not an error.
func (s *MessageService) ListMessages(ctx context.Context, offset, limit int) ([]models.Message, error) {
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: offset and limit must not be negative", ErrInvalid)
	}
	if limit > s.pageLimitMax {
		return nil, fmt.Errorf("%w: limit must not exceed %d", ErrInvalid, s.pageLimitMax)
	}
	if limit == 0 {
		limit = s.pageLimitMax
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+messageColumns+messageFrom+" ORDER BY m.id ASC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// MessagesAfter returns every message with id greater than afterID in
// ascending id order. This is the tail query the stream poller runs.
func (s *MessageService) MessagesAfter(ctx context.Context, afterID int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+messageColumns+messageFrom+" WHERE m.id > ? ORDER BY m.id ASC", afterID)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// LatestMessageID returns the highest assigned message id, or 0 when the
// board is empty.
func (s *MessageService) LatestMessageID(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) FROM messages").Scan(&id)
	return id, err
}

// UpdateMessage edits a message's text. The ownership check and the write
// run in one transaction so a concurrent edit or delete of the same
// message cannot slip between them.
func (s *MessageService) UpdateMessage(ctx context.Context, id int64, username, text string) (models.Message, error) {
	if text == "" {
		return models.Message{}, fmt.Errorf("%w: must specify text", ErrInvalid)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	author, err := messageAuthor(ctx, tx, id)
	if err != nil {
		return models.Message{}, err
	}
	if author != username {
		return models.Message{}, fmt.Errorf("%w: %s is not the author of message %d", ErrForbidden, username, id)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE messages SET text = ?, modified_at = ? WHERE id = ?",
		text, time.Now().UTC(), id); err != nil {
		return models.Message{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}

	return s.GetMessageByID(ctx, id)
}

// DeleteMessage removes a message, enforcing authorship the same way
// UpdateMessage does.
func (s *MessageService) DeleteMessage(ctx context.Context, id int64, username string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	author, err := messageAuthor(ctx, tx, id)
	if err != nil {
		return err
	}
	if author != username {
		return fmt.Errorf("%w: %s is not the author of message %d", ErrForbidden, username, id)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

func messageAuthor(ctx context.Context, tx *sql.Tx, id int64) (string, error) {
	var author string
	err := tx.QueryRowContext(ctx,
		"SELECT u.username FROM messages m JOIN users u ON u.id = m.user_id WHERE m.id = ?", id).
		Scan(&author)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("%w: no message with id %d", ErrNotFound, id)
		}
		return "", err
	}
	return author, nil
}
