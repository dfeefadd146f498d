package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/citywalk-core/internal/infrastructure/database"
)

// Repository defines persistence for conversations and chat messages.
type Repository interface {
	Create(ctx context.Context, c *Conversation) error
	Get(ctx context.Context, id int64) (*Conversation, error)
	List(ctx context.Context) ([]Conversation, error)
	Delete(ctx context.Context, id int64) error
	Exists(ctx context.Context, id int64) (bool, error)

	AddChat(ctx context.Context, m *ChatMessage) error
	ListChats(ctx context.Context, conversationID int64) ([]ChatMessage, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed conversation repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Create inserts c, filling in defaults, ID and timestamps.
func (r *SQLiteRepository) Create(ctx context.Context, c *Conversation) error {
	if c.LLMModel == "" {
		c.LLMModel = DefaultLLMModel
	}
	if c.Ext == nil {
		c.Ext = map[string]any{}
	}
	now := r.now().UTC().Truncate(time.Second)
	ts := database.FormatTime(now)

	const query = `INSERT INTO conversations (title, llm_model, ext, gmt_create, gmt_modified)
		VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, c.Title, c.LLMModel, database.EncodeJSON(c.Ext), ts, ts)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading conversation id: %w", err)
	}
	c.GmtCreate, c.GmtModified = now, now
	return nil
}

// Get returns a conversation with its chat messages, oldest first.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*Conversation, error) {
	const query = `SELECT id, title, llm_model, ext, gmt_create, gmt_modified
		FROM conversations WHERE id = ?`
	c, err := scanConversation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	chats, err := r.ListChats(ctx, id)
	if err != nil {
		return nil, err
	}
	c.ChatList = chats
	return c, nil
}

// List returns every conversation, newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Conversation, error) {
	const query = `SELECT id, title, llm_model, ext, gmt_create, gmt_modified
		FROM conversations ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	result := []Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return result, nil
}

// Delete removes a conversation. Chat messages and route plans cascade.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// AddChat appends a message and bumps the conversation's gmt_modified.
// Returns ErrConversationNotFound if the conversation does not exist.
func (r *SQLiteRepository) AddChat(ctx context.Context, m *ChatMessage) error {
	if m.Role == "" {
		m.Role = RoleUser
	}
	if m.Type == "" {
		m.Type = TypeText
	}
	if m.Ext == nil {
		m.Ext = map[string]any{}
	}
	now := r.now().UTC().Truncate(time.Second)
	ts := database.FormatTime(now)

	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE conversations SET gmt_modified = ? WHERE id = ?`, ts, m.ConversationID)
		if err != nil {
			return fmt.Errorf("touching conversation %d: %w", m.ConversationID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports rows affected
			return ErrConversationNotFound
		}

		const query = `INSERT INTO chat_messages
			(conversation_id, role, type, content, ext, gmt_create, gmt_modified)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
		res, err = tx.ExecContext(ctx, query,
			m.ConversationID, m.Role, m.Type, m.Content, database.EncodeJSON(m.Ext), ts, ts)
		if err != nil {
			return fmt.Errorf("inserting chat message: %w", err)
		}
		if m.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading chat message id: %w", err)
		}
		m.GmtCreate, m.GmtModified = now, now
		return nil
	})
}

// ListChats returns a conversation's messages in the order they were added.
// An unknown conversation yields an empty list.
func (r *SQLiteRepository) ListChats(ctx context.Context, conversationID int64) ([]ChatMessage, error) {
	const query = `SELECT id, conversation_id, role, type, content, ext, gmt_create, gmt_modified
		FROM chat_messages WHERE conversation_id = ? ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying chat messages: %w", err)
	}
	defer rows.Close()

	result := []ChatMessage{}
	for rows.Next() {
		var m ChatMessage
		var ext, created, modified string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Type, &m.Content,
			&ext, &created, &modified); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		m.Ext = database.DecodeMap(ext)
		m.GmtCreate = database.ParseTime(created)
		m.GmtModified = database.ParseTime(modified)
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chat messages: %w", err)
	}
	return result, nil
}

// Exists reports whether a conversation with id exists.
func (r *SQLiteRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking conversation %d: %w", id, err)
	}
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(s scanner) (*Conversation, error) {
	var c Conversation
	var ext, created, modified string
	if err := s.Scan(&c.ID, &c.Title, &c.LLMModel, &ext, &created, &modified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	c.Ext = database.DecodeMap(ext)
	c.GmtCreate = database.ParseTime(created)
	c.GmtModified = database.ParseTime(modified)
	return &c, nil
}
