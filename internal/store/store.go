package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type Store struct {
	DB *sql.DB
}

// Preference defaults applied when a user has no stored row.
const (
	DefaultModel    = "gpt-3.5-turbo"
	DefaultTone     = "formal"
	DefaultLanguage = "auto"
)

// Turn is one user message paired with its assistant response.
type Turn struct {
	ID          int64
	UserID      string
	UserMessage string
	AIResponse  string
	FileURL     *string
	FileName    *string
	Edited      bool
	CreatedAt   time.Time
}

// ContextFact is one appended row of extracted conversational context.
// Values is the deduplicated set stored for the row's key.
type ContextFact struct {
	ID        int64
	UserID    string
	Key       string
	Values    []string
	CreatedAt time.Time
}

type Achievement struct {
	UserID      string
	Name        string
	Description string
	AchievedAt  time.Time
}

// Task is a pending deferred notification. A row exists iff the task has
// neither fired nor been cancelled.
type Task struct {
	ID            int64
	UserID        string
	Description   string
	ScheduledTime time.Time
}

type Preferences struct {
	Model    string
	Tone     string
	Language string
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// User operations
func (s *Store) CreateUser(ctx context.Context, username, hash string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO users (username, password_hash) VALUES ($1,$2) RETURNING id`, username, hash).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE username=$1`, username).Scan(&id, &hash)
	return
}

// Preference operations
func (s *Store) GetPreferences(ctx context.Context, userID string) (Preferences, error) {
	p := Preferences{Model: DefaultModel, Tone: DefaultTone, Language: DefaultLanguage}
	err := s.DB.QueryRowContext(ctx, `SELECT model, tone, language FROM user_preferences WHERE user_id=$1`, userID).
		Scan(&p.Model, &p.Tone, &p.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return Preferences{}, err
	}
	return p, nil
}

func (s *Store) UpsertPreferences(ctx context.Context, userID string, p Preferences) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO user_preferences (user_id, model, tone, language)
VALUES ($1,$2,$3,$4)
ON CONFLICT (user_id) DO UPDATE SET model = EXCLUDED.model, tone = EXCLUDED.tone, language = EXCLUDED.language
`, userID, p.Model, p.Tone, p.Language)
	return err
}

// Conversation operations

// InsertTurn persists a completed turn. Only called after a successful model
// response; there is no partial-turn state.
func (s *Store) InsertTurn(ctx context.Context, userID, userMessage, aiResponse string, fileURL, fileName *string) (Turn, error) {
	t := Turn{UserID: userID, UserMessage: userMessage, AIResponse: aiResponse, FileURL: fileURL, FileName: fileName}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO conversations (user_id, user_message, ai_response, file_url, file_name)
VALUES ($1,$2,$3,$4,$5)
RETURNING id, created_at
`, userID, userMessage, aiResponse, fileURL, fileName).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return Turn{}, err
	}
	return t, nil
}

// RecentTurns returns the newest turns first, ties broken by id.
func (s *Store) RecentTurns(ctx context.Context, userID string, limit int) ([]Turn, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, user_message, ai_response, file_url, file_name, edited, created_at
FROM conversations WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTurns(rows)
}

// ListTurns returns the full conversation in chronological order.
func (s *Store) ListTurns(ctx context.Context, userID string) ([]Turn, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, user_message, ai_response, file_url, file_name, edited, created_at
FROM conversations WHERE user_id=$1 ORDER BY created_at ASC, id ASC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTurns(rows)
}

// ListAllTurns streams every persisted turn, oldest first. Used to rebuild
// the search index at startup.
func (s *Store) ListAllTurns(ctx context.Context) ([]Turn, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, user_message, ai_response, file_url, file_name, edited, created_at
FROM conversations ORDER BY created_at ASC, id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTurns(rows)
}

func scanTurns(rows *sql.Rows) ([]Turn, error) {
	var out []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.UserID, &t.UserMessage, &t.AIResponse, &t.FileURL, &t.FileName, &t.Edited, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTurnMessage rewrites the user message of an owned turn and marks it
// edited. Returns false when the row is absent or owned by someone else.
func (s *Store) UpdateTurnMessage(ctx context.Context, id int64, userID, newMessage string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
UPDATE conversations SET user_message=$1, edited=TRUE WHERE id=$2 AND user_id=$3
`, newMessage, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) DeleteTurn(ctx context.Context, id int64, userID string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM conversations WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) CountTurns(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE user_id=$1`, userID).Scan(&n)
	return n, err
}

// Context fact operations

// AppendContextFact inserts one fact row. Rows are append-only: a newer fact
// for the same key never overwrites an older one.
func (s *Store) AppendContextFact(ctx context.Context, userID, key string, values []string) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal context values: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO conversation_context (user_id, key, value) VALUES ($1,$2,$3)
`, userID, key, payload)
	return err
}

// RecentContextFacts returns the limit most-recent fact rows across all keys,
// newest first. Recency is global, not per key: a key may repeat, and an old
// value for one key can be pushed out by newer rows of a different key.
func (s *Store) RecentContextFacts(ctx context.Context, userID string, limit int) ([]ContextFact, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, key, value, created_at
FROM conversation_context WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ContextFact
	for rows.Next() {
		var f ContextFact
		var raw []byte
		if err := rows.Scan(&f.ID, &f.UserID, &f.Key, &raw, &f.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &f.Values); err != nil {
			return nil, fmt.Errorf("unmarshal context values: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Achievement operations

// GrantAchievement inserts the (user, name) row if absent. The ON CONFLICT
// guard makes the grant-once invariant hold under concurrent evaluations.
func (s *Store) GrantAchievement(ctx context.Context, userID, name, description string) (Achievement, bool, error) {
	var achievedAt time.Time
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO achievements (user_id, name, description)
VALUES ($1,$2,$3)
ON CONFLICT (user_id, name) DO NOTHING
RETURNING achieved_at
`, userID, name, description).Scan(&achievedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Achievement{}, false, nil
	}
	if err != nil {
		return Achievement{}, false, err
	}
	return Achievement{UserID: userID, Name: name, Description: description, AchievedAt: achievedAt}, true, nil
}

func (s *Store) ListAchievements(ctx context.Context, userID string) ([]Achievement, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT name, description, achieved_at FROM achievements WHERE user_id=$1 ORDER BY achieved_at DESC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Achievement
	for rows.Next() {
		a := Achievement{UserID: userID}
		if err := rows.Scan(&a.Name, &a.Description, &a.AchievedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Task operations

func (s *Store) CreateTask(ctx context.Context, userID, description string, scheduledTime time.Time) (Task, error) {
	t := Task{UserID: userID, Description: description, ScheduledTime: scheduledTime}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO tasks (user_id, description, scheduled_time) VALUES ($1,$2,$3) RETURNING id
`, userID, description, scheduledTime).Scan(&t.ID)
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, userID string) ([]Task, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, description, scheduled_time FROM tasks WHERE user_id=$1 ORDER BY scheduled_time ASC, id ASC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Description, &t.ScheduledTime); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTask removes the task iff it still exists and belongs to userID.
// This single conditional delete is the at-most-once guard shared by cancel
// and fire: whichever path gets RowsAffected()==1 owns the terminal
// transition, the loser sees false.
func (s *Store) DeleteTask(ctx context.Context, id int64, userID string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListPendingTasks returns every task still scheduled after the given time,
// soonest first. Used once at startup to re-arm timers.
func (s *Store) ListPendingTasks(ctx context.Context, after time.Time) ([]Task, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, description, scheduled_time FROM tasks WHERE scheduled_time > $1 ORDER BY scheduled_time ASC
`, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Description, &t.ScheduledTime); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
