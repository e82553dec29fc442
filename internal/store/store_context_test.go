package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestAppendContextFact(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	mock.ExpectExec(`INSERT INTO conversation_context \(user_id, key, value\) VALUES \(\$1,\$2,\$3\)`).
		WithArgs("user-1", "names", []byte(`["Ana"]`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := st.AppendContextFact(context.Background(), "user-1", "names", []string{"Ana"}); err != nil {
		t.Fatalf("AppendContextFact: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecentContextFactsGlobalRecency(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	now := time.Now()
	// Two rows for the same key may both appear; recency is across all keys.
	mock.ExpectQuery(`SELECT id, user_id, key, value, created_at\s+FROM conversation_context WHERE user_id=\$1 ORDER BY created_at DESC, id DESC LIMIT \$2`).
		WithArgs("user-1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "key", "value", "created_at"}).
			AddRow(int64(3), "user-1", "dates", []byte(`["mañana"]`), now).
			AddRow(int64(2), "user-1", "names", []byte(`["Ana"]`), now.Add(-time.Minute)).
			AddRow(int64(1), "user-1", "names", []byte(`["Pedro"]`), now.Add(-2*time.Minute)))

	facts, err := st.RecentContextFacts(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("RecentContextFacts: %v", err)
	}
	if len(facts) != 3 {
		t.Fatalf("expected 3 facts, got %d", len(facts))
	}
	if facts[0].Key != "dates" || facts[0].Values[0] != "mañana" {
		t.Fatalf("unexpected newest fact: %+v", facts[0])
	}
	if facts[1].Key != "names" || facts[2].Key != "names" {
		t.Fatalf("expected duplicate keys preserved, got %+v", facts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecentTurnsNewestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	now := time.Now()
	mock.ExpectQuery(`SELECT id, user_id, user_message, ai_response, file_url, file_name, edited, created_at\s+FROM conversations WHERE user_id=\$1 ORDER BY created_at DESC, id DESC LIMIT \$2`).
		WithArgs("user-1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "user_message", "ai_response", "file_url", "file_name", "edited", "created_at"}).
			AddRow(int64(9), "user-1", "u9", "a9", nil, nil, false, now).
			AddRow(int64(8), "user-1", "u8", "a8", nil, nil, false, now.Add(-time.Minute)))

	turns, err := st.RecentTurns(context.Background(), "user-1", 5)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 2 || turns[0].ID != 9 || turns[1].ID != 8 {
		t.Fatalf("unexpected order: %+v", turns)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
