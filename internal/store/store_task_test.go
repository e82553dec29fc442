package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestDeleteTaskRemovedRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	mock.ExpectExec(`DELETE FROM tasks WHERE id=\$1 AND user_id=\$2`).
		WithArgs(int64(7), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	removed, err := st.DeleteTask(context.Background(), 7, "user-1")
	if err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if !removed {
		t.Fatalf("expected removed=true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteTaskAlreadyGone(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	mock.ExpectExec(`DELETE FROM tasks WHERE id=\$1 AND user_id=\$2`).
		WithArgs(int64(7), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := st.DeleteTask(context.Background(), 7, "user-1")
	if err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if removed {
		t.Fatalf("expected removed=false for missing row")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListPendingTasks(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	now := time.Now()
	mock.ExpectQuery(`SELECT id, user_id, description, scheduled_time FROM tasks WHERE scheduled_time > \$1 ORDER BY scheduled_time ASC`).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "description", "scheduled_time"}).
			AddRow(int64(1), "user-1", "llamar a Ana", now.Add(time.Hour)).
			AddRow(int64(2), "user-2", "comprar pan", now.Add(2*time.Hour)))

	tasks, err := st.ListPendingTasks(context.Background(), now)
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != 1 || tasks[0].UserID != "user-1" {
		t.Fatalf("unexpected first task: %+v", tasks[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateTask(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	when := time.Now().Add(30 * time.Minute)
	mock.ExpectQuery(`INSERT INTO tasks \(user_id, description, scheduled_time\) VALUES \(\$1,\$2,\$3\) RETURNING id`).
		WithArgs("user-1", "regar las plantas", when).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	task, err := st.CreateTask(context.Background(), "user-1", "regar las plantas", when)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.ID != 42 || !task.ScheduledTime.Equal(when) {
		t.Fatalf("unexpected task: %+v", task)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
