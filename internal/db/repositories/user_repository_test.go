package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/fiee/dorsale/internal/db/models"
	"github.com/jmoiron/sqlx"
)

var userCols = []string{"id", "username", "email", "password_hash", "is_active", "is_superuser", "created_at"}

func sampleUserRow() *sqlmock.Rows {
	return sqlmock.NewRows(userCols).
		AddRow(5, "alice", "alice@example.com", "$2a$10$hash", true, false, time.Now())
}

func newUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(sqlx.NewDb(db, "sqlmock")), mock
}

// ---------------------------------------------------------------------------
// GetUserByID / GetUserByUsername
// ---------------------------------------------------------------------------

func TestGetUserByID_Found(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE id").
		WithArgs(int64(5)).
		WillReturnRows(sampleUserRow())

	user, err := repo.GetUserByID(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil || user.Username != "alice" || !user.IsActive {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE id").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(userCols))

	user, err := repo.GetUserByID(context.Background(), 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user for not found, got %v", user)
	}
}

func TestGetUserByID_DBError(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE id").WillReturnError(errDB)

	if _, err := repo.GetUserByID(context.Background(), 5); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestGetUserByUsername_Found(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE username").
		WithArgs("alice").
		WillReturnRows(sampleUserRow())

	user, err := repo.GetUserByUsername(context.Background(), "alice")
	if err != nil || user == nil || user.ID != 5 {
		t.Fatalf("GetUserByUsername = %+v, %v", user, err)
	}
}

// ---------------------------------------------------------------------------
// CreateUser / ListUsers
// ---------------------------------------------------------------------------

func TestCreateUser_ReturnsID(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("INSERT INTO users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))

	u := &models.User{Username: "carol", IsActive: true}
	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID != 12 || u.CreatedAt.IsZero() {
		t.Errorf("unexpected user after create: %+v", u)
	}
}

func TestListUsers(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT.*FROM users ORDER BY username").
		WithArgs(10, 0).
		WillReturnRows(sampleUserRow())

	users, total, err := repo.ListUsers(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if total != 1 || len(users) != 1 {
		t.Errorf("total = %d, len = %d", total, len(users))
	}
}

// ---------------------------------------------------------------------------
// Groups
// ---------------------------------------------------------------------------

func TestGroupIDs(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT group_id FROM user_groups WHERE user_id").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"group_id"}).AddRow(2).AddRow(3))

	ids, err := repo.GroupIDs(context.Background(), 5)
	if err != nil {
		t.Fatalf("GroupIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Errorf("ids = %v", ids)
	}
}

func TestGroups(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT g.id, g.name.*FROM groups g").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(2, "design").AddRow(3, "print"))

	groups, err := repo.Groups(context.Background(), 5)
	if err != nil {
		t.Fatalf("Groups: %v", err)
	}
	if len(groups) != 2 || groups[1].Name != "print" {
		t.Errorf("groups = %+v", groups)
	}
	if ids := models.GroupIDs(groups); ids[0] != 2 {
		t.Errorf("GroupIDs = %v", ids)
	}
}

func TestGroupIDs_DBError(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT group_id").WillReturnError(errDB)

	if _, err := repo.GroupIDs(context.Background(), 5); err == nil {
		t.Error("expected error, got nil")
	}
}
