package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/moroccoguide/platform/pkg/errors"
	"github.com/moroccoguide/platform/services/review/internal/domain"
)

var (
	testNow    = time.Date(2026, 2, 14, 18, 0, 0, 0, time.UTC)
	testCutoff = domain.WindowStart(testNow)
	columns    = []string{
		"id", "target_type", "target_id", "user_id", "rating", "title", "content", "images",
		"author_name", "author_avatar", "author_country", "helpful", "reported", "created_at", "updated_at",
	}
)

func newReviewTestFixture(t *testing.T) (*ReviewRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewReviewRepository(mock), mock
}

func sampleReview() *domain.Review {
	return &domain.Review{
		ID:         "rev-1",
		TargetType: domain.TargetDestination,
		TargetID:   "marrakech",
		UserID:     "user-1",
		Rating:     5,
		Title:      "Jemaa el-Fnaa at night",
		Content:    "Unforgettable.",
		Images:     []string{"https://img.example/a.jpg"},
		User:       domain.Author{Name: "Leila", Country: "MA"},
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
}

func addReviewRow(rows *pgxmock.Rows, rv *domain.Review) *pgxmock.Rows {
	return rows.AddRow(
		rv.ID, string(rv.TargetType), rv.TargetID, rv.UserID, rv.Rating, rv.Title, rv.Content, rv.Images,
		rv.User.Name, rv.User.Avatar, rv.User.Country, rv.Helpful, rv.Reported, rv.CreatedAt, rv.UpdatedAt,
	)
}

func expectLockAndCheck(mock pgxmock.PgxPoolIface, rv *domain.Review, exists bool) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock")).
		WithArgs("destination|marrakech|user-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(string(rv.TargetType), rv.TargetID, rv.UserID, testCutoff).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(exists))
}

// ---------------------------------------------------------------------------
// CreateUnlessRecent
// ---------------------------------------------------------------------------

func TestReviewRepository_CreateUnlessRecent_Inserts(t *testing.T) {
	repo, mock := newReviewTestFixture(t)
	defer mock.Close()

	rv := sampleReview()
	expectLockAndCheck(mock, rv, false)
	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(rv.ID, "destination", "marrakech", "user-1", 5, rv.Title, rv.Content, rv.Images,
			"Leila", "", "MA", 0, false, testNow, testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateUnlessRecent(context.Background(), rv, testCutoff))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_CreateUnlessRecent_Blocked(t *testing.T) {
	repo, mock := newReviewTestFixture(t)
	defer mock.Close()

	rv := sampleReview()
	expectLockAndCheck(mock, rv, true)
	mock.ExpectRollback()

	err := repo.CreateUnlessRecent(context.Background(), rv, testCutoff)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyReviewed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_CreateUnlessRecent_DuplicateID(t *testing.T) {
	repo, mock := newReviewTestFixture(t)
	defer mock.Close()

	rv := sampleReview()
	expectLockAndCheck(mock, rv, false)
	mock.ExpectExec("INSERT INTO reviews").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreateUnlessRecent(context.Background(), rv, testCutoff)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_CreateUnlessRecent_BeginFails(t *testing.T) {
	repo, mock := newReviewTestFixture(t)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := repo.CreateUnlessRecent(context.Background(), sampleReview(), testCutoff)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// GetByID
// ---------------------------------------------------------------------------

func TestReviewRepository_GetByID(t *testing.T) {
	repo, mock := newReviewTestFixture(t)
	defer mock.Close()

	rv := sampleReview()
	mock.ExpectQuery("SELECT (.+) FROM reviews WHERE id =").
		WithArgs("rev-1").
		WillReturnRows(addReviewRow(pgxmock.NewRows(columns), rv))

	got, err := repo.GetByID(context.Background(), "rev-1")
	require.NoError(t, err)
	assert.Equal(t, rv, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newReviewTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM reviews WHERE id =").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestReviewRepository_Delete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"existing", 1, true},
		{"missing", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newReviewTestFixture(t)
			defer mock.Close()

			mock.ExpectExec("DELETE FROM reviews WHERE id =").
				WithArgs("rev-1").
				WillReturnResult(pgxmock.NewResult("DELETE", tt.affected))

			existed, err := repo.Delete(context.Background(), "rev-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, existed)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestReviewRepository_ListByTarget_WithLimit(t *testing.T) {
	repo, mock := newReviewTestFixture(t)
	defer mock.Close()

	newer := sampleReview()
	older := sampleReview()
	older.ID = "rev-0"
	older.UserID = "user-2"
	older.Images = nil
	older.CreatedAt = testNow.Add(-time.Hour)

	rows := pgxmock.NewRows(columns)
	addReviewRow(rows, newer)
	addReviewRow(rows, older)

	mock.ExpectQuery("ORDER BY created_at DESC, id DESC\\s+LIMIT \\$3").
		WithArgs("destination", "marrakech", 2).
		WillReturnRows(rows)

	got, err := repo.ListByTarget(context.Background(), domain.Target{Type: domain.TargetDestination, ID: "marrakech"}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "rev-1", got[0].ID)
	assert.Equal(t, "rev-0", got[1].ID)
	assert.NotNil(t, got[1].Images)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListByTarget_NoLimit(t *testing.T) {
	repo, mock := newReviewTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("WHERE target_type = \\$1 AND target_id = \\$2").
		WithArgs("place", "p1").
		WillReturnRows(pgxmock.NewRows(columns))

	got, err := repo.ListByTarget(context.Background(), domain.Target{Type: domain.TargetPlace, ID: "p1"}, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListByUser_QueryError(t *testing.T) {
	repo, mock := newReviewTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("WHERE user_id = \\$1").
		WithArgs("user-1").
		WillReturnError(errors.New("connection reset by peer"))

	_, err := repo.ListByUser(context.Background(), "user-1", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list reviews")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Helpful / Report
// ---------------------------------------------------------------------------

func TestReviewRepository_IncrementHelpful(t *testing.T) {
	repo, mock := newReviewTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("UPDATE reviews SET helpful = helpful \\+ 1").
		WithArgs("rev-1").
		WillReturnRows(pgxmock.NewRows([]string{"helpful"}).AddRow(3))
	mock.ExpectQuery("UPDATE reviews SET helpful = helpful \\+ 1").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	n, err := repo.IncrementHelpful(context.Background(), "rev-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = repo.IncrementHelpful(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_MarkReported(t *testing.T) {
	repo, mock := newReviewTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE reviews SET reported = TRUE").
		WithArgs("rev-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE reviews SET reported = TRUE").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.MarkReported(context.Background(), "rev-1"))
	assert.ErrorIs(t, repo.MarkReported(context.Background(), "missing"), apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
