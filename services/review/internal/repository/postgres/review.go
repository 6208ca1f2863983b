package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/moroccoguide/platform/pkg/database"
	apperrors "github.com/moroccoguide/platform/pkg/errors"
	"github.com/moroccoguide/platform/services/review/internal/domain"
)

const uniqueViolation = "23505"

const reviewColumns = `id, target_type, target_id, user_id, rating, title, content, images,
	author_name, author_avatar, author_country, helpful, reported, created_at, updated_at`

const (
	lockDuplicateKeyQuery = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

	recentReviewExistsQuery = `
		SELECT EXISTS (
			SELECT 1 FROM reviews
			WHERE target_type = $1 AND target_id = $2 AND user_id = $3 AND created_at >= $4
		)`

	insertReviewQuery = `
		INSERT INTO reviews (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	getReviewQuery = `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	deleteReviewQuery = `DELETE FROM reviews WHERE id = $1`

	listByTargetQuery = `
		SELECT ` + reviewColumns + ` FROM reviews
		WHERE target_type = $1 AND target_id = $2
		ORDER BY created_at DESC, id DESC`

	listByUserQuery = `
		SELECT ` + reviewColumns + ` FROM reviews
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	incrementHelpfulQuery = `UPDATE reviews SET helpful = helpful + 1 WHERE id = $1 RETURNING helpful`

	markReportedQuery = `UPDATE reviews SET reported = TRUE WHERE id = $1`
)

// ReviewRepository stores reviews in PostgreSQL.
type ReviewRepository struct {
	db database.TxBeginner
}

// NewReviewRepository creates a repository over a pool (or pgxmock in tests).
func NewReviewRepository(db database.TxBeginner) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// CreateUnlessRecent serializes submissions for the same target and user with
// a transaction-scoped advisory lock, then checks the window and inserts.
func (r *ReviewRepository) CreateUnlessRecent(ctx context.Context, review *domain.Review, cutoff time.Time) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateReviewUnlessRecent", insertReviewQuery)
	defer func() { end(err) }()

	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockDuplicateKeyQuery, review.DuplicateKey()); err != nil {
			return fmt.Errorf("lock duplicate key: %w", err)
		}

		var exists bool
		if err := tx.QueryRow(ctx, recentReviewExistsQuery,
			string(review.TargetType), review.TargetID, review.UserID, cutoff,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check recent review: %w", err)
		}
		if exists {
			return apperrors.ErrAlreadyReviewed
		}

		images := review.Images
		if images == nil {
			images = []string{}
		}

		_, err := tx.Exec(ctx, insertReviewQuery,
			review.ID,
			string(review.TargetType),
			review.TargetID,
			review.UserID,
			review.Rating,
			review.Title,
			review.Content,
			images,
			review.User.Name,
			review.User.Avatar,
			review.User.Country,
			review.Helpful,
			review.Reported,
			review.CreatedAt,
			review.UpdatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return apperrors.Conflict("review id already exists")
			}
			return fmt.Errorf("insert review: %w", err)
		}
		return nil
	})
}

func (r *ReviewRepository) GetByID(ctx context.Context, id string) (_ *domain.Review, err error) {
	ctx, end := database.TraceQuery(ctx, "GetReview", getReviewQuery)
	defer func() { end(err) }()

	rv, err := scanReview(r.db.QueryRow(ctx, getReviewQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id string) (_ bool, err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteReview", deleteReviewQuery)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, deleteReviewQuery, id)
	if err != nil {
		return false, fmt.Errorf("delete review: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ReviewRepository) ListByTarget(ctx context.Context, target domain.Target, limit int) ([]domain.Review, error) {
	query, args := withLimit(listByTargetQuery, limit, string(target.Type), target.ID)
	return r.list(ctx, "ListReviewsByTarget", query, args...)
}

func (r *ReviewRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Review, error) {
	query, args := withLimit(listByUserQuery, limit, userID)
	return r.list(ctx, "ListReviewsByUser", query, args...)
}

func (r *ReviewRepository) IncrementHelpful(ctx context.Context, id string) (_ int, err error) {
	ctx, end := database.TraceQuery(ctx, "IncrementReviewHelpful", incrementHelpfulQuery)
	defer func() { end(err) }()

	var helpful int
	if err := r.db.QueryRow(ctx, incrementHelpfulQuery, id).Scan(&helpful); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFound("review", id)
		}
		return 0, fmt.Errorf("increment helpful: %w", err)
	}
	return helpful, nil
}

func (r *ReviewRepository) MarkReported(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceQuery(ctx, "MarkReviewReported", markReportedQuery)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, markReportedQuery, id)
	if err != nil {
		return fmt.Errorf("mark review reported: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}
	return nil
}

func (r *ReviewRepository) list(ctx context.Context, op, query string, args ...any) (_ []domain.Review, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0)
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, *rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}
	return reviews, nil
}

func withLimit(query string, limit int, args ...any) (string, []any) {
	if limit <= 0 {
		return query, args
	}
	args = append(args, limit)
	return query + "\n\t\tLIMIT $" + strconv.Itoa(len(args)), args
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var (
		rv         domain.Review
		targetType string
	)

	if err := row.Scan(
		&rv.ID,
		&targetType,
		&rv.TargetID,
		&rv.UserID,
		&rv.Rating,
		&rv.Title,
		&rv.Content,
		&rv.Images,
		&rv.User.Name,
		&rv.User.Avatar,
		&rv.User.Country,
		&rv.Helpful,
		&rv.Reported,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rv.TargetType = domain.TargetType(targetType)
	if rv.Images == nil {
		rv.Images = []string{}
	}
	return &rv, nil
}
