// Command seed populates the review database with demo reviews of Moroccan
// destinations and places. IDs are derived from the row index, so re-runs
// skip rows that already exist.
//
//	go run ./services/review/cmd/seed -n 2000
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/moroccoguide/platform/pkg/database"
	apperrors "github.com/moroccoguide/platform/pkg/errors"
	"github.com/moroccoguide/platform/pkg/logger"
	"github.com/moroccoguide/platform/services/review/internal/config"
	"github.com/moroccoguide/platform/services/review/internal/domain"
	"github.com/moroccoguide/platform/services/review/internal/repository/postgres"
	"github.com/moroccoguide/platform/services/review/migrations"
)

var seedNamespace = uuid.MustParse("6f1c7a52-8a8e-4d43-9d0e-3b6a0f0c9e11")

var destinations = []string{
	"marrakech", "fes", "chefchaouen", "essaouira", "merzouga",
	"ouarzazate", "tangier", "rabat", "casablanca", "agadir",
}

var places = []string{
	"jemaa-el-fnaa", "majorelle-garden", "bahia-palace", "ait-benhaddou",
	"hassan-ii-mosque", "chouara-tannery", "todra-gorge", "erg-chebbi",
	"kasbah-des-oudaias", "ouzoud-falls", "medersa-ben-youssef", "cap-spartel",
}

var titles = []string{
	"Unforgettable", "Worth the detour", "Crowded but magical", "A must see",
	"Beautiful at sunset", "Go early", "Hidden gem", "Overrated", "Loved it",
}

var names = []string{"Amina", "Youssef", "Salma", "Karim", "Lea", "Tom", "Hiba", "Omar", "Ines", "Noah"}

var countries = []string{"MA", "FR", "ES", "DE", "GB", "US", "IT", "NL"}

func main() {
	n := flag.Int("n", 1000, "number of reviews to generate")
	users := flag.Int("users", 200, "number of distinct authors")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("review-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresConfig(), log)
	if err != nil {
		log.Error("failed to connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	repo := postgres.NewReviewRepository(pool)
	rng := rand.New(rand.NewPCG(42, uint64(*n)))
	now := time.Now().UTC().Truncate(time.Microsecond)

	var inserted, blocked, existing int
	for i := range *n {
		review := generate(rng, i, *users, now)

		err := repo.CreateUnlessRecent(ctx, review, domain.WindowStart(review.CreatedAt))
		switch {
		case err == nil:
			inserted++
		case errors.Is(err, apperrors.ErrAlreadyReviewed):
			blocked++
		case errors.Is(err, apperrors.ErrConflict):
			existing++
		default:
			log.Error("seed insert failed", slog.Int("row", i), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	log.Info("seed complete",
		slog.Int("inserted", inserted),
		slog.Int("blocked_by_window", blocked),
		slog.Int("already_present", existing),
	)
}

// generate builds row i. Timestamps are spread over two years so some
// authors legitimately hold more than one review of a target.
func generate(rng *rand.Rand, i, users int, now time.Time) *domain.Review {
	target := domain.Target{Type: domain.TargetDestination, ID: destinations[rng.IntN(len(destinations))]}
	if rng.IntN(2) == 0 {
		target = domain.Target{Type: domain.TargetPlace, ID: places[rng.IntN(len(places))]}
	}

	user := rng.IntN(users)
	createdAt := now.Add(-time.Duration(rng.Int64N(int64(2 * domain.ReviewWindow))))

	return &domain.Review{
		ID:         uuid.NewSHA1(seedNamespace, fmt.Appendf(nil, "review:%d", i)).String(),
		TargetType: target.Type,
		TargetID:   target.ID,
		UserID:     uuid.NewSHA1(seedNamespace, fmt.Appendf(nil, "user:%d", user)).String(),
		Rating:     weightedRating(rng),
		Title:      titles[rng.IntN(len(titles))],
		Content:    fmt.Sprintf("Visited %s. %s.", target.ID, titles[rng.IntN(len(titles))]),
		Images:     []string{},
		User: domain.Author{
			Name:    names[user%len(names)],
			Country: countries[user%len(countries)],
		},
		Helpful:   rng.IntN(20),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// weightedRating skews towards 4 and 5 like real travel reviews.
func weightedRating(rng *rand.Rand) int {
	switch p := rng.IntN(100); {
	case p < 5:
		return 1
	case p < 12:
		return 2
	case p < 27:
		return 3
	case p < 60:
		return 4
	default:
		return 5
	}
}
