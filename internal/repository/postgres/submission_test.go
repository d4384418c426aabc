package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository/postgres"
)

func TestSubmissionRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewSubmissionRepository(db)
	now := time.Now()
	sub := &domain.Submission{
		Category:  domain.CategoryBlogPost,
		AuthorID:  4,
		Status:    domain.SubmissionStatusDraft,
		Payload:   domain.BlogPost{Title: "Reading Rooms", Slug: "reading-rooms", Content: "<p>hi</p>"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectQuery("INSERT INTO submissions").
		WithArgs(domain.CategoryBlogPost, int32(4), domain.SubmissionStatusDraft, sqlmock.AnyArg(), "reading-rooms", now, now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "version"}).AddRow(9, 1))

	require.NoError(t, repo.Create(context.Background(), sub))
	assert.Equal(t, int32(9), sub.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewSubmissionRepository(db)
	ctx := context.Background()
	now := time.Now()
	cols := []string{"id", "category", "author_id", "status", "payload", "reviewer_notes", "reviewed_by", "reviewed_at", "published_at", "created_at", "updated_at", "version"}

	t.Run("DecodesVariant", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM submissions WHERE id = \\$1").
			WithArgs(int32(2)).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(2, "testimonial", 4, "PENDING", []byte(`{"testimonial_text":"Great staff","rating":5}`), nil, nil, nil, nil, now, now, 1))

		sub, err := repo.GetByID(ctx, 2)
		require.NoError(t, err)
		p, ok := sub.Payload.(domain.Testimonial)
		require.True(t, ok)
		assert.Equal(t, 5, p.Rating)
		assert.Nil(t, sub.ReviewerNotes)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM submissions WHERE id = \\$1").
			WithArgs(int32(3)).
			WillReturnRows(sqlmock.NewRows(cols))

		_, err := repo.GetByID(ctx, 3)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepository_CountByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewSubmissionRepository(db)
	mock.ExpectQuery("SELECT category, count\\(\\*\\) FROM submissions WHERE status = \\$1 GROUP BY category").
		WithArgs(domain.SubmissionStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).
			AddRow("blog_post", 2).
			AddRow("testimonial", 1))

	counts, err := repo.CountByStatus(context.Background(), domain.SubmissionStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int32(2), counts[domain.CategoryBlogPost])
	assert.Equal(t, int32(1), counts[domain.CategoryTestimonial])
	assert.NoError(t, mock.ExpectationsWereMet())
}
