package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	CategoryBlogPost       Category = "blog_post"
	CategoryBookSuggestion Category = "book_suggestion"
	CategoryTestimonial    Category = "testimonial"
)

func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(s)); c {
	case CategoryBlogPost, CategoryBookSuggestion, CategoryTestimonial:
		return c, nil
	}
	return "", Invalid("unknown content category %q", s)
}

// PublishesOnApprove reports whether approval lands on PUBLISHED. Only blog
// posts are published; suggestions and testimonials stop at APPROVED.
func (c Category) PublishesOnApprove() bool {
	return c == CategoryBlogPost
}

type SubmissionStatus string

const (
	SubmissionStatusDraft            SubmissionStatus = "DRAFT"
	SubmissionStatusPending          SubmissionStatus = "PENDING"
	SubmissionStatusApproved         SubmissionStatus = "APPROVED"
	SubmissionStatusPublished        SubmissionStatus = "PUBLISHED"
	SubmissionStatusRejected         SubmissionStatus = "REJECTED"
	SubmissionStatusChangesRequested SubmissionStatus = "CHANGES_REQUESTED"
)

func ParseSubmissionStatus(s string) (SubmissionStatus, error) {
	switch st := SubmissionStatus(strings.ToUpper(s)); st {
	case SubmissionStatusDraft, SubmissionStatusPending, SubmissionStatusApproved,
		SubmissionStatusPublished, SubmissionStatusRejected, SubmissionStatusChangesRequested:
		return st, nil
	}
	return "", Invalid("unknown submission status %q", s)
}

// Payload is the category-specific body of a submission. The set of
// implementations is closed: BlogPost, BookSuggestion and Testimonial.
type Payload interface {
	Category() Category
	Validate() error
}

type BlogPost struct {
	Title            string   `json:"title"`
	Slug             string   `json:"slug"`
	Excerpt          string   `json:"excerpt,omitempty"`
	Content          string   `json:"content"`
	Tags             []string `json:"tags,omitempty"`
	FeaturedImageURL string   `json:"featured_image_url,omitempty"`
}

func (BlogPost) Category() Category { return CategoryBlogPost }

func (p BlogPost) Validate() error {
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Content) == "" {
		return Invalid("title and content are required")
	}
	return nil
}

type BookSuggestion struct {
	Title         string `json:"title"`
	Authors       string `json:"authors"`
	ISBN          string `json:"isbn,omitempty"`
	Reason        string `json:"reason"`
	InterestLevel string `json:"interest_level,omitempty"`
}

func (BookSuggestion) Category() Category { return CategoryBookSuggestion }

func (p BookSuggestion) Validate() error {
	switch {
	case strings.TrimSpace(p.Title) == "":
		return Invalid("title is required")
	case strings.TrimSpace(p.Authors) == "":
		return Invalid("authors is required")
	case strings.TrimSpace(p.Reason) == "":
		return Invalid("reason is required")
	}
	return nil
}

type Testimonial struct {
	Text        string `json:"testimonial_text"`
	Rating      int    `json:"rating"`
	DisplayName string `json:"display_name,omitempty"`
}

func (Testimonial) Category() Category { return CategoryTestimonial }

func (p Testimonial) Validate() error {
	if strings.TrimSpace(p.Text) == "" {
		return Invalid("testimonial_text is required")
	}
	if p.Rating < 1 || p.Rating > 5 {
		return Invalid("rating must be between 1 and 5")
	}
	return nil
}

// DecodePayload unmarshals raw JSON into the payload type of category.
func DecodePayload(category Category, raw []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch category {
	case CategoryBlogPost:
		var v BlogPost
		err = json.Unmarshal(raw, &v)
		p = v
	case CategoryBookSuggestion:
		var v BookSuggestion
		err = json.Unmarshal(raw, &v)
		p = v
	case CategoryTestimonial:
		var v Testimonial
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, Invalid("unknown content category %q", category)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrValidation, err)
	}
	return p, nil
}

type Submission struct {
	ID            int32            `json:"id"`
	Category      Category         `json:"category"`
	AuthorID      int32            `json:"author_id"`
	Status        SubmissionStatus `json:"status"`
	Payload       Payload          `json:"payload"`
	ReviewerNotes *string          `json:"reviewer_notes,omitempty"`
	ReviewedBy    *int32           `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time       `json:"reviewed_at,omitempty"`
	PublishedAt   *time.Time       `json:"published_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Version       int32            `json:"version"`
}

// Title returns a human label for notifications.
func (s *Submission) Title() string {
	switch p := s.Payload.(type) {
	case BlogPost:
		return p.Title
	case BookSuggestion:
		return p.Title
	case Testimonial:
		return "your testimonial"
	}
	return fmt.Sprintf("submission %d", s.ID)
}

// CategoryRules are per-category moderation parameters held in the policy store.
type CategoryRules struct {
	Category             Category `json:"category"`
	PublishOnApprove     bool     `json:"publish_on_approve"`
	ApproveNotesRequired bool     `json:"approve_notes_required"`
	MaxBodyLength        int      `json:"max_body_length"`
}

// Validate rejects a rule row whose publish flag disagrees with its category.
func (r *CategoryRules) Validate() error {
	if r.PublishOnApprove != r.Category.PublishesOnApprove() {
		return fmt.Errorf("category rules for %s: publish_on_approve must be %t", r.Category, r.Category.PublishesOnApprove())
	}
	return nil
}

type SubmissionFilter struct {
	Category Category
	AuthorID *int32
	Status   SubmissionStatus
}

type ModerationStats struct {
	PendingCounts       map[Category]int32 `json:"pending_counts"`
	TotalPublishedPosts int32              `json:"total_published_posts"`
	ApprovalRate        float64            `json:"approval_rate"`
}
