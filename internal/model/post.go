package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

type PostID string

type UserID string

type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
)

func (s PostStatus) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// Post is the aggregate root: an ordered list of cells plus metadata. Cells
// have no identity outside their parent post.
type Post struct {
	ID     PostID     `json:"id"`
	Title  string     `json:"title"`
	Slug   string     `json:"slug"`
	Status PostStatus `json:"status"`
	Cells  []Cell     `json:"cells"`

	// SlugEdited records that the operator set the slug by hand; from then on
	// renames stop re-deriving it from the title.
	SlugEdited bool `json:"slugEdited,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Owner UserID `json:"authorId,omitempty"`
}

// NewPost creates an empty draft with a fresh id and both timestamps set to
// now.
func NewPost(now time.Time) *Post {
	now = now.UTC()
	return &Post{
		ID:        PostID(uuid.New().String()),
		Status:    StatusDraft,
		Cells:     []Cell{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UpdateCells replaces the cell list wholesale. The editor computes the full
// desired list; the aggregate does not diff.
func (p *Post) UpdateCells(cells []Cell, now time.Time) {
	p.Cells = CloneCells(cells)
	p.touch(now)
}

// SetStatus transitions between draft and published. Publishing an empty or
// untitled post is rejected: published content must be non-trivially
// complete.
func (p *Post) SetStatus(status PostStatus, now time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("unknown post status %q", status)
	}

	if status == StatusPublished {
		switch {
		case len(p.Cells) == 0:
			return fmt.Errorf("%w: post has no cells", ErrIncompletePost)
		case p.Title == "":
			return fmt.Errorf("%w: title is empty", ErrIncompletePost)
		case p.Slug == "":
			return fmt.Errorf("%w: slug is empty", ErrIncompletePost)
		}
	}

	p.Status = status
	p.touch(now)
	return nil
}

// Rename sets the title and, optionally, an explicit slug. An explicit slug
// permanently stops slug auto-derivation; while the slug was never edited by
// hand it is re-derived from the title.
func (p *Post) Rename(title, slug string, now time.Time) error {
	if slug != "" {
		if !ValidSlug(slug) {
			return fmt.Errorf("%w: %q", ErrInvalidSlug, slug)
		}
		p.Slug = slug
		p.SlugEdited = true
	} else if !p.SlugEdited {
		p.Slug = DeriveSlug(title)
	}

	p.Title = title
	p.touch(now)
	return nil
}

// Clone deep-copies the aggregate. Editing sessions work on clones so the
// persisted copy is never mutated before an explicit save.
func (p *Post) Clone() *Post {
	clone := *p
	clone.Cells = CloneCells(p.Cells)
	return &clone
}

func (p *Post) touch(now time.Time) {
	now = now.UTC()
	if now.Before(p.CreatedAt) {
		// UpdatedAt must never precede CreatedAt.
		now = p.CreatedAt
	}
	p.UpdatedAt = now
}

// DeriveSlug turns a title into a URL-safe slug: lowercase, drop everything
// outside [a-z0-9\s-], collapse whitespace runs into single hyphens.
//
//	DeriveSlug("My First Post!") == "my-first-post"
func DeriveSlug(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	slug := strings.Join(strings.Fields(b.String()), "-")

	// Hyphens that sat next to whitespace collapse into one.
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}

	return strings.Trim(slug, "-")
}

// ValidSlug reports whether s is already in canonical slug form.
func ValidSlug(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}
