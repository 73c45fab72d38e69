// Package repository persists the post aggregate behind a uniform interface.
// The concrete backing store (sqlite, flat JSON file, S3 or memory) is a
// configuration choice; the contract is the same for all of them.
package repository

import (
	"slices"

	"github.com/rs/zerolog"

	"github.com/foliohq/folio/internal/model"
)

var repoLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

// PostRepository is the persistence adapter for the post aggregate.
//
// SavePost inserts a new post; SetPostContent replaces an existing one.
// Both enforce slug uniqueness within the published namespace and return
// *model.SlugConflictError on a duplicate. Lookups return model.ErrNotFound
// for missing ids or slugs. Cell order is preserved exactly.
type PostRepository interface {
	Init() error

	GetPostList() []model.Post
	GetPosts() ([]model.Post, map[model.PostID]*model.Post, error)
	GetPost(id model.PostID) (*model.Post, error)
	GetPostBySlug(slug string) (*model.Post, error)

	SavePost(post *model.Post) error
	SetPostContent(post *model.Post) error
	DeletePost(id model.PostID) error

	// SetReloadNotifier sets a function that is called when a post's stored
	// content changes underneath the cache.
	SetReloadNotifier(notifier func(model.PostID))
}

// checkSlugConflict returns a conflict error when candidate would enter the
// published namespace with a slug some other published post already owns.
func checkSlugConflict(posts []model.Post, candidate *model.Post) error {
	if candidate.Status != model.StatusPublished || candidate.Slug == "" {
		return nil
	}

	for i := range posts {
		other := &posts[i]
		if other.ID == candidate.ID {
			continue
		}
		if other.Status == model.StatusPublished && other.Slug == candidate.Slug {
			return &model.SlugConflictError{Slug: candidate.Slug}
		}
	}
	return nil
}

// postBySlug resolves a slug lookup. A draft may legally share a published
// post's slug, so a published match always wins; a draft match is returned
// only when no published post owns the slug.
func postBySlug(posts []model.Post, slug string) *model.Post {
	var draft *model.Post
	for i := range posts {
		if posts[i].Slug != slug {
			continue
		}
		if posts[i].Status == model.StatusPublished {
			return &posts[i]
		}
		if draft == nil {
			draft = &posts[i]
		}
	}
	return draft
}

// sortPosts orders a post list by modification date, newest first.
func sortPosts(posts []model.Post) {
	slices.SortStableFunc(posts, func(a, b model.Post) int {
		return -a.UpdatedAt.Compare(b.UpdatedAt)
	})
}
