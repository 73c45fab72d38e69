package repository

import (
	"sync"

	"github.com/foliohq/folio/internal/model"
)

// MemoryPostRepository keeps the aggregate in process memory. It backs the
// test suites and ephemeral deployments.
type MemoryPostRepository struct {
	mu    sync.RWMutex
	posts map[model.PostID]*model.Post

	reloadNotifier func(model.PostID)
}

func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{
		posts: make(map[model.PostID]*model.Post),
	}
}

func (r *MemoryPostRepository) Init() error {
	return nil
}

func (r *MemoryPostRepository) SetReloadNotifier(notifier func(model.PostID)) {
	r.reloadNotifier = notifier
}

func (r *MemoryPostRepository) GetPostList() []model.Post {
	posts, _, _ := r.GetPosts()
	return posts
}

func (r *MemoryPostRepository) GetPosts() ([]model.Post, map[model.PostID]*model.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	posts := make([]model.Post, 0, len(r.posts))
	postMap := make(map[model.PostID]*model.Post, len(r.posts))
	for id, post := range r.posts {
		clone := post.Clone()
		posts = append(posts, *clone)
		postMap[id] = clone
	}

	sortPosts(posts)
	return posts, postMap, nil
}

func (r *MemoryPostRepository) GetPost(id model.PostID) (*model.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, ok := r.posts[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return post.Clone(), nil
}

func (r *MemoryPostRepository) GetPostBySlug(slug string) (*model.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if post := postBySlug(r.snapshot(), slug); post != nil {
		return post.Clone(), nil
	}
	return nil, model.ErrNotFound
}

func (r *MemoryPostRepository) SavePost(post *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkSlugConflict(r.snapshot(), post); err != nil {
		return err
	}

	r.posts[post.ID] = post.Clone()
	return nil
}

func (r *MemoryPostRepository) SetPostContent(post *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[post.ID]; !ok {
		return model.ErrNotFound
	}
	if err := checkSlugConflict(r.snapshot(), post); err != nil {
		return err
	}

	r.posts[post.ID] = post.Clone()

	if r.reloadNotifier != nil {
		go r.reloadNotifier(post.ID)
	}
	return nil
}

func (r *MemoryPostRepository) DeletePost(id model.PostID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return model.ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

// snapshot returns the stored posts as values; callers must hold the lock.
func (r *MemoryPostRepository) snapshot() []model.Post {
	posts := make([]model.Post, 0, len(r.posts))
	for _, post := range r.posts {
		posts = append(posts, *post)
	}
	return posts
}
