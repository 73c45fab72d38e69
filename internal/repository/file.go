package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/foliohq/folio/internal/model"
)

// FilePostRepository stores every post in one flat JSON document. A missing
// or empty file reads as an empty site; every write rewrites the whole
// document atomically via a temp file rename.
type FilePostRepository struct {
	path string

	mu    sync.RWMutex
	posts map[model.PostID]*model.Post

	reloadNotifier func(model.PostID)
}

func NewFilePostRepository(path string) *FilePostRepository {
	return &FilePostRepository{
		path:  path,
		posts: make(map[model.PostID]*model.Post),
	}
}

func (r *FilePostRepository) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			repoLogger.Info().Str("path", r.path).Msg("Posts file not found, starting empty")
			return nil
		}
		return fmt.Errorf("error reading posts file: %w", err)
	}

	var posts []*model.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return fmt.Errorf("error parsing posts file: %w", err)
	}

	for _, post := range posts {
		r.posts[post.ID] = post
	}
	return nil
}

func (r *FilePostRepository) SetReloadNotifier(notifier func(model.PostID)) {
	r.reloadNotifier = notifier
}

func (r *FilePostRepository) GetPostList() []model.Post {
	posts, _, _ := r.GetPosts()
	return posts
}

func (r *FilePostRepository) GetPosts() ([]model.Post, map[model.PostID]*model.Post, error) {
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

func (r *FilePostRepository) GetPost(id model.PostID) (*model.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, ok := r.posts[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return post.Clone(), nil
}

func (r *FilePostRepository) GetPostBySlug(slug string) (*model.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if post := postBySlug(r.snapshot(), slug); post != nil {
		return post.Clone(), nil
	}
	return nil, model.ErrNotFound
}

func (r *FilePostRepository) SavePost(post *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkSlugConflict(r.snapshot(), post); err != nil {
		return err
	}

	r.posts[post.ID] = post.Clone()
	return r.flush()
}

func (r *FilePostRepository) SetPostContent(post *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.posts[post.ID]
	if !ok {
		return model.ErrNotFound
	}
	if err := checkSlugConflict(r.snapshot(), post); err != nil {
		return err
	}

	r.posts[post.ID] = post.Clone()
	if err := r.flush(); err != nil {
		// Failed writes leave the prior state visible.
		r.posts[post.ID] = prev
		return err
	}

	if r.reloadNotifier != nil {
		go r.reloadNotifier(post.ID)
	}
	return nil
}

func (r *FilePostRepository) DeletePost(id model.PostID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.posts[id]
	if !ok {
		return model.ErrNotFound
	}

	delete(r.posts, id)
	if err := r.flush(); err != nil {
		r.posts[id] = prev
		return err
	}
	return nil
}

func (r *FilePostRepository) snapshot() []model.Post {
	posts := make([]model.Post, 0, len(r.posts))
	for _, post := range r.posts {
		posts = append(posts, *post)
	}
	return posts
}

// flush rewrites the whole document; callers must hold the write lock.
func (r *FilePostRepository) flush() error {
	posts := r.snapshot()
	sortPosts(posts)

	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding posts file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".posts-*.json")
	if err != nil {
		return fmt.Errorf("error creating temp posts file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("error writing posts file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("error closing posts file: %w", err)
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("error replacing posts file: %w", err)
	}
	return nil
}
