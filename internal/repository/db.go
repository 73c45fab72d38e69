package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/foliohq/folio/internal/cache"
	"github.com/foliohq/folio/internal/db"
	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/util"
	"github.com/foliohq/folio/internal/util/compression"
)

// DBPostRepository stores posts in a relational table with the cell list as
// compressed JSON. Reads are served from an in-memory cache refreshed after
// every write and by a background poll of the modification times; the sorted
// list is swapped atomically so readers never observe a partial refresh.
type DBPostRepository struct {
	postsCache       *cache.Cache[model.PostID, *model.Post]
	postsCacheSorted atomic.Pointer[[]model.Post]

	reloadNotifier   func(model.PostID)
	lastModifiedTime atomic.Pointer[time.Time]

	db         db.DB
	compressor compression.Compressor
}

func NewDBPostRepository(database db.DB, compressor compression.Compressor) *DBPostRepository {
	return &DBPostRepository{
		postsCache: cache.NewCache[model.PostID, *model.Post](),

		db: database,

		compressor: compressor,
	}
}

func (r *DBPostRepository) Init() error {
	posts, postMap, err := r.GetPosts()
	if err != nil {
		return fmt.Errorf("error initializing posts: %w", err)
	}

	r.postsCacheSorted.Store(&posts)
	r.postsCache.SetTo(postMap)

	go r.reloadLoop()
	return nil
}

func (r *DBPostRepository) SetReloadNotifier(notifier func(model.PostID)) {
	r.reloadNotifier = notifier
}

func (r *DBPostRepository) GetPostList() []model.Post {
	if posts := r.postsCacheSorted.Load(); posts != nil {
		return *posts
	}
	return nil
}

func (r *DBPostRepository) GetPosts() ([]model.Post, map[model.PostID]*model.Post, error) {
	rows, err := r.db.Query(`SELECT id, title, slug, slug_edited, status, cells, cells_hash, created_at, modified_at, user_id FROM posts`)
	if err != nil {
		return nil, nil, fmt.Errorf("error querying posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	postMap := make(map[model.PostID]*model.Post)
	var latestModTime *time.Time

	for rows.Next() {
		post, err := r.scanPost(rows)
		if err != nil {
			return nil, nil, err
		}

		if latestModTime == nil || post.UpdatedAt.After(*latestModTime) {
			t := post.UpdatedAt
			latestModTime = &t
		}

		posts = append(posts, *post)
		postMap[post.ID] = post
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating posts: %w", err)
	}

	r.lastModifiedTime.Store(latestModTime)

	sortPosts(posts)
	return posts, postMap, nil
}

func (r *DBPostRepository) GetPost(id model.PostID) (*model.Post, error) {
	if post, ok := r.postsCache.Get(id); ok {
		return post.Clone(), nil
	}
	return nil, model.ErrNotFound
}

func (r *DBPostRepository) GetPostBySlug(slug string) (*model.Post, error) {
	if post := postBySlug(r.GetPostList(), slug); post != nil {
		return post.Clone(), nil
	}
	return nil, model.ErrNotFound
}

func (r *DBPostRepository) SavePost(post *model.Post) error {
	if err := checkSlugConflict(r.GetPostList(), post); err != nil {
		return err
	}

	compressed, hash, err := r.encodeCells(post.Cells)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		`INSERT INTO posts (id, title, slug, slug_edited, status, cells, cells_hash, created_at, modified_at, user_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.Title, post.Slug, post.SlugEdited, post.Status, compressed, hash, post.CreatedAt, post.UpdatedAt, post.Owner,
	)
	if err != nil {
		return fmt.Errorf("error saving post: %w", err)
	}

	r.refreshCache()
	return nil
}

func (r *DBPostRepository) SetPostContent(post *model.Post) error {
	if _, ok := r.postsCache.Get(post.ID); !ok {
		return model.ErrNotFound
	}
	if err := checkSlugConflict(r.GetPostList(), post); err != nil {
		return err
	}

	compressed, hash, err := r.encodeCells(post.Cells)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		`UPDATE posts SET title = ?, slug = ?, slug_edited = ?, status = ?, cells = ?, cells_hash = ?, modified_at = ? WHERE id = ?`,
		post.Title, post.Slug, post.SlugEdited, post.Status, compressed, hash, post.UpdatedAt, post.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating post: %w", err)
	}

	r.refreshCache()

	if r.reloadNotifier != nil {
		go r.reloadNotifier(post.ID)
	}
	return nil
}

func (r *DBPostRepository) DeletePost(id model.PostID) error {
	res, err := r.db.Exec(`DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting post: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return model.ErrNotFound
	}

	r.refreshCache()
	return nil
}

func (r *DBPostRepository) encodeCells(cells []model.Cell) ([]byte, string, error) {
	raw, err := json.Marshal(cells)
	if err != nil {
		return nil, "", fmt.Errorf("error encoding cells: %w", err)
	}

	compressed, err := r.compressor.Compress(raw)
	if err != nil {
		return nil, "", fmt.Errorf("error compressing cells: %w", err)
	}

	return compressed, util.ContentHash(raw), nil
}

func (r *DBPostRepository) scanPost(rows *sql.Rows) (*model.Post, error) {
	var post model.Post
	var compressed []byte
	var cellsHash sql.NullString

	err := rows.Scan(&post.ID, &post.Title, &post.Slug, &post.SlugEdited, &post.Status, &compressed, &cellsHash, &post.CreatedAt, &post.UpdatedAt, &post.Owner)
	if err != nil {
		return nil, fmt.Errorf("error scanning post: %w", err)
	}

	raw, err := r.compressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("error decompressing cells: %w", err)
	}

	if err := json.Unmarshal(raw, &post.Cells); err != nil {
		return nil, fmt.Errorf("error decoding cells: %w", err)
	}

	return &post, nil
}

func (r *DBPostRepository) refreshCache() {
	posts, postMap, err := r.GetPosts()
	if err != nil {
		repoLogger.Error().Err(err).Msg("Error refreshing post cache")
		return
	}
	r.postsCacheSorted.Store(&posts)
	r.postsCache.SetTo(postMap)
}

// GetLatestModifiedTime does a lightweight check of the newest modification
// timestamp so the reload loop can skip full reloads.
func (r *DBPostRepository) GetLatestModifiedTime() (*time.Time, error) {
	var latestTimeStr sql.NullString
	row := r.db.Get().QueryRow(`SELECT MAX(modified_at) FROM posts`)
	err := row.Scan(&latestTimeStr)
	if err != nil {
		return nil, fmt.Errorf("error scanning latest modified time: %w", err)
	}

	if !latestTimeStr.Valid {
		return nil, nil
	}

	// The go-sqlite3 driver returns MAX() as a string, in one of a few
	// formats depending on how the value was written.
	timeFormats := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339Nano,
		time.RFC3339,
	}

	var parseErr error
	for _, format := range timeFormats {
		latestTime, err := time.Parse(format, latestTimeStr.String)
		if err == nil {
			return &latestTime, nil
		}
		parseErr = err
	}

	return nil, fmt.Errorf("error parsing latest modified time %q: %w", latestTimeStr.String, parseErr)
}

func (r *DBPostRepository) reloadLoop() {
	for {
		time.Sleep(10 * time.Second)

		latestTime, err := r.GetLatestModifiedTime()
		if err != nil {
			repoLogger.Error().Err(err).Msg("Error checking latest modification time")
			continue
		}

		if lastTime := r.lastModifiedTime.Load(); lastTime != nil && latestTime != nil && !latestTime.After(*lastTime) {
			continue
		}

		repoLogger.Debug().Msg("Posts may have changed, performing full reload")

		posts, postMap, err := r.GetPosts()
		if err != nil {
			repoLogger.Error().Err(err).Msg("Error reloading posts")
			continue
		}

		previous := r.GetPostList()
		cached := make(map[model.PostID]time.Time, len(previous))
		for i := range previous {
			cached[previous[i].ID] = previous[i].UpdatedAt
		}

		for i := range posts {
			if prev, exists := cached[posts[i].ID]; exists && posts[i].UpdatedAt.After(prev) {
				repoLogger.Info().
					Str("post_id", string(posts[i].ID)).
					Str("title", posts[i].Title).
					Msg("Post content changed, notifying")
				if r.reloadNotifier != nil {
					go r.reloadNotifier(posts[i].ID)
				}
			}
		}

		r.postsCacheSorted.Store(&posts)
		r.postsCache.SetTo(postMap)
	}
}
