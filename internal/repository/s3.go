package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/foliohq/folio/internal/cache"
	"github.com/foliohq/folio/internal/model"
)

const s3PostPrefix = "posts/"

// S3PostRepository stores one JSON object per post under posts/ in a bucket.
// The object listing is cached at startup and refreshed after every write;
// reads are served from the cache.
type S3PostRepository struct {
	client *s3.Client
	bucket string

	postsCache       *cache.Cache[model.PostID, *model.Post]
	postsCacheSorted atomic.Pointer[[]model.Post]

	reloadNotifier func(model.PostID)
}

func NewS3PostRepository(accessKeyID, accessKeySecret, baseEndpoint, bucket string) (*S3PostRepository, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, accessKeySecret, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing S3 client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(baseEndpoint)
	})

	return &S3PostRepository{
		client: client,
		bucket: bucket,

		postsCache: cache.NewCache[model.PostID, *model.Post](),
	}, nil
}

func (r *S3PostRepository) Init() error {
	posts, postMap, err := r.GetPosts()
	if err != nil {
		return fmt.Errorf("error initializing posts: %w", err)
	}

	r.postsCacheSorted.Store(&posts)
	r.postsCache.SetTo(postMap)
	return nil
}

func (r *S3PostRepository) SetReloadNotifier(notifier func(model.PostID)) {
	r.reloadNotifier = notifier
}

func (r *S3PostRepository) GetPostList() []model.Post {
	if posts := r.postsCacheSorted.Load(); posts != nil {
		return *posts
	}
	return nil
}

func (r *S3PostRepository) GetPosts() ([]model.Post, map[model.PostID]*model.Post, error) {
	ctx := context.Background()

	var posts []model.Post
	postMap := make(map[model.PostID]*model.Post)

	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(s3PostPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("error listing posts: %w", err)
		}

		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}

			post, err := r.readObject(ctx, key)
			if err != nil {
				return nil, nil, err
			}

			posts = append(posts, *post)
			postMap[post.ID] = post
		}
	}

	sortPosts(posts)
	return posts, postMap, nil
}

func (r *S3PostRepository) GetPost(id model.PostID) (*model.Post, error) {
	if post, ok := r.postsCache.Get(id); ok {
		return post.Clone(), nil
	}
	return nil, model.ErrNotFound
}

func (r *S3PostRepository) GetPostBySlug(slug string) (*model.Post, error) {
	if post := postBySlug(r.GetPostList(), slug); post != nil {
		return post.Clone(), nil
	}
	return nil, model.ErrNotFound
}

func (r *S3PostRepository) SavePost(post *model.Post) error {
	if err := checkSlugConflict(r.GetPostList(), post); err != nil {
		return err
	}
	if err := r.writeObject(post); err != nil {
		return err
	}

	r.refreshCache()
	return nil
}

func (r *S3PostRepository) SetPostContent(post *model.Post) error {
	if _, ok := r.postsCache.Get(post.ID); !ok {
		return model.ErrNotFound
	}
	if err := checkSlugConflict(r.GetPostList(), post); err != nil {
		return err
	}
	if err := r.writeObject(post); err != nil {
		return err
	}

	r.refreshCache()

	if r.reloadNotifier != nil {
		go r.reloadNotifier(post.ID)
	}
	return nil
}

func (r *S3PostRepository) DeletePost(id model.PostID) error {
	if _, ok := r.postsCache.Get(id); !ok {
		return model.ErrNotFound
	}

	_, err := r.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(s3PostKey(id)),
	})
	if err != nil {
		return fmt.Errorf("error deleting post: %w", err)
	}

	r.refreshCache()
	return nil
}

func (r *S3PostRepository) readObject(ctx context.Context, key string) (*model.Post, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("error reading post object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading post object %s: %w", key, err)
	}

	var post model.Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("error decoding post object %s: %w", key, err)
	}
	return &post, nil
}

func (r *S3PostRepository) writeObject(post *model.Post) error {
	data, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("error encoding post: %w", err)
	}

	_, err = r.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(s3PostKey(post.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("error writing post: %w", err)
	}
	return nil
}

func (r *S3PostRepository) refreshCache() {
	posts, postMap, err := r.GetPosts()
	if err != nil {
		repoLogger.Error().Err(err).Msg("Error refreshing post cache")
		return
	}
	r.postsCacheSorted.Store(&posts)
	r.postsCache.SetTo(postMap)
}

func s3PostKey(id model.PostID) string {
	return s3PostPrefix + string(id) + ".json"
}
