// Command import-markdown imports legacy markdown posts with TOML front
// matter into the configured sqlite store. Each file becomes a post with a
// single text cell; title, slug and dates come from the front matter when
// present.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/foliohq/folio/internal/config"
	"github.com/foliohq/folio/internal/db"
	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/repository"
	"github.com/foliohq/folio/internal/util"
	"github.com/foliohq/folio/internal/util/compression"
)

func main() {
	path := flag.String("path", "", "Path to the directory containing .md files")
	ownerID := flag.String("owner-id", "", "Owner user ID for the posts")
	publish := flag.Bool("publish", false, "Import posts as published instead of draft")
	flag.Parse()

	if *path == "" || *ownerID == "" {
		log.Fatal("Both --path and --owner-id flags are required")
	}

	configPath := os.Getenv("FOLIO_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	if err := config.LoadConfig(configPath); err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	database := db.NewSQLite(config.AppConfig.Content.SQLitePath)
	if err := database.InitDB(); err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}
	defer database.Close()

	repo := repository.NewDBPostRepository(database, compression.ForName(config.AppConfig.Content.Compression))
	if err := repo.Init(); err != nil {
		log.Fatalf("Error loading posts: %v", err)
	}

	files, err := os.ReadDir(*path)
	if err != nil {
		log.Fatalf("Error reading directory %s: %v", *path, err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".md") {
			continue
		}
		if err := importFile(*path, file, repo, model.UserID(*ownerID), *publish); err != nil {
			log.Printf("Error importing file %s: %v", file.Name(), err)
			continue
		}
		log.Printf("Successfully imported post from file: %s", file.Name())
	}
}

func importFile(dirPath string, file os.DirEntry, repo repository.PostRepository, owner model.UserID, publish bool) error {
	filePath := filepath.Join(dirPath, file.Name())

	content, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	title := strings.TrimSuffix(file.Name(), ".md")
	slug := ""
	body := content

	fileInfo, err := file.Info()
	if err != nil {
		return err
	}
	createdAt := fileInfo.ModTime().UTC()

	frontMatter, err := util.ParseFrontMatter(content)
	if err == nil {
		if frontMatter.Title != "" {
			title = frontMatter.Title
		}
		slug = frontMatter.Slug
		if !frontMatter.Date.IsZero() {
			createdAt = frontMatter.Date.UTC()
		}
		body = content[frontMatter.Consumed:]
	}

	post := model.NewPost(createdAt)
	post.Owner = owner
	post.UpdateCells([]model.Cell{newTextCell(string(body))}, createdAt)
	if err := post.Rename(title, slug, createdAt); err != nil {
		return fmt.Errorf("invalid slug %q: %w", slug, err)
	}

	if publish {
		if err := post.SetStatus(model.StatusPublished, time.Now().UTC()); err != nil {
			return err
		}
	}

	return repo.SavePost(post)
}

func newTextCell(body string) model.Cell {
	cell := model.NewCell(model.CellText)
	cell.Content = model.TextContent{Body: body}
	return cell
}
