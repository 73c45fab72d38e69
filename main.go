package main

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/foliohq/folio/internal/api"
	"github.com/foliohq/folio/internal/auth"
	"github.com/foliohq/folio/internal/cache"
	"github.com/foliohq/folio/internal/config"
	"github.com/foliohq/folio/internal/db"
	"github.com/foliohq/folio/internal/editor"
	"github.com/foliohq/folio/internal/logger"
	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/render"
	"github.com/foliohq/folio/internal/repository"
	"github.com/foliohq/folio/internal/sse"
	"github.com/foliohq/folio/internal/theme"
	"github.com/foliohq/folio/internal/util"
	"github.com/foliohq/folio/internal/util/compression"
)

//go:embed static/* templates/*
var content embed.FS

var mainLogger zerolog.Logger

var clients = sse.NewSSEClients()

var postRepository repository.PostRepository
var draftRepository editor.DraftRepository

var editorHandler *editor.Handler
var apiHandler *api.Handler

var authProvider auth.Provider

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file loaded")
	}

	configPath := os.Getenv("FOLIO_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	if err := config.LoadConfig(configPath); err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}

	mainLogger = logger.New(config.AppConfig.Logging.Level)
	setLoggers(mainLogger)

	database, err := initRepositories()
	if err != nil {
		mainLogger.Fatal().Err(err).Msg("Failed to initialize post store")
	}
	if database != nil {
		defer database.Close()
	}

	authProvider, err = newAuthProvider()
	if err != nil {
		mainLogger.Fatal().Err(err).Msg("Failed to initialize auth provider")
	}

	editorHandler = editor.NewHandler(draftRepository, &content)
	apiHandler = api.NewHandler(postRepository, config.AppConfig.Features.Authoring.Enabled)

	// Calculate the hash of static content
	static, _ := fs.Sub(content, config.StaticLocalDir)
	fs.WalkDir(static, ".", func(path string, d fs.DirEntry, err error) error {
		if !d.IsDir() {
			cache.SetStaticHash(config.StaticURLPath+path, util.ContentHash([]byte(path)))
		}
		return nil
	})

	mux := http.NewServeMux()

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nDisallow:"))
	})

	mux.HandleFunc("/theme/opposite-icon", func(w http.ResponseWriter, r *http.Request) {
		currTheme := r.URL.Query().Get("theme")
		if currTheme == "" {
			http.Error(w, "theme required", http.StatusBadRequest)
			return
		}

		w.Header().Set(config.HCType, config.CTypeHTML)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(theme.GetThemeIcon(currTheme)))
	})

	mux.Handle(config.StaticURLPath, http.StripPrefix(config.StaticURLPath, http.FileServer(http.FS(static))))
	mux.HandleFunc(config.PostsURLPath, servePost)
	mux.HandleFunc("/new/post", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:  config.CookieDraftID,
			Value: "",
			Path:  "/",
		})
		w.Header().Add(config.HHxRedirect, "/new/post/edit")
		http.Redirect(w, r, "/new/post/edit", http.StatusFound)
	})
	mux.HandleFunc("/theme/toggle", serveThemePostToggle)
	mux.HandleFunc("/syntax-theme/set", serveSyntaxThemePostSet)
	mux.HandleFunc("/syntax-theme/{theme}", serveSyntaxThemeGetTheme)
	mux.HandleFunc("/sse", eventsHandler)
	mux.HandleFunc("/", serveIndex)

	if config.AppConfig.Features.Authoring.Enabled {
		mux.HandleFunc("/new/post/edit", requireOperator(editorHandler.ServeNewDraftEditor))
		mux.HandleFunc("/edit/post/", serveEditPost)

		if config.AppConfig.Features.LivePreview.Enabled {
			mux.HandleFunc("/partials/preview", editorHandler.ServePreview)
		}
	}

	mux.HandleFunc("/webhook/user", authProvider.HandleWebhookUser)

	apiHandler.Register(mux)

	if ed25519Provider, ok := authProvider.(*auth.Ed25519AuthProvider); ok {
		auth.RegisterEd25519AuthRoutes(mux, ed25519Provider, &content)
	}

	go postRepository.Init()
	postRepository.SetReloadNotifier(handleReloadPost)

	securedMux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" { // Ignore robots.txt
			mux.ServeHTTP(w, r)
		} else {
			secureHeaders(mux.ServeHTTP)(w, r)
		}
	})

	authMux := authProvider.WithHeaderAuthorization()(securedMux)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authMux.ServeHTTP(w, r.WithContext(mainLogger.WithContext(r.Context())))
	})

	addr := config.AppConfig.Server.Host + ":" + config.AppConfig.Server.Port
	mainLogger.Info().Str("addr", addr).Msg("Starting server")
	if err := http.ListenAndServe(addr, cacheIt(handler)); err != nil {
		mainLogger.Fatal().Err(err).Msg("Server stopped")
	}
}

func setLoggers(l zerolog.Logger) {
	config.SetLogger(l.With().Str("component", "config").Logger())
	db.SetLogger(l.With().Str("component", "db").Logger())
	repository.SetLogger(l.With().Str("component", "repository").Logger())
	render.SetLogger(l.With().Str("component", "render").Logger())
	editor.SetLogger(l.With().Str("component", "editor").Logger())
	auth.SetLogger(l.With().Str("component", "auth").Logger())
	api.SetLogger(l.With().Str("component", "api").Logger())
}

// initRepositories builds the post and draft stores for the configured
// backend. The returned DB is non-nil only for the sqlite backend; the caller
// owns closing it.
func initRepositories() (db.DB, error) {
	content := config.AppConfig.Content

	switch content.Backend {
	case "sqlite":
		database := db.NewSQLite(content.SQLitePath)
		if err := database.InitDB(); err != nil {
			return nil, err
		}
		postRepository = repository.NewDBPostRepository(database, compression.ForName(content.Compression))
		draftRepository = editor.NewDBDraftRepository(database)
		return database, nil

	case "file":
		postRepository = repository.NewFilePostRepository(content.PostsFile)
		draftRepository = editor.NewMemoryDraftRepository()
		return nil, nil

	case "s3":
		repo, err := repository.NewS3PostRepository(
			os.Getenv("S3_ACCESS_KEY_ID"),
			os.Getenv("S3_ACCESS_KEY_SECRET"),
			content.S3.Endpoint,
			content.S3.Bucket,
		)
		if err != nil {
			return nil, err
		}
		postRepository = repo
		draftRepository = editor.NewMemoryDraftRepository()
		return nil, nil

	case "memory":
		postRepository = repository.NewMemoryPostRepository()
		draftRepository = editor.NewMemoryDraftRepository()
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown content backend: %q", content.Backend)
	}
}

func newAuthProvider() (auth.Provider, error) {
	switch config.AppConfig.Features.Authoring.Auth {
	case "clerk":
		return auth.NewClerkAuthProvider(os.Getenv("CLERK_API")), nil
	default:
		return auth.NewEd25519AuthProvider(
			os.Getenv("ED25519_PUBKEY"),
			"Authorization",
			model.UserID("admin"),
		)
	}
}

// requireOperator redirects to the login page when the request carries no
// operator credential. Browser navigations get a plain redirect; htmx
// requests get an Hx-Redirect header.
func requireOperator(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authProvider.GetUserIDFromSession(r); err != nil {
			target := "/auth/login?redirect=" + url.QueryEscape(r.URL.String())
			if r.Header.Get("Hx-Request") == "" {
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			w.Header().Add(config.HHxRedirect, target)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func serveEditPost(w http.ResponseWriter, r *http.Request) {
	userID, err := authProvider.GetUserIDFromSession(r)
	if err != nil {
		target := "/auth/login?redirect=" + url.QueryEscape(r.URL.String())
		if r.Header.Get("Hx-Request") == "" {
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		w.Header().Add(config.HHxRedirect, target)
		return
	}

	postID := strings.TrimPrefix(r.URL.Path, "/edit/post/")
	if postID == "" {
		http.NotFound(w, r)
		return
	}

	post, err := postRepository.GetPost(model.PostID(postID))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	// Check ownership
	if post.Owner != "" && userID != post.Owner {
		w.Header().Add(config.HHxRedirect, r.Header.Get("Referer"))
		return
	}

	editorHandler.ServeEditPostEditor(w, r, post)
}

func cacheIt(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "no-cache")
		w.Header().Set("Vary", "Cookie")

		// Add etag header to response if it's a static file
		if hash, ok := cache.GetStaticHash(r.URL.Path); ok {
			w.Header().Set(config.HCacheControl, "public, max-age=3600")
			w.Header().Set(config.HETag, hash)
		}

		h(w, r)
	}
}

func secureHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		h(w, r)
	}
}

// publishedPosts filters the repository list down to what the public site
// shows.
func publishedPosts() []model.Post {
	posts := postRepository.GetPostList()
	published := make([]model.Post, 0, len(posts))
	for _, post := range posts {
		if post.Status == model.StatusPublished {
			published = append(published, post)
		}
	}

	if perPage := config.AppConfig.Content.PostsPerPage; perPage > 0 && len(published) > perPage {
		published = published[:perPage]
	}
	return published
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	tmpl, err := template.ParseFS(content, config.TemplatesLocalDir+"/"+config.TemplateLayout, config.TemplatesLocalDir+"/"+config.TemplateIndex)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := struct {
		*model.PageData
		PostsPath string
		Posts     []model.Post
	}{
		PageData:  model.NewPageData(r),
		PostsPath: config.PostsURLPath,
		Posts:     publishedPosts(),
	}

	w.Header().Set(config.HETag, util.ContentHash([]byte(data.Theme+data.SyntaxTheme)))

	err = tmpl.ExecuteTemplate(w, config.TemplateLayout, data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func servePost(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimPrefix(r.URL.Path, config.PostsURLPath)
	slug = strings.TrimSuffix(slug, "/")
	if slug == "" {
		http.NotFound(w, r)
		return
	}

	post, err := postRepository.GetPostBySlug(slug)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	// Drafts are visible to the operator only.
	if post.Status != model.StatusPublished {
		if _, err := authProvider.GetUserIDFromSession(r); err != nil {
			http.NotFound(w, r)
			return
		}
	}

	syntaxTheme := theme.GetSyntaxThemeFromRequest(r)

	data := struct {
		*model.PageData
		Post    *model.Post
		Content template.HTML
	}{
		PageData: model.NewPageData(r),
		Post:     post,
		Content:  render.RenderPost(post, syntaxTheme),
	}

	tmpl, err := template.ParseFS(content, config.TemplatesLocalDir+"/"+config.TemplateLayout, config.TemplatesLocalDir+"/"+config.TemplatePost)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := tmpl.ExecuteTemplate(w, config.TemplateLayout, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func serveThemePostToggle(w http.ResponseWriter, r *http.Request) {
	currentTheme := theme.GetThemeFromRequest(r)

	newTheme := config.DefaultTheme
	if currentTheme == config.DarkTheme {
		newTheme = config.LightTheme
	}

	http.SetCookie(w, &http.Cookie{
		Name:  config.CookieTheme,
		Value: newTheme,
		Path:  "/",
	})

	syntaxTheme := theme.GetDefaultSyntaxTheme(newTheme)
	if cookie, err := r.Cookie(config.CookieSyntaxTheme); err == nil {
		syntaxTheme = cookie.Value
	}

	w.Header().Set("Hx-Trigger", fmt.Sprintf(`{"themeChanged":{"value":"%s","syntaxTheme":"%s"}}`, newTheme, syntaxTheme))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(theme.GetThemeIcon(newTheme)))
}

func serveSyntaxThemePostSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	currTheme := r.FormValue("syntax-theme-select")
	if currTheme == "" {
		http.Error(w, "theme required", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieSyntaxTheme,
		Value:    currTheme,
		Path:     "/",
		HttpOnly: true,
	})

	themeStyle := []byte(theme.GenerateSyntaxCSS(currTheme))
	w.Header().Set(config.HCType, config.CTypeCSS)
	w.Header().Set(config.HETag, util.ContentHash(themeStyle))
	w.WriteHeader(http.StatusOK)
	w.Write(themeStyle)
}

func serveSyntaxThemeGetTheme(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	currTheme := r.PathValue("theme")

	themeStyle := []byte(theme.GenerateSyntaxCSS(currTheme))
	w.Header().Set(config.HCType, config.CTypeCSS)
	w.Header().Set(config.HETag, util.ContentHash(themeStyle))
	w.WriteHeader(http.StatusOK)
	w.Write(themeStyle)
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	postID := r.URL.Query().Get("post")
	if postID == "" {
		http.Error(w, "Post parameter required", http.StatusBadRequest)
		return
	}

	w.Header().Set(config.HCType, "text/event-stream")
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Del("X-Content-Type-Options")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
	flusher.Flush()

	client := sse.NewClient(model.PostID(postID))

	clients.Add(client)

	mainLogger.Debug().Str("post_id", postID).Msg("New SSE client connected")

	defer func() {
		clients.Delete(client)
		mainLogger.Debug().Str("post_id", postID).Msg("SSE client disconnected")
	}()

	notify := r.Context().Done()
	for {
		select {
		case msg := <-client.Msg:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-notify:
			return
		}
	}
}

func handleReloadPost(postID model.PostID) {
	go clients.Broadcast(postID, "reload")
}
