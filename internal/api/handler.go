// Package api implements the JSON surface for posts: list and create on
// /api/posts, read/replace/delete on /api/posts/{id}, and the explicit
// publish/unpublish transitions. Successful responses carry the post
// aggregate as plain JSON; failures carry a {code, message} error envelope.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliohq/folio/internal/auth"
	"github.com/foliohq/folio/internal/config"
	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/repository"
)

var apiLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	apiLogger = l
}

// nowFunc is swapped in tests.
var nowFunc = time.Now

type Handler struct {
	repo repository.PostRepository

	// authoringEnabled is the site-level switch; every write additionally
	// needs an operator credential on the request.
	authoringEnabled bool
}

func NewHandler(repo repository.PostRepository, authoringEnabled bool) *Handler {
	return &Handler{
		repo:             repo,
		authoringEnabled: authoringEnabled,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/posts", h.handleCollection)
	mux.HandleFunc("/api/posts/{id}", h.handleItem)
	mux.HandleFunc("/api/posts/{id}/publish", h.handlePublish)
	mux.HandleFunc("/api/posts/{id}/unpublish", h.handleUnpublish)
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listPosts(w, r)
	case http.MethodPost:
		capability, err := auth.CapabilityFromContext(r.Context(), h.authoringEnabled)
		if err != nil {
			writeError(w, err)
			return
		}
		h.createPost(w, r, capability)
	default:
		writeErrorStatus(w, http.StatusMethodNotAllowed, config.HTTPErrMethodNotAllowed)
	}
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	id := model.PostID(strings.TrimSuffix(r.PathValue("id"), "/"))
	if id == "" {
		writeErrorStatus(w, http.StatusBadRequest, "Post ID is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getPost(w, id)
	case http.MethodPut:
		capability, err := auth.CapabilityFromContext(r.Context(), h.authoringEnabled)
		if err != nil {
			writeError(w, err)
			return
		}
		h.replacePost(w, r, id, capability)
	case http.MethodDelete:
		if _, err := auth.CapabilityFromContext(r.Context(), h.authoringEnabled); err != nil {
			writeError(w, err)
			return
		}
		h.deletePost(w, id)
	default:
		writeErrorStatus(w, http.StatusMethodNotAllowed, config.HTTPErrMethodNotAllowed)
	}
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, model.StatusPublished)
}

func (h *Handler) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, model.StatusDraft)
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	search := strings.ToLower(r.URL.Query().Get("search"))

	posts := h.repo.GetPostList()

	filtered := make([]model.Post, 0, len(posts))
	for _, post := range posts {
		if status != "" && string(post.Status) != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(post.Title), search) {
			continue
		}
		filtered = append(filtered, post)
	}

	writeJSON(w, http.StatusOK, filtered)
}

func (h *Handler) getPost(w http.ResponseWriter, id model.PostID) {
	post, err := h.repo.GetPost(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// postBody is the client-supplied half of the aggregate. Identity and
// timestamps are always server-assigned.
type postBody struct {
	Title  string           `json:"title"`
	Slug   string           `json:"slug"`
	Status model.PostStatus `json:"status"`
	Cells  []model.Cell     `json:"cells"`
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request, capability auth.Capability) {
	var body postBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if body.Cells == nil {
		body.Cells = []model.Cell{}
	}
	if err := model.ValidateCells(body.Cells); err != nil {
		writeError(w, err)
		return
	}

	now := nowFunc()
	post := model.NewPost(now)
	post.Owner = capability.Operator

	if err := post.Rename(body.Title, body.Slug, now); err != nil {
		writeError(w, err)
		return
	}
	post.UpdateCells(body.Cells, now)

	if body.Status != "" && body.Status != post.Status {
		if err := post.SetStatus(body.Status, now); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := h.repo.SavePost(post); err != nil {
		writeError(w, err)
		return
	}

	apiLogger.Info().
		Str("post_id", string(post.ID)).
		Str("operator", string(capability.Operator)).
		Msg("Post created")

	writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) replacePost(w http.ResponseWriter, r *http.Request, id model.PostID, capability auth.Capability) {
	var body postBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if body.Cells == nil {
		body.Cells = []model.Cell{}
	}
	if err := model.ValidateCells(body.Cells); err != nil {
		writeError(w, err)
		return
	}

	existing, err := h.repo.GetPost(id)
	if err != nil {
		writeError(w, err)
		return
	}

	now := nowFunc()
	post := existing.Clone()

	// An unchanged slug in the body is not a manual edit; auto-derivation
	// stays in effect until the slug actually diverges.
	explicitSlug := body.Slug
	if explicitSlug == existing.Slug {
		explicitSlug = ""
	}
	if err := post.Rename(body.Title, explicitSlug, now); err != nil {
		writeError(w, err)
		return
	}

	post.UpdateCells(body.Cells, now)

	if body.Status != "" && body.Status != post.Status {
		if err := post.SetStatus(body.Status, now); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := h.repo.SetPostContent(post); err != nil {
		writeError(w, err)
		return
	}

	apiLogger.Info().
		Str("post_id", string(post.ID)).
		Str("operator", string(capability.Operator)).
		Msg("Post updated")

	writeJSON(w, http.StatusOK, post)
}

func (h *Handler) deletePost(w http.ResponseWriter, id model.PostID) {
	if err := h.repo.DeletePost(id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"deleted": true,
	})
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, status model.PostStatus) {
	if r.Method != http.MethodPost {
		writeErrorStatus(w, http.StatusMethodNotAllowed, config.HTTPErrMethodNotAllowed)
		return
	}

	if _, err := auth.CapabilityFromContext(r.Context(), h.authoringEnabled); err != nil {
		writeError(w, err)
		return
	}

	id := model.PostID(r.PathValue("id"))
	post, err := h.repo.GetPost(id)
	if err != nil {
		writeError(w, err)
		return
	}

	now := nowFunc()
	if err := post.SetStatus(status, now); err != nil {
		writeError(w, err)
		return
	}

	if err := h.repo.SetPostContent(post); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorInfo `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		apiLogger.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError maps the error taxonomy onto HTTP statuses: validation 400,
// slug conflicts 409, missing posts 404, missing capability 401 and
// everything else an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	var validationErr *model.ValidationError
	var slugErr *model.SlugConflictError

	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, model.ErrIncompletePost),
		errors.Is(err, model.ErrInvalidSlug):
		writeErrorStatus(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &slugErr):
		writeErrorStatus(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeErrorStatus(w, http.StatusNotFound, "Post not found")
	case errors.Is(err, model.ErrUnauthorized):
		writeErrorStatus(w, http.StatusUnauthorized, "Authoring mode required")
	default:
		apiLogger.Error().Err(err).Msg("Persistence failure")
		writeErrorStatus(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeErrorStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: errorInfo{
		Code:    errorCode(status),
		Message: message,
	}})
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	default:
		return "ERROR"
	}
}
