package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/foliohq/folio/internal/auth"
	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/repository"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T) (*Handler, *http.ServeMux, repository.PostRepository) {
	t.Helper()

	repo := repository.NewMemoryPostRepository()
	handler := NewHandler(repo, true)

	mux := http.NewServeMux()
	handler.Register(mux)
	return handler, mux, repo
}

// doRequest performs a request as the operator unless userID is empty.
func doRequest(t *testing.T, mux *http.ServeMux, method, target, body string, userID model.UserID) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if userID != "" {
		req = req.WithContext(auth.ContextWithUserID(req.Context(), userID))
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodePost(t *testing.T, rec *httptest.ResponseRecorder) model.Post {
	t.Helper()

	var post model.Post
	if err := json.NewDecoder(rec.Body).Decode(&post); err != nil {
		t.Fatalf("Error decoding post response: %v", err)
	}
	return post
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var payload errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("Error decoding error response: %v", err)
	}
	return payload.Error.Code
}

func seedPost(t *testing.T, repo repository.PostRepository, title string, publish bool) *model.Post {
	t.Helper()

	post := model.NewPost(testNow)
	post.UpdateCells([]model.Cell{
		{ID: model.CellID(string(post.ID) + "-c1"), Type: model.CellText, Content: model.TextContent{Body: "hello"}},
	}, testNow)
	if err := post.Rename(title, "", testNow); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if publish {
		if err := post.SetStatus(model.StatusPublished, testNow); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	if err := repo.SavePost(post); err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}
	return post
}

func TestCreatePost(t *testing.T) {
	_, mux, repo := newTestHandler(t)

	body := `{"title":"My First Post!","cells":[{"id":"c1","type":"markdown","content":"Hello"}]}`
	rec := doRequest(t, mux, http.MethodPost, "/api/posts", body, "admin")

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	created := decodePost(t, rec)
	if created.Slug != "my-first-post" {
		t.Errorf("Expected derived slug, got %q", created.Slug)
	}
	if created.Status != model.StatusDraft {
		t.Errorf("Expected new posts to default to draft, got %s", created.Status)
	}
	if created.Owner != "admin" {
		t.Errorf("Expected owner admin, got %q", created.Owner)
	}

	stored, err := repo.GetPost(created.ID)
	if err != nil {
		t.Fatalf("Expected post persisted, got %v", err)
	}
	if content := stored.Cells[0].Content.(model.TextContent); content.Body != "Hello" {
		t.Errorf("Unexpected stored cell content: %+v", content)
	}
}

func TestCreatePostValidation(t *testing.T) {
	_, mux, _ := newTestHandler(t)

	testCases := []struct {
		name string
		body string
	}{
		{
			name: "Invalid JSON",
			body: `{"title":`,
		},
		{
			name: "Image Without URL",
			body: `{"title":"T","cells":[{"id":"c1","type":"image","content":{"alt":"a"}}]}`,
		},
		{
			name: "Unknown Cell Type",
			body: `{"title":"T","cells":[{"id":"c1","type":"gallery","content":{}}]}`,
		},
		{
			name: "Unregistered Component",
			body: `{"title":"T","cells":[{"id":"c1","type":"component","content":{"name":"Carousel"}}]}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, mux, http.MethodPost, "/api/posts", tc.body, "admin")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if code := decodeErrorCode(t, rec); code != "BAD_REQUEST" {
				t.Errorf("Expected BAD_REQUEST code, got %q", code)
			}
		})
	}
}

func TestWritesRequireOperator(t *testing.T) {
	_, mux, repo := newTestHandler(t)
	post := seedPost(t, repo, "Guarded", false)

	testCases := []struct {
		method string
		target string
		body   string
	}{
		{http.MethodPost, "/api/posts", `{"title":"x"}`},
		{http.MethodPut, "/api/posts/" + string(post.ID), `{"title":"x"}`},
		{http.MethodDelete, "/api/posts/" + string(post.ID), ""},
		{http.MethodPost, "/api/posts/" + string(post.ID) + "/publish", ""},
		{http.MethodPost, "/api/posts/" + string(post.ID) + "/unpublish", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			rec := doRequest(t, mux, tc.method, tc.target, tc.body, "")
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", rec.Code)
			}
			if code := decodeErrorCode(t, rec); code != "UNAUTHORIZED" {
				t.Errorf("Expected UNAUTHORIZED code, got %q", code)
			}
		})
	}
}

func TestAuthoringDisabledRejectsCredentialedWrites(t *testing.T) {
	repo := repository.NewMemoryPostRepository()
	handler := NewHandler(repo, false)
	mux := http.NewServeMux()
	handler.Register(mux)

	rec := doRequest(t, mux, http.MethodPost, "/api/posts", `{"title":"x"}`, "admin")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with authoring disabled, got %d", rec.Code)
	}
}

func TestGetPost(t *testing.T) {
	_, mux, repo := newTestHandler(t)
	post := seedPost(t, repo, "Readable", true)

	rec := doRequest(t, mux, http.MethodGet, "/api/posts/"+string(post.ID), "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	got := decodePost(t, rec)
	if got.ID != post.ID || got.Title != "Readable" {
		t.Errorf("Unexpected post: %+v", got)
	}

	rec = doRequest(t, mux, http.MethodGet, "/api/posts/missing", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing post, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "NOT_FOUND" {
		t.Errorf("Expected NOT_FOUND code, got %q", code)
	}
}

func TestListPostsFilters(t *testing.T) {
	_, mux, repo := newTestHandler(t)
	seedPost(t, repo, "Go Generics Deep Dive", true)
	seedPost(t, repo, "Kitchen Notes", false)

	decodeList := func(rec *httptest.ResponseRecorder) []model.Post {
		var posts []model.Post
		if err := json.NewDecoder(rec.Body).Decode(&posts); err != nil {
			t.Fatalf("Error decoding list: %v", err)
		}
		return posts
	}

	rec := doRequest(t, mux, http.MethodGet, "/api/posts", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if posts := decodeList(rec); len(posts) != 2 {
		t.Errorf("Expected 2 posts unfiltered, got %d", len(posts))
	}

	rec = doRequest(t, mux, http.MethodGet, "/api/posts?status=published", "", "")
	if posts := decodeList(rec); len(posts) != 1 || posts[0].Title != "Go Generics Deep Dive" {
		t.Errorf("Unexpected status filter result: %+v", posts)
	}

	rec = doRequest(t, mux, http.MethodGet, "/api/posts?search=kitchen", "", "")
	if posts := decodeList(rec); len(posts) != 1 || posts[0].Title != "Kitchen Notes" {
		t.Errorf("Unexpected search filter result: %+v", posts)
	}

	rec = doRequest(t, mux, http.MethodGet, "/api/posts?search=nothing-matches", "", "")
	if posts := decodeList(rec); len(posts) != 0 {
		t.Errorf("Expected empty result, got %+v", posts)
	}
}

func TestReplacePost(t *testing.T) {
	_, mux, repo := newTestHandler(t)
	post := seedPost(t, repo, "Original Title", false)

	body := `{"title":"Renamed Title","slug":"` + post.Slug + `","cells":[{"id":"c9","type":"quote","content":{"text":"new"}}]}`
	rec := doRequest(t, mux, http.MethodPut, "/api/posts/"+string(post.ID), body, "admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got := decodePost(t, rec)
	if got.Title != "Renamed Title" {
		t.Errorf("Expected renamed title, got %q", got.Title)
	}
	// The body echoed the old slug, so derivation follows the new title.
	if got.Slug != "renamed-title" {
		t.Errorf("Expected re-derived slug, got %q", got.Slug)
	}
	if len(got.Cells) != 1 || got.Cells[0].ID != "c9" {
		t.Errorf("Expected replaced cells, got %+v", got.Cells)
	}
}

func TestReplacePostExplicitSlug(t *testing.T) {
	_, mux, repo := newTestHandler(t)
	post := seedPost(t, repo, "Original Title", false)

	body := `{"title":"Original Title","slug":"hand-picked","cells":[{"id":"c1","type":"markdown","content":"x"}]}`
	rec := doRequest(t, mux, http.MethodPut, "/api/posts/"+string(post.ID), body, "admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got := decodePost(t, rec)
	if got.Slug != "hand-picked" || !got.SlugEdited {
		t.Errorf("Expected explicit slug to stick, got %q (%v)", got.Slug, got.SlugEdited)
	}
}

func TestDeletePost(t *testing.T) {
	_, mux, repo := newTestHandler(t)
	post := seedPost(t, repo, "Doomed", false)

	rec := doRequest(t, mux, http.MethodDelete, "/api/posts/"+string(post.ID), "", "admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, mux, http.MethodGet, "/api/posts/"+string(post.ID), "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
}

func TestPublishUnpublish(t *testing.T) {
	_, mux, repo := newTestHandler(t)
	post := seedPost(t, repo, "Launch", false)

	rec := doRequest(t, mux, http.MethodPost, "/api/posts/"+string(post.ID)+"/publish", "", "admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodePost(t, rec); got.Status != model.StatusPublished {
		t.Errorf("Expected published status, got %s", got.Status)
	}

	rec = doRequest(t, mux, http.MethodPost, "/api/posts/"+string(post.ID)+"/unpublish", "", "admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := decodePost(t, rec); got.Status != model.StatusDraft {
		t.Errorf("Expected draft status, got %s", got.Status)
	}
}

func TestPublishIncompletePost(t *testing.T) {
	_, mux, repo := newTestHandler(t)

	empty := model.NewPost(testNow)
	if err := repo.SavePost(empty); err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}

	rec := doRequest(t, mux, http.MethodPost, "/api/posts/"+string(empty.ID)+"/publish", "", "admin")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 publishing an empty post, got %d", rec.Code)
	}
}

func TestPublishSlugConflict(t *testing.T) {
	_, mux, repo := newTestHandler(t)
	seedPost(t, repo, "Launch", true)
	second := seedPost(t, repo, "Launch", false)

	rec := doRequest(t, mux, http.MethodPost, "/api/posts/"+string(second.ID)+"/publish", "", "admin")
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := decodeErrorCode(t, rec); code != "CONFLICT" {
		t.Errorf("Expected CONFLICT code, got %q", code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, mux, repo := newTestHandler(t)
	post := seedPost(t, repo, "Static", false)

	rec := doRequest(t, mux, http.MethodPatch, "/api/posts/"+string(post.ID), "", "admin")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}

	rec = doRequest(t, mux, http.MethodGet, "/api/posts/"+string(post.ID)+"/publish", "", "admin")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET publish, got %d", rec.Code)
	}
}

// TestAuthoringScenario walks the end-to-end flow: create, add a text
// cell, save, reload, and read the identical post back.
func TestAuthoringScenario(t *testing.T) {
	_, mux, repo := newTestHandler(t)

	body := `{"title":"Hello World","cells":[{"id":"c1","type":"markdown","content":"Hello"}]}`
	rec := doRequest(t, mux, http.MethodPost, "/api/posts", body, "admin")
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create failed with %d: %s", rec.Code, rec.Body.String())
	}
	created := decodePost(t, rec)

	// A fresh handler over the same store stands in for a reload.
	reloaded := NewHandler(repo, true)
	mux2 := http.NewServeMux()
	reloaded.Register(mux2)

	rec = doRequest(t, mux2, http.MethodGet, "/api/posts/"+string(created.ID), "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Read after reload failed with %d", rec.Code)
	}
	got := decodePost(t, rec)

	if got.Title != created.Title || got.Slug != created.Slug {
		t.Errorf("Post changed across reload: %+v vs %+v", got, created)
	}
	if len(got.Cells) != 1 {
		t.Fatalf("Expected 1 cell, got %d", len(got.Cells))
	}
	if content := got.Cells[0].Content.(model.TextContent); content.Body != "Hello" {
		t.Errorf("Cell content changed across reload: %+v", content)
	}
}
