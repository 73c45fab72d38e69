package editor

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/foliohq/folio/internal/config"
	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/render"
	"github.com/foliohq/folio/internal/theme"
)

// nowFunc is swapped in tests.
var nowFunc = time.Now

// Handler serves the editor pages and the live preview partial.
type Handler struct {
	drafts DraftRepository

	fs *embed.FS
}

func NewHandler(drafts DraftRepository, fs *embed.FS) *Handler {
	return &Handler{
		drafts: drafts,
		fs:     fs,
	}
}

type editorPageData struct {
	*model.PageData
	Post      *model.Post
	CellsJSON string
	CellTypes []model.CellType

	SaveURL    string
	SaveMethod string
}

// ServeNewDraftEditor opens the editor on a fresh (or cookie-resumed) draft.
func (h *Handler) ServeNewDraftEditor(w http.ResponseWriter, r *http.Request) {
	var draft *Draft
	if cookie, err := r.Cookie(config.CookieDraftID); err == nil && cookie.Value != "" {
		draft, _ = h.drafts.GetDraft(DraftID(cookie.Value))
	}

	if draft == nil {
		var err error
		draft, err = h.drafts.CreateDraft()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:  config.CookieDraftID,
			Value: string(draft.ID),
			Path:  "/",
		})
	}

	post := model.NewPost(nowFunc())
	post.ID = model.PostID(draft.ID)
	cellsJSON := "[]"
	if draft.Initialized {
		if err := json.Unmarshal(draft.Content, post); err == nil {
			if raw, err := json.Marshal(post.Cells); err == nil {
				cellsJSON = string(raw)
			}
		}
	}

	h.servePage(w, r, post, cellsJSON, "/api/posts", http.MethodPost)
}

// ServeEditPostEditor opens the editor on an existing post.
func (h *Handler) ServeEditPostEditor(w http.ResponseWriter, r *http.Request, post *model.Post) {
	raw, err := json.Marshal(post.Cells)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.servePage(w, r, post, string(raw), "/api/posts/"+string(post.ID), http.MethodPut)
}

// ServePreview renders the submitted working cells read-only. The body is
// the cell list as JSON in the "cells" form value. Unknown cell types render
// placeholders like everywhere else; rendering a preview never fails on
// content.
func (h *Handler) ServePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	var cells []model.Cell
	raw := r.FormValue("cells")
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			http.Error(w, "invalid cells payload", http.StatusBadRequest)
			return
		}
	}

	html := render.RenderCells(cells, theme.GetSyntaxThemeFromRequest(r))
	if len(cells) == 0 {
		html = template.HTML("<p>Add cells in the editor to see a preview here.</p>")
	}

	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request, post *model.Post, cellsJSON, saveURL, saveMethod string) {
	tmpl, err := template.ParseFS(h.fs,
		config.TemplatesLocalDir+"/"+config.TemplateLayout,
		config.TemplatesLocalDir+"/"+config.TemplateEditor,
	)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := editorPageData{
		PageData:   model.NewPageData(r),
		Post:       post,
		CellsJSON:  cellsJSON,
		CellTypes:  model.CellTypes,
		SaveURL:    saveURL,
		SaveMethod: saveMethod,
	}

	showToolbar := true
	data.IsEditorPage = &showToolbar
	data.ShowToolbar = &showToolbar

	if err := tmpl.ExecuteTemplate(w, config.TemplateLayout, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
