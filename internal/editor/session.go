// Package editor holds the authoring session state machine and the draft
// store behind the in-browser editor.
package editor

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/repository"
)

var editorLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	editorLogger = l
}

type State string

const (
	StateViewing    State = "viewing"
	StateEditing    State = "editing"
	StatePreviewing State = "previewing"
)

var (
	ErrNoActiveEdit    = errors.New("no active editing session")
	ErrDeleteUnarmed   = errors.New("delete must be requested before it can be confirmed")
	ErrAlreadyEditing  = errors.New("an editing session is already active")
	ErrUnknownCellType = errors.New("unknown cell type")
	ErrNotPreviewing   = errors.New("no preview is open")
)

// Session is the authoring editor state machine. It owns a transient working
// copy of one post until an explicit save; the persisted copy is never
// touched before then. A session assumes a single operator: there is no
// locking and no conflict detection, and the last writer wins.
type Session struct {
	repo repository.PostRepository

	state           State
	post            *model.Post
	working         []model.Cell
	isNew           bool
	deleteRequested bool
}

func NewSession(repo repository.PostRepository) *Session {
	return &Session{
		repo:  repo,
		state: StateViewing,
	}
}

func (s *Session) State() State {
	return s.state
}

// Post returns the working copy of the aggregate, or nil outside an edit.
func (s *Session) Post() *model.Post {
	return s.post
}

// WorkingCells returns a copy of the working cell list.
func (s *Session) WorkingCells() []model.Cell {
	return model.CloneCells(s.working)
}

// Select loads a working copy of the post and transitions to Editing.
func (s *Session) Select(id model.PostID) error {
	if s.state != StateViewing {
		return ErrAlreadyEditing
	}

	post, err := s.repo.GetPost(id)
	if err != nil {
		return err
	}

	s.post = post.Clone()
	s.working = model.CloneCells(post.Cells)
	s.isNew = false
	s.deleteRequested = false
	s.state = StateEditing
	return nil
}

// Create starts editing a fresh empty draft. The draft is not persisted
// until the first save.
func (s *Session) Create(owner model.UserID, now time.Time) (*model.Post, error) {
	if s.state != StateViewing {
		return nil, ErrAlreadyEditing
	}

	post := model.NewPost(now)
	post.Owner = owner

	s.post = post
	s.working = []model.Cell{}
	s.isNew = true
	s.deleteRequested = false
	s.state = StateEditing
	return post, nil
}

// AddCell appends a new cell with the type's default content and a fresh id
// at the end of the working list.
func (s *Session) AddCell(t model.CellType) (model.Cell, error) {
	if s.state != StateEditing {
		return model.Cell{}, ErrNoActiveEdit
	}
	if !t.Known() {
		return model.Cell{}, fmt.Errorf("%w: %q", ErrUnknownCellType, t)
	}

	cell := model.NewCell(t)
	s.working = append(s.working, cell)
	return cell, nil
}

// UpdateCell replaces the content of the cell with that id. The cell's type
// is immutable here; use ChangeCellType to switch types.
func (s *Session) UpdateCell(id model.CellID, content model.CellContent) error {
	if s.state != StateEditing {
		return ErrNoActiveEdit
	}

	for i := range s.working {
		if s.working[i].ID != id {
			continue
		}
		if s.working[i].Type != contentType(content) {
			return fmt.Errorf("cell %s is a %s cell; changing type replaces the cell", id, s.working[i].Type)
		}
		s.working[i].Content = content
		return nil
	}
	return model.ErrNotFound
}

// ChangeCellType replaces the cell in place with a fresh cell of the new
// type: new id, default content, same position.
func (s *Session) ChangeCellType(id model.CellID, t model.CellType) (model.Cell, error) {
	if s.state != StateEditing {
		return model.Cell{}, ErrNoActiveEdit
	}
	if !t.Known() {
		return model.Cell{}, fmt.Errorf("%w: %q", ErrUnknownCellType, t)
	}

	for i := range s.working {
		if s.working[i].ID == id {
			cell := model.NewCell(t)
			s.working[i] = cell
			return cell, nil
		}
	}
	return model.Cell{}, model.ErrNotFound
}

// Reorder moves the cell with that id to newIndex, shifting the others. An
// out-of-bounds index or an absent id is a no-op.
func (s *Session) Reorder(id model.CellID, newIndex int) error {
	if s.state != StateEditing {
		return ErrNoActiveEdit
	}
	if newIndex < 0 || newIndex >= len(s.working) {
		return nil
	}

	from := -1
	for i := range s.working {
		if s.working[i].ID == id {
			from = i
			break
		}
	}
	if from == -1 || from == newIndex {
		return nil
	}

	cell := s.working[from]
	s.working = append(s.working[:from], s.working[from+1:]...)
	s.working = append(s.working[:newIndex], append([]model.Cell{cell}, s.working[newIndex:]...)...)
	return nil
}

// RemoveCell removes the cell with that id; absent ids are a no-op.
func (s *Session) RemoveCell(id model.CellID) error {
	if s.state != StateEditing {
		return ErrNoActiveEdit
	}

	for i := range s.working {
		if s.working[i].ID == id {
			s.working = append(s.working[:i], s.working[i+1:]...)
			return nil
		}
	}
	return nil
}

// Rename updates the working copy's title and slug (see model.Post.Rename).
func (s *Session) Rename(title, slug string, now time.Time) error {
	if s.state != StateEditing {
		return ErrNoActiveEdit
	}
	return s.post.Rename(title, slug, now)
}

// SetStatus updates the working copy's status; publish guards apply against
// the working cell list.
func (s *Session) SetStatus(status model.PostStatus, now time.Time) error {
	if s.state != StateEditing {
		return ErrNoActiveEdit
	}

	// The guard must see the cells the operator is about to save, not the
	// persisted ones.
	staged := s.post.Clone()
	staged.Cells = model.CloneCells(s.working)
	if err := staged.SetStatus(status, now); err != nil {
		return err
	}

	s.post.Status = staged.Status
	return nil
}

// Preview transitions to a read-only render of the working cells.
func (s *Session) Preview() error {
	if s.state != StateEditing {
		return ErrNoActiveEdit
	}
	s.state = StatePreviewing
	return nil
}

// ClosePreview returns from Previewing to Editing.
func (s *Session) ClosePreview() error {
	if s.state != StatePreviewing {
		return ErrNotPreviewing
	}
	s.state = StateEditing
	return nil
}

// Save validates the working cells and persists the post. On success the
// session returns to Viewing; on any failure it stays in Editing with the
// working copy intact and nothing persisted.
func (s *Session) Save(now time.Time) error {
	if s.state != StateEditing {
		return ErrNoActiveEdit
	}

	if err := model.ValidateCells(s.working); err != nil {
		return err
	}

	s.post.UpdateCells(s.working, now)

	var err error
	if s.isNew {
		err = s.repo.SavePost(s.post)
	} else {
		err = s.repo.SetPostContent(s.post)
	}
	if err != nil {
		return err
	}

	editorLogger.Info().
		Str("post_id", string(s.post.ID)).
		Str("title", s.post.Title).
		Msg("Post saved")

	s.reset()
	return nil
}

// Cancel discards the working copy unconditionally.
func (s *Session) Cancel() {
	s.reset()
}

// RequestDelete arms the two-step delete. Nothing is removed until
// ConfirmDelete.
func (s *Session) RequestDelete() error {
	if s.state != StateEditing {
		return ErrNoActiveEdit
	}
	s.deleteRequested = true
	return nil
}

// ConfirmDelete permanently removes the post. It must follow RequestDelete.
func (s *Session) ConfirmDelete() error {
	if s.state != StateEditing {
		return ErrNoActiveEdit
	}
	if !s.deleteRequested {
		return ErrDeleteUnarmed
	}

	if !s.isNew {
		if err := s.repo.DeletePost(s.post.ID); err != nil {
			return err
		}
	}

	editorLogger.Info().Str("post_id", string(s.post.ID)).Msg("Post deleted")
	s.reset()
	return nil
}

func (s *Session) reset() {
	s.state = StateViewing
	s.post = nil
	s.working = nil
	s.isNew = false
	s.deleteRequested = false
}

func contentType(content model.CellContent) model.CellType {
	switch content.(type) {
	case model.TextContent:
		return model.CellText
	case model.ImageContent:
		return model.CellImage
	case model.VideoContent:
		return model.CellVideo
	case model.QuoteContent:
		return model.CellQuote
	case model.CodeContent:
		return model.CellCode
	case model.ComponentContent:
		return model.CellComponent
	default:
		return ""
	}
}
