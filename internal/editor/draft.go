package editor

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/foliohq/folio/internal/db"
	"github.com/foliohq/folio/internal/model"
)

type DraftID model.PostID

// Draft is an unsaved editor buffer: the working post serialized as JSON.
// Drafts live outside the post store and never show up on the public site.
type Draft struct {
	ID      DraftID
	Content []byte

	Initialized bool
}

type DraftRepository interface {
	CreateDraft() (*Draft, error)
	SaveDraft(id DraftID, content []byte) error
	GetDraft(id DraftID) (*Draft, error)
	DeleteDraft(id DraftID) error
}

// MemoryDraftRepository keeps drafts in process memory; they do not survive a
// restart.
type MemoryDraftRepository struct {
	drafts sync.Map
}

func NewMemoryDraftRepository() *MemoryDraftRepository {
	return &MemoryDraftRepository{}
}

func (m *MemoryDraftRepository) CreateDraft() (*Draft, error) {
	id := DraftID(uuid.New().String())
	draft := &Draft{
		ID:          id,
		Content:     []byte{},
		Initialized: false,
	}
	m.drafts.Store(id, draft)
	return draft, nil
}

func (m *MemoryDraftRepository) SaveDraft(id DraftID, content []byte) error {
	if draft, ok := m.drafts.Load(id); ok {
		d := draft.(*Draft)
		d.Initialized = len(content) > 0
		d.Content = content
		return nil
	}

	if len(content) == 0 {
		return nil
	}

	m.drafts.Store(id, &Draft{
		ID:          id,
		Content:     content,
		Initialized: true,
	})
	return nil
}

func (m *MemoryDraftRepository) GetDraft(id DraftID) (*Draft, error) {
	if draft, ok := m.drafts.Load(id); ok {
		return draft.(*Draft), nil
	}
	return nil, fmt.Errorf("draft not found: %s", id)
}

func (m *MemoryDraftRepository) DeleteDraft(id DraftID) error {
	m.drafts.Delete(id)
	return nil
}

// DBDraftRepository stores drafts in the drafts table so unfinished work
// survives restarts.
type DBDraftRepository struct {
	db db.DB
}

func NewDBDraftRepository(database db.DB) *DBDraftRepository {
	return &DBDraftRepository{db: database}
}

func (r *DBDraftRepository) CreateDraft() (*Draft, error) {
	id := DraftID(uuid.New().String())

	_, err := r.db.Exec(`INSERT INTO drafts (id, content) VALUES (?, ?)`, id, []byte{})
	if err != nil {
		return nil, fmt.Errorf("error creating draft: %w", err)
	}

	return &Draft{ID: id, Content: []byte{}}, nil
}

func (r *DBDraftRepository) SaveDraft(id DraftID, content []byte) error {
	res, err := r.db.Exec(`UPDATE drafts SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return fmt.Errorf("error saving draft: %w", err)
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		if len(content) == 0 {
			return nil
		}
		_, err := r.db.Exec(`INSERT INTO drafts (id, content) VALUES (?, ?)`, id, content)
		if err != nil {
			return fmt.Errorf("error saving draft: %w", err)
		}
	}
	return nil
}

func (r *DBDraftRepository) GetDraft(id DraftID) (*Draft, error) {
	var draft Draft
	draft.ID = id

	row := r.db.Get().QueryRow(`SELECT content FROM drafts WHERE id = ?`, id)
	if err := row.Scan(&draft.Content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("draft not found: %s", id)
		}
		return nil, fmt.Errorf("error reading draft: %w", err)
	}

	draft.Initialized = len(draft.Content) > 0
	return &draft, nil
}

func (r *DBDraftRepository) DeleteDraft(id DraftID) error {
	if _, err := r.db.Exec(`DELETE FROM drafts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("error deleting draft: %w", err)
	}
	return nil
}
