package editor

import (
	"errors"
	"testing"
	"time"

	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/repository"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newEditingSession(t *testing.T) (*Session, repository.PostRepository) {
	t.Helper()

	repo := repository.NewMemoryPostRepository()
	session := NewSession(repo)
	if _, err := session.Create("admin", testNow); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return session, repo
}

func TestSessionLifecycle(t *testing.T) {
	repo := repository.NewMemoryPostRepository()
	session := NewSession(repo)

	if session.State() != StateViewing {
		t.Fatalf("Expected initial state viewing, got %s", session.State())
	}

	post, err := session.Create("admin", testNow)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if session.State() != StateEditing {
		t.Errorf("Expected editing state, got %s", session.State())
	}

	// Creating is not persisting.
	if _, err := repo.GetPost(post.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected unsaved draft to be absent from the store, got %v", err)
	}

	if _, err := session.Create("admin", testNow); !errors.Is(err, ErrAlreadyEditing) {
		t.Errorf("Expected ErrAlreadyEditing, got %v", err)
	}
}

func TestSessionOperationsRequireActiveEdit(t *testing.T) {
	session := NewSession(repository.NewMemoryPostRepository())

	if _, err := session.AddCell(model.CellText); !errors.Is(err, ErrNoActiveEdit) {
		t.Errorf("Expected ErrNoActiveEdit from AddCell, got %v", err)
	}
	if err := session.Save(testNow); !errors.Is(err, ErrNoActiveEdit) {
		t.Errorf("Expected ErrNoActiveEdit from Save, got %v", err)
	}
	if err := session.RequestDelete(); !errors.Is(err, ErrNoActiveEdit) {
		t.Errorf("Expected ErrNoActiveEdit from RequestDelete, got %v", err)
	}
}

func TestSessionAddAndUpdateCell(t *testing.T) {
	session, _ := newEditingSession(t)

	cell, err := session.AddCell(model.CellQuote)
	if err != nil {
		t.Fatalf("AddCell failed: %v", err)
	}
	if cell.ID == "" || cell.Type != model.CellQuote {
		t.Errorf("Unexpected new cell: %+v", cell)
	}

	if err := session.UpdateCell(cell.ID, model.QuoteContent{Text: "Ship it"}); err != nil {
		t.Fatalf("UpdateCell failed: %v", err)
	}

	working := session.WorkingCells()
	if content := working[0].Content.(model.QuoteContent); content.Text != "Ship it" {
		t.Errorf("Expected updated content, got %+v", content)
	}

	// Updating with content of another type is rejected; the type is fixed.
	if err := session.UpdateCell(cell.ID, model.TextContent{Body: "no"}); err == nil {
		t.Error("Expected type mismatch error")
	}

	if err := session.UpdateCell("missing", model.QuoteContent{Text: "x"}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing cell, got %v", err)
	}
}

func TestSessionAddCellRejectsUnknownType(t *testing.T) {
	session, _ := newEditingSession(t)

	if _, err := session.AddCell("gallery"); !errors.Is(err, ErrUnknownCellType) {
		t.Errorf("Expected ErrUnknownCellType, got %v", err)
	}
}

func TestSessionChangeCellType(t *testing.T) {
	session, _ := newEditingSession(t)

	session.AddCell(model.CellText)
	quote, _ := session.AddCell(model.CellQuote)
	session.AddCell(model.CellCode)

	replaced, err := session.ChangeCellType(quote.ID, model.CellImage)
	if err != nil {
		t.Fatalf("ChangeCellType failed: %v", err)
	}
	if replaced.ID == quote.ID {
		t.Error("Expected the replacement cell to get a fresh id")
	}

	working := session.WorkingCells()
	if working[1].Type != model.CellImage {
		t.Errorf("Expected replacement at index 1, got %s", working[1].Type)
	}
	if len(working) != 3 {
		t.Errorf("Expected 3 cells, got %d", len(working))
	}
}

func TestSessionReorder(t *testing.T) {
	session, _ := newEditingSession(t)

	a, _ := session.AddCell(model.CellText)
	b, _ := session.AddCell(model.CellQuote)
	c, _ := session.AddCell(model.CellCode)

	if err := session.Reorder(c.ID, 0); err != nil {
		t.Fatalf("Reorder failed: %v", err)
	}

	working := session.WorkingCells()
	expected := []model.CellID{c.ID, a.ID, b.ID}
	for i, id := range expected {
		if working[i].ID != id {
			t.Errorf("Expected cell %s at %d, got %s", id, i, working[i].ID)
		}
	}

	// Out-of-bounds and absent ids are no-ops.
	if err := session.Reorder(a.ID, 99); err != nil {
		t.Errorf("Expected out-of-bounds reorder to be a no-op, got %v", err)
	}
	if err := session.Reorder("missing", 0); err != nil {
		t.Errorf("Expected absent-id reorder to be a no-op, got %v", err)
	}
	after := session.WorkingCells()
	for i := range working {
		if after[i].ID != working[i].ID {
			t.Errorf("No-op reorder changed the order at %d", i)
		}
	}
}

func TestSessionRemoveCell(t *testing.T) {
	session, _ := newEditingSession(t)

	a, _ := session.AddCell(model.CellText)
	b, _ := session.AddCell(model.CellQuote)

	if err := session.RemoveCell(a.ID); err != nil {
		t.Fatalf("RemoveCell failed: %v", err)
	}
	working := session.WorkingCells()
	if len(working) != 1 || working[0].ID != b.ID {
		t.Errorf("Expected only cell %s left, got %+v", b.ID, working)
	}

	if err := session.RemoveCell("missing"); err != nil {
		t.Errorf("Expected absent-id removal to be a no-op, got %v", err)
	}
}

func TestSessionSavePersistsAndResets(t *testing.T) {
	session, repo := newEditingSession(t)

	cell, _ := session.AddCell(model.CellText)
	session.UpdateCell(cell.ID, model.TextContent{Body: "Hello"})
	session.Rename("First", "", testNow)

	postID := session.Post().ID
	if err := session.Save(testNow.Add(time.Minute)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if session.State() != StateViewing {
		t.Errorf("Expected viewing state after save, got %s", session.State())
	}

	stored, err := repo.GetPost(postID)
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if stored.Title != "First" || len(stored.Cells) != 1 {
		t.Errorf("Unexpected stored post: %+v", stored)
	}
}

func TestSessionSaveFailureStaysEditing(t *testing.T) {
	session, repo := newEditingSession(t)

	// An invalid cell blocks the save.
	cell, _ := session.AddCell(model.CellImage)
	postID := session.Post().ID

	err := session.Save(testNow)
	var validationErr *model.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if session.State() != StateEditing {
		t.Errorf("Expected session to stay editing after failed save, got %s", session.State())
	}
	if _, err := repo.GetPost(postID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected nothing persisted after failed save, got %v", err)
	}

	// Fixing the cell makes the same session saveable.
	if err := session.UpdateCell(cell.ID, model.ImageContent{URL: "https://example.com/a.png"}); err != nil {
		t.Fatalf("UpdateCell failed: %v", err)
	}
	if err := session.Save(testNow); err != nil {
		t.Fatalf("Save after fixing failed: %v", err)
	}
}

func TestSessionPublishGuardSeesWorkingCells(t *testing.T) {
	repo := repository.NewMemoryPostRepository()

	// Persist a post with one cell.
	persisted := model.NewPost(testNow)
	persisted.UpdateCells([]model.Cell{
		{ID: "c1", Type: model.CellText, Content: model.TextContent{Body: "x"}},
	}, testNow)
	persisted.Rename("Has Cells", "", testNow)
	if err := repo.SavePost(persisted); err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}

	session := NewSession(repo)
	if err := session.Select(persisted.ID); err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	// Remove the only working cell; publishing must now fail even though the
	// persisted copy still has a cell.
	if err := session.RemoveCell("c1"); err != nil {
		t.Fatalf("RemoveCell failed: %v", err)
	}
	if err := session.SetStatus(model.StatusPublished, testNow); !errors.Is(err, model.ErrIncompletePost) {
		t.Errorf("Expected ErrIncompletePost against working cells, got %v", err)
	}
}

func TestSessionPreviewTransitions(t *testing.T) {
	session, _ := newEditingSession(t)

	if err := session.ClosePreview(); !errors.Is(err, ErrNotPreviewing) {
		t.Errorf("Expected ErrNotPreviewing, got %v", err)
	}

	if err := session.Preview(); err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if session.State() != StatePreviewing {
		t.Errorf("Expected previewing state, got %s", session.State())
	}

	// Edits are rejected while previewing.
	if _, err := session.AddCell(model.CellText); !errors.Is(err, ErrNoActiveEdit) {
		t.Errorf("Expected ErrNoActiveEdit while previewing, got %v", err)
	}

	if err := session.ClosePreview(); err != nil {
		t.Fatalf("ClosePreview failed: %v", err)
	}
	if session.State() != StateEditing {
		t.Errorf("Expected editing state after closing preview, got %s", session.State())
	}
}

func TestSessionCancelDiscardsWorkingCopy(t *testing.T) {
	repo := repository.NewMemoryPostRepository()

	persisted := model.NewPost(testNow)
	persisted.UpdateCells([]model.Cell{
		{ID: "c1", Type: model.CellText, Content: model.TextContent{Body: "original"}},
	}, testNow)
	persisted.Rename("Original", "", testNow)
	if err := repo.SavePost(persisted); err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}

	session := NewSession(repo)
	if err := session.Select(persisted.ID); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if err := session.UpdateCell("c1", model.TextContent{Body: "edited"}); err != nil {
		t.Fatalf("UpdateCell failed: %v", err)
	}

	session.Cancel()

	stored, err := repo.GetPost(persisted.ID)
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if content := stored.Cells[0].Content.(model.TextContent); content.Body != "original" {
		t.Errorf("Cancel leaked edits into the store: %q", content.Body)
	}
}

func TestSessionTwoStepDelete(t *testing.T) {
	repo := repository.NewMemoryPostRepository()

	persisted := model.NewPost(testNow)
	persisted.UpdateCells([]model.Cell{
		{ID: "c1", Type: model.CellText, Content: model.TextContent{Body: "x"}},
	}, testNow)
	persisted.Rename("Doomed", "", testNow)
	if err := repo.SavePost(persisted); err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}

	session := NewSession(repo)
	if err := session.Select(persisted.ID); err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	// Confirming without requesting first does nothing.
	if err := session.ConfirmDelete(); !errors.Is(err, ErrDeleteUnarmed) {
		t.Errorf("Expected ErrDeleteUnarmed, got %v", err)
	}
	if _, err := repo.GetPost(persisted.ID); err != nil {
		t.Errorf("Expected post to survive unarmed confirm, got %v", err)
	}

	if err := session.RequestDelete(); err != nil {
		t.Fatalf("RequestDelete failed: %v", err)
	}
	if err := session.ConfirmDelete(); err != nil {
		t.Fatalf("ConfirmDelete failed: %v", err)
	}

	if _, err := repo.GetPost(persisted.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected post removed after confirmed delete, got %v", err)
	}
	if session.State() != StateViewing {
		t.Errorf("Expected viewing state after delete, got %s", session.State())
	}
}

// TestSingleSessionAssumption documents the concurrency model: sessions do no
// locking, and when two of them edit the same post the last save wins
// wholesale.
func TestSingleSessionAssumption(t *testing.T) {
	repo := repository.NewMemoryPostRepository()

	persisted := model.NewPost(testNow)
	persisted.UpdateCells([]model.Cell{
		{ID: "c1", Type: model.CellText, Content: model.TextContent{Body: "base"}},
	}, testNow)
	persisted.Rename("Shared", "", testNow)
	if err := repo.SavePost(persisted); err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}

	first := NewSession(repo)
	second := NewSession(repo)
	if err := first.Select(persisted.ID); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if err := second.Select(persisted.ID); err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	first.UpdateCell("c1", model.TextContent{Body: "from first"})
	second.UpdateCell("c1", model.TextContent{Body: "from second"})

	if err := first.Save(testNow.Add(time.Minute)); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	if err := second.Save(testNow.Add(2 * time.Minute)); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	stored, err := repo.GetPost(persisted.ID)
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if content := stored.Cells[0].Content.(model.TextContent); content.Body != "from second" {
		t.Errorf("Expected last writer to win, got %q", content.Body)
	}
}
