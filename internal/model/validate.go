package model

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidateCells checks that every cell's content matches its declared type's
// shape. It is a pure check with no side effects and gates every persistence
// write; the first failing cell wins.
func ValidateCells(cells []Cell) error {
	seen := make(map[CellID]int, len(cells))

	for i, cell := range cells {
		if cell.ID == "" {
			return &ValidationError{Cell: i, Type: cell.Type, Field: "id", Reason: "is required"}
		}
		if prev, dup := seen[cell.ID]; dup {
			return &ValidationError{
				Cell: i, Type: cell.Type, Field: "id",
				Reason: fmt.Sprintf("duplicates cell %d", prev),
			}
		}
		seen[cell.ID] = i

		if err := validateCell(i, cell); err != nil {
			return err
		}
	}

	return nil
}

func validateCell(i int, cell Cell) error {
	switch content := cell.Content.(type) {
	case TextContent:
		// Empty markdown is allowed; an empty paragraph is still a paragraph.
		return nil
	case ImageContent:
		if content.URL == "" {
			return &ValidationError{Cell: i, Type: CellImage, Field: "url", Reason: "is required"}
		}
		if !validURL(content.URL) {
			return &ValidationError{Cell: i, Type: CellImage, Field: "url", Reason: "must be a valid URL"}
		}
	case VideoContent:
		if content.URL == "" {
			return &ValidationError{Cell: i, Type: CellVideo, Field: "url", Reason: "is required"}
		}
		if !validURL(content.URL) {
			return &ValidationError{Cell: i, Type: CellVideo, Field: "url", Reason: "must be a valid URL"}
		}
	case QuoteContent:
		if content.Text == "" {
			return &ValidationError{Cell: i, Type: CellQuote, Field: "text", Reason: "is required"}
		}
	case CodeContent:
		if content.Code == "" {
			return &ValidationError{Cell: i, Type: CellCode, Field: "code", Reason: "is required"}
		}
		if content.Language == "" {
			return &ValidationError{Cell: i, Type: CellCode, Field: "language", Reason: "is required"}
		}
	case ComponentContent:
		allowed, ok := ComponentRegistry[content.Name]
		if !ok {
			return &ValidationError{
				Cell: i, Type: CellComponent, Field: "name",
				Reason: fmt.Sprintf("unknown component %q", content.Name),
			}
		}
		for key := range content.Props {
			if !slices.Contains(allowed, key) {
				return &ValidationError{
					Cell: i, Type: CellComponent, Field: "props",
					Reason: fmt.Sprintf("unknown prop %q for component %q", key, content.Name),
				}
			}
		}
	default:
		return &ValidationError{
			Cell:   i,
			Reason: fmt.Sprintf("unknown cell type %q", cell.Type),
		}
	}

	return nil
}

// validURL requires an absolute URL: a scheme plus a host (or an opaque part,
// for schemes like mailto).
func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && (u.Host != "" || u.Opaque != "")
}
