// Package model defines the content cell union and the post aggregate.
package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type CellID string

// CellType is the discriminant of the cell union. The wire names match the
// values already persisted by earlier versions of the site, which is why the
// text variant is stored as "markdown".
type CellType string

const (
	CellText      CellType = "markdown"
	CellImage     CellType = "image"
	CellVideo     CellType = "video"
	CellQuote     CellType = "quote"
	CellCode      CellType = "code"
	CellComponent CellType = "component"
)

// CellTypes lists every known cell type in editor menu order.
var CellTypes = []CellType{CellText, CellImage, CellVideo, CellQuote, CellCode, CellComponent}

func (t CellType) Known() bool {
	switch t {
	case CellText, CellImage, CellVideo, CellQuote, CellCode, CellComponent:
		return true
	}
	return false
}

// CellContent is the closed set of per-type payloads. Only types in this
// package implement it.
type CellContent interface {
	cellType() CellType
}

type TextContent struct {
	Body string `json:"body"`
}

type ImageContent struct {
	URL     string `json:"url"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type VideoContent struct {
	URL string `json:"url"`
}

type QuoteContent struct {
	Text   string `json:"text"`
	Author string `json:"author,omitempty"`
}

type CodeContent struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type ComponentContent struct {
	Name  string            `json:"name"`
	Props map[string]string `json:"props,omitempty"`
}

// UnknownContent preserves the raw payload of a cell whose type this version
// does not know. Rendering shows a placeholder for it; validation rejects it.
type UnknownContent struct {
	Raw json.RawMessage
}

func (TextContent) cellType() CellType      { return CellText }
func (ImageContent) cellType() CellType     { return CellImage }
func (VideoContent) cellType() CellType     { return CellVideo }
func (QuoteContent) cellType() CellType     { return CellQuote }
func (CodeContent) cellType() CellType      { return CellCode }
func (ComponentContent) cellType() CellType { return CellComponent }
func (UnknownContent) cellType() CellType   { return "" }

// ComponentRegistry is the fixed allow-list of embeddable components and the
// props each one understands.
var ComponentRegistry = map[string][]string{
	"Alert": {"title", "description", "variant"},
	"Card":  {"title", "description", "content", "footer"},
}

func IsRegisteredComponent(name string) bool {
	_, ok := ComponentRegistry[name]
	return ok
}

// Cell is one typed content block within a post. The id is assigned once at
// creation and survives edits; changing a cell's type is modeled as replacing
// the whole cell.
type Cell struct {
	ID      CellID
	Type    CellType
	Content CellContent
}

// NewCell returns a cell of the given type with a fresh id and the type's
// default (empty) content shape.
func NewCell(t CellType) Cell {
	return Cell{
		ID:      CellID(uuid.New().String()),
		Type:    t,
		Content: DefaultContent(t),
	}
}

// DefaultContent returns the empty content shape for a cell type.
func DefaultContent(t CellType) CellContent {
	switch t {
	case CellText:
		return TextContent{}
	case CellImage:
		return ImageContent{}
	case CellVideo:
		return VideoContent{}
	case CellQuote:
		return QuoteContent{}
	case CellCode:
		return CodeContent{}
	case CellComponent:
		return ComponentContent{Props: map[string]string{}}
	default:
		return UnknownContent{}
	}
}

type cellJSON struct {
	ID      CellID          `json:"id"`
	Type    CellType        `json:"type"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON encodes the cell with its type discriminant. The text variant
// keeps the original flat string form ("content": "...") that older stored
// posts use.
func (c Cell) MarshalJSON() ([]byte, error) {
	var content any
	switch v := c.Content.(type) {
	case TextContent:
		content = v.Body
	case UnknownContent:
		if len(v.Raw) > 0 {
			content = json.RawMessage(v.Raw)
		} else {
			content = nil
		}
	default:
		content = c.Content
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("error encoding %s cell content: %w", c.Type, err)
	}

	return json.Marshal(cellJSON{ID: c.ID, Type: c.Type, Content: raw})
}

// UnmarshalJSON decodes a cell by its type discriminant. Unknown types decode
// into UnknownContent so that stored legacy data can still be listed and
// rendered as a placeholder.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var aux cellJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.ID = aux.ID
	c.Type = aux.Type

	switch aux.Type {
	case CellText:
		// Accept both the flat string form and {"body": "..."}.
		var body string
		if err := json.Unmarshal(aux.Content, &body); err == nil {
			c.Content = TextContent{Body: body}
			return nil
		}
		var content TextContent
		if err := json.Unmarshal(aux.Content, &content); err != nil {
			return fmt.Errorf("error decoding %s cell content: %w", aux.Type, err)
		}
		c.Content = content
	case CellImage:
		var content ImageContent
		if err := json.Unmarshal(aux.Content, &content); err != nil {
			return fmt.Errorf("error decoding %s cell content: %w", aux.Type, err)
		}
		c.Content = content
	case CellVideo:
		var content VideoContent
		if err := json.Unmarshal(aux.Content, &content); err != nil {
			return fmt.Errorf("error decoding %s cell content: %w", aux.Type, err)
		}
		c.Content = content
	case CellQuote:
		var content QuoteContent
		if err := json.Unmarshal(aux.Content, &content); err != nil {
			return fmt.Errorf("error decoding %s cell content: %w", aux.Type, err)
		}
		c.Content = content
	case CellCode:
		var content CodeContent
		if err := json.Unmarshal(aux.Content, &content); err != nil {
			return fmt.Errorf("error decoding %s cell content: %w", aux.Type, err)
		}
		c.Content = content
	case CellComponent:
		var content ComponentContent
		if err := json.Unmarshal(aux.Content, &content); err != nil {
			return fmt.Errorf("error decoding %s cell content: %w", aux.Type, err)
		}
		c.Content = content
	default:
		c.Content = UnknownContent{Raw: aux.Content}
	}

	return nil
}

// CloneCells deep-copies a cell list so that working copies never alias the
// persisted cells.
func CloneCells(cells []Cell) []Cell {
	if cells == nil {
		return nil
	}

	out := make([]Cell, len(cells))
	copy(out, cells)
	for i := range out {
		if content, ok := out[i].Content.(ComponentContent); ok {
			props := make(map[string]string, len(content.Props))
			for k, v := range content.Props {
				props[k] = v
			}
			content.Props = props
			out[i].Content = content
		}
	}
	return out
}
