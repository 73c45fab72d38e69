package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCellMarshalTextUsesFlatString(t *testing.T) {
	cell := Cell{ID: "c1", Type: CellText, Content: TextContent{Body: "# Hello"}}

	raw, err := json.Marshal(cell)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if !strings.Contains(string(raw), `"content":"# Hello"`) {
		t.Errorf("Expected flat string content, got %s", raw)
	}
	if !strings.Contains(string(raw), `"type":"markdown"`) {
		t.Errorf("Expected markdown type discriminant, got %s", raw)
	}
}

func TestCellUnmarshal(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected CellContent
	}{
		{
			name:     "Text Flat String",
			input:    `{"id":"c1","type":"markdown","content":"# Hi"}`,
			expected: TextContent{Body: "# Hi"},
		},
		{
			name:     "Text Object Form",
			input:    `{"id":"c1","type":"markdown","content":{"body":"# Hi"}}`,
			expected: TextContent{Body: "# Hi"},
		},
		{
			name:     "Image",
			input:    `{"id":"c2","type":"image","content":{"url":"https://example.com/a.png","alt":"a"}}`,
			expected: ImageContent{URL: "https://example.com/a.png", Alt: "a"},
		},
		{
			name:     "Quote",
			input:    `{"id":"c3","type":"quote","content":{"text":"Ship it","author":"anon"}}`,
			expected: QuoteContent{Text: "Ship it", Author: "anon"},
		},
		{
			name:     "Code",
			input:    `{"id":"c4","type":"code","content":{"code":"x := 1","language":"go"}}`,
			expected: CodeContent{Code: "x := 1", Language: "go"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var cell Cell
			if err := json.Unmarshal([]byte(tc.input), &cell); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if cell.Content != tc.expected {
				t.Errorf("Expected content %#v, got %#v", tc.expected, cell.Content)
			}
		})
	}
}

func TestCellUnmarshalComponent(t *testing.T) {
	input := `{"id":"c5","type":"component","content":{"name":"Alert","props":{"title":"Note"}}}`

	var cell Cell
	if err := json.Unmarshal([]byte(input), &cell); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	content, ok := cell.Content.(ComponentContent)
	if !ok {
		t.Fatalf("Expected ComponentContent, got %T", cell.Content)
	}
	if content.Name != "Alert" || content.Props["title"] != "Note" {
		t.Errorf("Unexpected component content: %#v", content)
	}
}

func TestCellUnmarshalUnknownTypePreservesPayload(t *testing.T) {
	input := `{"id":"c6","type":"gallery","content":{"images":["a.png"]}}`

	var cell Cell
	if err := json.Unmarshal([]byte(input), &cell); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	content, ok := cell.Content.(UnknownContent)
	if !ok {
		t.Fatalf("Expected UnknownContent, got %T", cell.Content)
	}

	// A list round-trips the unknown cell without dropping its payload.
	raw, err := json.Marshal(cell)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(raw), `"images":["a.png"]`) {
		t.Errorf("Expected raw payload to survive, got %s", raw)
	}
	if len(content.Raw) == 0 {
		t.Error("Expected raw payload to be preserved")
	}
}

func TestNewCellAssignsIDAndDefaults(t *testing.T) {
	for _, cellType := range CellTypes {
		cell := NewCell(cellType)
		if cell.ID == "" {
			t.Errorf("Expected generated ID for %s cell", cellType)
		}
		if cell.Type != cellType {
			t.Errorf("Expected type %s, got %s", cellType, cell.Type)
		}
		if cell.Content == nil {
			t.Errorf("Expected default content for %s cell", cellType)
		}
	}
}

func TestIsRegisteredComponent(t *testing.T) {
	if !IsRegisteredComponent("Alert") || !IsRegisteredComponent("Card") {
		t.Error("Expected Alert and Card to be registered")
	}
	if IsRegisteredComponent("Carousel") {
		t.Error("Expected Carousel to be unregistered")
	}
}
