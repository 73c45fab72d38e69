// Package render maps cells to HTML. Rendering is total: any cell, including
// ones with unknown types or unregistered component names, renders a visible
// placeholder instead of failing.
package render

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/rs/zerolog"

	"github.com/foliohq/folio/internal/cache"
	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/util"
)

var renderLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	renderLogger = l
}

func esc(s string) string {
	return template.HTMLEscapeString(s)
}

// RenderCell dispatches on the cell's type. Each variant renders only its own
// declared fields; nothing from the cell content is ever executed.
func RenderCell(cell model.Cell, syntaxTheme string) template.HTML {
	switch content := cell.Content.(type) {
	case model.TextContent:
		return template.HTML(renderMarkdown([]byte(content.Body), syntaxTheme))
	case model.ImageContent:
		return renderImage(content)
	case model.VideoContent:
		return template.HTML(fmt.Sprintf(
			`<div class="cell cell-video"><video controls src="%s"></video></div>`, esc(content.URL)))
	case model.QuoteContent:
		return renderQuote(content)
	case model.CodeContent:
		highlighted := HighlightCode(content.Code, content.Language, syntaxTheme)
		return template.HTML(fmt.Sprintf(`<div class="cell cell-code highlight">%s</div>`, highlighted))
	case model.ComponentContent:
		return renderComponent(content)
	default:
		return template.HTML(fmt.Sprintf(
			`<div class="cell cell-unknown">Unknown cell type %q</div>`, esc(string(cell.Type))))
	}
}

// RenderCells concatenates the renderings of a cell list in order.
func RenderCells(cells []model.Cell, syntaxTheme string) template.HTML {
	var b strings.Builder
	for _, cell := range cells {
		b.WriteString(string(RenderCell(cell, syntaxTheme)))
		b.WriteString("\n")
	}
	return template.HTML(b.String())
}

// RenderPost renders a post's cells, caching by content hash and syntax
// theme.
func RenderPost(post *model.Post, syntaxTheme string) template.HTML {
	raw, err := json.Marshal(post.Cells)
	if err != nil {
		renderLogger.Warn().Err(err).Str("post_id", string(post.ID)).Msg("Could not hash cells, skipping render cache")
		return RenderCells(post.Cells, syntaxTheme)
	}

	contentHash := util.ContentHash(raw)
	if cached, found := cache.GetRenderedPost(contentHash, syntaxTheme); found {
		return template.HTML(cached.HTML)
	}

	html := RenderCells(post.Cells, syntaxTheme)
	cache.SetRenderedPost(contentHash, syntaxTheme, []byte(html))
	return html
}

func renderImage(content model.ImageContent) template.HTML {
	var b strings.Builder
	b.WriteString(`<figure class="cell cell-image">`)
	fmt.Fprintf(&b, `<img src="%s" alt="%s">`, esc(content.URL), esc(content.Alt))
	if content.Caption != "" {
		fmt.Fprintf(&b, `<figcaption>%s</figcaption>`, esc(content.Caption))
	}
	b.WriteString(`</figure>`)
	return template.HTML(b.String())
}

func renderQuote(content model.QuoteContent) template.HTML {
	var b strings.Builder
	b.WriteString(`<blockquote class="cell cell-quote">`)
	fmt.Fprintf(&b, `<p>%s</p>`, esc(content.Text))
	if content.Author != "" {
		fmt.Fprintf(&b, `<cite>%s</cite>`, esc(content.Author))
	}
	b.WriteString(`</blockquote>`)
	return template.HTML(b.String())
}

// renderComponent renders an embedded UI component from the fixed registry.
// An unregistered name renders an error placeholder naming the component;
// content is never silently dropped.
func renderComponent(content model.ComponentContent) template.HTML {
	if !model.IsRegisteredComponent(content.Name) {
		return template.HTML(fmt.Sprintf(
			`<div class="cell cell-error" role="alert">Component %q is not available.</div>`, esc(content.Name)))
	}

	var b strings.Builder
	switch content.Name {
	case "Alert":
		variant := content.Props["variant"]
		if variant == "" {
			variant = "default"
		}
		fmt.Fprintf(&b, `<div class="component-alert alert-%s" role="alert">`, esc(variant))
		if title := content.Props["title"]; title != "" {
			fmt.Fprintf(&b, `<strong class="alert-title">%s</strong>`, esc(title))
		}
		if description := content.Props["description"]; description != "" {
			fmt.Fprintf(&b, `<p class="alert-description">%s</p>`, esc(description))
		}
		b.WriteString(`</div>`)
	case "Card":
		b.WriteString(`<div class="component-card">`)
		title := content.Props["title"]
		description := content.Props["description"]
		if title != "" || description != "" {
			b.WriteString(`<div class="card-header">`)
			if title != "" {
				fmt.Fprintf(&b, `<h3 class="card-title">%s</h3>`, esc(title))
			}
			if description != "" {
				fmt.Fprintf(&b, `<p class="card-description">%s</p>`, esc(description))
			}
			b.WriteString(`</div>`)
		}
		if body := content.Props["content"]; body != "" {
			fmt.Fprintf(&b, `<div class="card-content">%s</div>`, esc(body))
		}
		if footer := content.Props["footer"]; footer != "" {
			fmt.Fprintf(&b, `<div class="card-footer">%s</div>`, esc(footer))
		}
		b.WriteString(`</div>`)
	}
	return template.HTML(b.String())
}

// renderMarkdown runs a text cell's body through gomarkdown with fenced code
// blocks highlighted by chroma.
func renderMarkdown(md []byte, syntaxTheme string) []byte {
	opts := mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank | mdhtml.FootnoteReturnLinks,
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if code, ok := node.(*ast.CodeBlock); ok && entering {
				var lang string
				if info := code.Info; info != nil {
					lang = string(info)
				}
				highlighted := HighlightCode(string(code.Literal), lang, syntaxTheme)
				fmt.Fprintf(w, "<div class=\"highlight\">%s</div>", highlighted)
				return ast.GoToNext, true
			}
			return ast.GoToNext, false
		},
	}
	renderer := mdhtml.NewRenderer(opts)

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.Footnotes
	p := parser.NewWithExtensions(extensions)

	normalized := markdown.NormalizeNewlines(md)
	return markdown.ToHTML(normalized, p, renderer)
}
