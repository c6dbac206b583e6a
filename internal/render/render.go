// Package render turns post descriptions written in markdown into display HTML.
package render

import (
	"sync"

	"github.com/debemdeboas/adventure/internal/cache"
	"github.com/debemdeboas/adventure/internal/model"
	"github.com/debemdeboas/adventure/internal/util"
	"github.com/gomarkdown/markdown"
	md_html "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/rs/zerolog"
)

var renderLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	renderLogger = l
}

// RenderMarkdown renders md with raw HTML dropped, so descriptions cannot inject markup.
func RenderMarkdown(md []byte) []byte {
	md = markdown.NormalizeNewlines(md)

	p := parser.NewWithExtensions(
		parser.CommonExtensions | parser.Autolink | parser.Strikethrough | parser.HardLineBreak | parser.NoEmptyLineBeforeBlock,
	)
	doc := p.Parse(md)

	renderer := md_html.NewRenderer(md_html.RendererOptions{
		Flags: md_html.CommonFlags | md_html.SkipHTML | md_html.SkipImages | md_html.HrefTargetBlank | md_html.NoopenerLinks | md_html.NoreferrerLinks,
	})
	return markdown.Render(doc, renderer)
}

var renderCacheMutex sync.Mutex

// RenderMarkdownCached renders md once per distinct content.
func RenderMarkdownCached(md []byte) []byte {
	contentHash := util.ContentHash(md)

	if cached, found := cache.GetRenderedDescription(contentHash); found {
		renderLogger.Debug().Str("contentHash", contentHash).Msg("Cache hit for rendered description")
		return cached
	}

	renderCacheMutex.Lock()
	defer renderCacheMutex.Unlock()

	// Another caller may have rendered it while we waited.
	if cached, found := cache.GetRenderedDescription(contentHash); found {
		return cached
	}

	renderLogger.Debug().Str("contentHash", contentHash).Msg("Cache miss for rendered description")
	html := RenderMarkdown(md)
	cache.SetRenderedDescription(contentHash, html)
	return html
}

// Description returns the rendered description of p, or "" when it has none.
func Description(p *model.Post) string {
	if p == nil || p.Description == nil || *p.Description == "" {
		return ""
	}
	return string(RenderMarkdownCached([]byte(*p.Description)))
}
