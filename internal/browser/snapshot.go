package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sorteando-crawler/internal/extract"
)

const snapshotScript = `(function () {
	const body = document.body;
	return {
		url: window.location.href,
		bodyText: body ? body.innerText : "",
		links: Array.from(document.querySelectorAll("a[href]")).map(a => a.href),
		blocks: Array.from(document.querySelectorAll("div[class]")).map(d => ({
			tag: d.tagName.toLowerCase(),
			className: typeof d.className === "string" ? d.className : "",
			text: d.innerText || ""
		}))
	};
})()`

type snapshotBlock struct {
	Tag       string `json:"tag"`
	ClassName string `json:"className"`
	Text      string `json:"text"`
}

type pageSnapshot struct {
	URL      string          `json:"url"`
	BodyText string          `json:"bodyText"`
	Links    []string        `json:"links"`
	Blocks   []snapshotBlock `json:"blocks"`
}

// Snapshot reads the rendered page into an extract.Document. When script
// evaluation fails it falls back to parsing the serialized DOM.
func (s *Session) Snapshot(ctx context.Context) (extract.Document, error) {
	var snap pageSnapshot
	err := s.run(ctx, chromedp.Evaluate(snapshotScript, &snap))
	if err == nil {
		doc := extract.Document{URL: snap.URL, BodyText: snap.BodyText, Links: snap.Links}
		for _, b := range snap.Blocks {
			doc.Blocks = append(doc.Blocks, extract.Block{Tag: b.Tag, ClassName: b.ClassName, Text: b.Text})
		}
		return doc, nil
	}
	if ctx.Err() != nil {
		return extract.Document{}, ctx.Err()
	}

	s.logger.Debug("Snapshot script failed; parsing markup instead.", zap.Error(err))
	var markup, location string
	if err := s.run(ctx, chromedp.Location(&location), chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return extract.Document{}, fmt.Errorf("failed to read page: %w", err)
	}
	return extract.DocumentFromHTML(strings.NewReader(markup), location)
}
