package report

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ContentMarkdown converts captured page HTML into Markdown for the
// article-snapshot output. The HTML is sanitized first: rendered pages
// carry scripts and event handlers that have no place in the snapshot.
func ContentMarkdown(pageHTML string) (string, error) {
	clean := bluemonday.UGCPolicy().Sanitize(pageHTML)

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	md, err := conv.ConvertString(clean)
	if err != nil {
		return "", fmt.Errorf("report: html to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// TitleFromHTML extracts the <title> text from captured HTML, for pages
// where document.title evaluated empty.
func TitleFromHTML(pageHTML string) string {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return ""
	}
	return findTitle(doc)
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}
