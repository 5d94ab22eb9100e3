package markdown

import (
	"strings"

	"git.home.luguber.info/inful/contentbuilder/internal/hast"
)

// LinkKind distinguishes anchors from embedded images.
type LinkKind string

const (
	LinkKindInline LinkKind = "inline"
	LinkKindImage  LinkKind = "image"
)

// Link is an outbound reference found in a rendered body.
type Link struct {
	Kind        LinkKind `json:"kind"`
	Destination string   `json:"destination"`
}

// Links collects link and image destinations in document order. In-page
// fragments such as heading self-links are skipped.
func Links(tree *hast.Root) []Link {
	var out []Link
	hast.Walk(tree, hast.Visit{Element: func(e *hast.Element, _ hast.Parent, _ int) hast.WalkStatus {
		switch e.Tag {
		case "a":
			href, ok := e.Get("href")
			if ok && href != "" && !strings.HasPrefix(href, "#") {
				out = append(out, Link{Kind: LinkKindInline, Destination: href})
			}
		case "img":
			if src, ok := e.Get("src"); ok && src != "" {
				out = append(out, Link{Kind: LinkKindImage, Destination: src})
			}
		}
		return hast.WalkContinue
	}})
	return out
}
