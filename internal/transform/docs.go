package transform

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/providers/notion"
)

const pageBase = 0.35

// PageToDraft maps a docs page plus its flattened block content. The
// external id is the page's immutable id; content is produced by
// RenderBlocks from the block tree the worker collected.
func PageToDraft(page *notion.Page, content string) domain.ItemDraft {
	title := page.Title
	if title == "" {
		title = "(untitled page)"
	}

	score := pageBase +
		lengthBonus(content) +
		recencyBonus(page.LastEditedTime)

	return domain.ItemDraft{
		SourceType: domain.SourceNotionPage,
		ExternalID: fmt.Sprintf("notion:page:%s", page.ID),
		Title:      title,
		Content:    content,
		URL:        page.URL,
		Metadata: map[string]any{
			"page_id":        page.ID,
			"last_edited_at": page.LastEditedTime,
		},
		Importance: domain.ClampScore(score),
	}
}

// RenderedBlock is one block paired with its depth in the tree.
type RenderedBlock struct {
	Block notion.Block
	Depth int
}

// RenderBlocks flattens an ordered block list into markdown-like plain
// text. Blocks without text (dividers, images) render to nothing.
func RenderBlocks(blocks []RenderedBlock) string {
	var sb strings.Builder
	for _, rb := range blocks {
		line := renderBlock(rb.Block, rb.Depth)
		if line == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(line)
	}
	return sb.String()
}

func renderBlock(b notion.Block, depth int) string {
	if b.PlainText == "" {
		return ""
	}

	indent := strings.Repeat("  ", depth)
	switch b.Type {
	case "heading_1":
		return "# " + b.PlainText
	case "heading_2":
		return "## " + b.PlainText
	case "heading_3":
		return "### " + b.PlainText
	case "bulleted_list_item", "numbered_list_item":
		return indent + "- " + b.PlainText
	case "to_do":
		return indent + "- [ ] " + b.PlainText
	case "code":
		return b.PlainText
	case "quote":
		return "> " + b.PlainText
	default:
		return indent + b.PlainText
	}
}
