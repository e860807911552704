package core

import (
	"fmt"
	"log"
	"strings"

	"loqui.chat/assistant-service/internal/store"
)

// NoContextFound is the context block used when the similarity search
// returns nothing.
const NoContextFound = "No relevant context found."

// contextTimeFormat mirrors an en-US locale timestamp, which is what the
// retrieved snippets were rendered with in the chat UI.
const contextTimeFormat = "1/2/2006, 3:04:05 PM"

// BuildContext renders the retrieved results as the numbered context block
// handed to the model. Indices are 1-based; the model cites them back
// through relevant_sources.
func BuildContext(results []store.SimilarityResult) string {
	if len(results) == 0 {
		return NoContextFound
	}

	lines := make([]string, 0, len(results))
	for i, item := range results {
		lines = append(lines, fmt.Sprintf("[%d] %s %s at %s: %s (similarity: %.3f)",
			i+1,
			item.DisplayName,
			locationInfo(item),
			item.CreatedAt.Local().Format(contextTimeFormat),
			item.Content,
			item.Similarity,
		))
	}
	return strings.Join(lines, "\n")
}

func locationInfo(item store.SimilarityResult) string {
	if item.ChannelID != "" {
		info := "in channel " + item.ChannelID
		if item.ContentType == store.SearchTypePostThread {
			info += fmt.Sprintf(" (thread reply to post %s)", item.ParentID)
		}
		return info
	}
	if item.ConversationID != "" {
		info := "in DM " + item.ConversationID
		if item.ContentType == store.SearchTypeDMThread {
			info += fmt.Sprintf(" (thread reply to message %s)", item.ParentID)
		}
		return info
	}
	return ""
}

// FormatSourceLinks renders the citation block for the 1-based source
// indices the model marked as relevant. Indices outside the result list are
// skipped. Returns "" when there is nothing to cite.
func FormatSourceLinks(indices []int, results []store.SimilarityResult) string {
	if len(results) == 0 || len(indices) == 0 {
		return ""
	}

	links := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx < 1 || idx > len(results) {
			log.Printf("Model cited source %d outside the %d provided sources. Skipping.", idx, len(results))
			continue
		}
		links = append(links, fmt.Sprintf(
			`<a href="%s" target="_blank" rel="noopener noreferrer" class="text-blue-500" title="Opens in new tab">[%d]</a>`,
			sourceHref(results[idx-1]), idx))
	}

	if len(links) == 0 {
		return ""
	}
	return `<br><span class="text-xs">Sources: ` + strings.Join(links, " ") + `</span>`
}

// sourceHref builds the in-app link for one cited result. Thread replies
// link to their parent's thread and anchor the cited comment; channel posts
// link to their own thread.
func sourceHref(item store.SimilarityResult) string {
	if item.ChannelID != "" {
		href := "/channel/" + item.ChannelID
		if item.ContentType == store.SearchTypePostThread {
			href += fmt.Sprintf("?thread=%s#%s", item.ParentID, item.ContentID)
		} else {
			href += "?thread=" + item.ContentID
		}
		return href
	}
	if item.ConversationID != "" {
		href := "/dm/" + item.ConversationID
		if item.ContentType == store.SearchTypeDMThread {
			href += fmt.Sprintf("?thread=%s#%s", item.ParentID, item.ContentID)
		}
		return href
	}
	return ""
}
