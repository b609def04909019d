package extractor

import (
	"strings"
)

// Entry variant classifications. Every entry has exactly one classification,
// derived from the structural shape of entryId and content alone.
type entryKind int

const (
	entryUnknown entryKind = iota
	entryItem
	entryThread
	entryCursor
)

// Content entryType discriminants.
const (
	contentItem   = "TimelineTimelineItem"
	contentModule = "TimelineTimelineModule"
	contentCursor = "TimelineTimelineCursor"
)

// tweetMarker identifies the sub-items of a conversation thread that carry
// a tweet. Sub-items without the marker (show-more cursors, labels) are
// skipped without being treated as errors.
const tweetMarker = "tweet-"

// classifyEntry derives the variant of one timeline entry. Conversation
// threads in home and generic wrappings share the module content shape and
// classify identically; entries that match no known shape come back as
// entryUnknown and are skipped for forward compatibility.
func classifyEntry(entryID string, content map[string]interface{}) entryKind {
	entryType, _ := content["entryType"].(string)

	switch entryType {
	case contentCursor:
		return entryCursor
	case contentItem:
		return entryItem
	case contentModule:
		return entryThread
	}

	// Some payload variants omit entryType on cursors; the entryId prefix
	// still identifies them.
	if strings.HasPrefix(entryID, "cursor-") {
		return entryCursor
	}
	return entryUnknown
}

// threadItems returns the nested sub-item contents of a thread entry whose
// entryId carries the tweet marker, preserving order.
func threadItems(content map[string]interface{}) []map[string]interface{} {
	items, ok := content["items"].([]interface{})
	if !ok {
		return nil
	}

	out := make([]map[string]interface{}, 0, len(items))
	for _, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := item["entryId"].(string)
		if !strings.Contains(id, tweetMarker) {
			continue
		}
		inner, ok := item["item"].(map[string]interface{})
		if !ok {
			continue
		}
		if ic, ok := inner["itemContent"].(map[string]interface{}); ok {
			out = append(out, ic)
		}
	}
	return out
}
