// Package extractor locates the timeline instruction list inside a parsed
// response payload and flattens its entries into normalized domain objects.
package extractor

import (
	"github.com/feedscope/feedscope/matcher"
)

// Instruction is one element of the ordered instruction list returned by a
// timeline endpoint. Only TimelineAddEntries instructions carry entries;
// other tags (clear-cache, terminate, pin) are ignored but never fatal.
type Instruction map[string]interface{}

// Type returns the instruction's discriminant tag.
func (in Instruction) Type() string {
	t, _ := in["type"].(string)
	return t
}

const instructionAddEntries = "TimelineAddEntries"

// accessorPaths maps each schema to the path of its instruction list inside
// the parsed response.
var accessorPaths = map[matcher.Schema][]string{
	matcher.SchemaHomeTimeline: {"data", "home", "home_timeline_urt", "instructions"},
	matcher.SchemaUserTweets:   {"data", "user", "result", "timeline_v2", "timeline", "instructions"},
	matcher.SchemaLikes:        {"data", "user", "result", "timeline_v2", "timeline", "instructions"},
	matcher.SchemaBookmarks:    {"data", "bookmark_timeline_v2", "timeline", "instructions"},
	matcher.SchemaFollowing:    {"data", "user", "result", "timeline", "timeline", "instructions"},
	matcher.SchemaSearch:       {"data", "search_by_raw_query", "search_timeline", "timeline", "instructions"},
	matcher.SchemaTweetDetail:  {"data", "threaded_conversation_with_injections_v2", "instructions"},
}

// Instructions walks the schema's accessor path into the parsed payload and
// returns the ordered instruction list. A missing path segment yields a
// *ShapeMismatchError; the pipeline treats that as zero records.
func Instructions(schema matcher.Schema, payload map[string]interface{}) ([]Instruction, error) {
	path, ok := accessorPaths[schema]
	if !ok {
		return nil, &ShapeMismatchError{Schema: string(schema), Missing: "accessor"}
	}

	node := payload
	for i, seg := range path[:len(path)-1] {
		next, ok := node[seg].(map[string]interface{})
		if !ok {
			return nil, &ShapeMismatchError{Schema: string(schema), Missing: joinPath(path[:i+1])}
		}
		node = next
	}

	last := path[len(path)-1]
	raw, ok := node[last].([]interface{})
	if !ok {
		return nil, &ShapeMismatchError{Schema: string(schema), Missing: joinPath(path)}
	}

	instructions := make([]Instruction, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			instructions = append(instructions, Instruction(m))
		}
	}
	return instructions, nil
}

func joinPath(segs []string) string {
	out := ""
	for i, s := range segs {
		if i > 0 {
			out += "."
		}
		out += s
	}
	return out
}
