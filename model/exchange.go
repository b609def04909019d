package model

import "encoding/json"

// Exchange is one intercepted network call: the request URL and body plus
// the response that came back. Exchanges are ephemeral; they exist only for
// the duration of a single interception and are never persisted verbatim.
// Bodies are raw JSON so captured exchanges can be replayed from a file.
type Exchange struct {
	URL          string          `json:"url"`
	RequestBody  json.RawMessage `json:"request_body,omitempty"`
	ResponseBody json.RawMessage `json:"response_body"`
	Status       int             `json:"status"`
}
