package llm

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoJSON is returned when a reply contains no JSON object.
var ErrNoJSON = eris.New("no JSON object in response")

// ExtractJSON decodes the outermost {...} span of text into v. Replies often
// wrap the object in prose or code fences.
func ExtractJSON(text string, v any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ErrNoJSON
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return eris.Wrap(err, "decode JSON object")
	}
	return nil
}
