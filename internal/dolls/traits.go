package dolls

import (
	"encoding/json"
	"strings"
)

// ParseTraits decodes a serialized trait list. Malformed input decodes to an
// empty list with ok == false; it never fails the caller.
func ParseTraits(raw string) (traits []string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return []string{}, true
	}
	if err := json.Unmarshal([]byte(raw), &traits); err != nil {
		return []string{}, false
	}
	if traits == nil {
		traits = []string{}
	}
	return traits, true
}

func encodeTraits(traits []string) string {
	if traits == nil {
		traits = []string{}
	}
	b, err := json.Marshal(traits)
	if err != nil {
		return "[]"
	}
	return string(b)
}
