package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type KeywordRoute struct {
	Keyword   string
	ChannelID string
}

// KeywordMap is the channelKeywords object kept in file order. Lookups are
// first-match, so the order of the JSON object is significant.
type KeywordMap []KeywordRoute

// Match compares case-insensitively; keywords keep their spelling from the file.
func (m KeywordMap) Match(lowered string) (string, bool) {
	for _, route := range m {
		if strings.Contains(lowered, strings.ToLower(route.Keyword)) {
			return route.ChannelID, true
		}
	}
	return "", false
}

func (m *KeywordMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("channelKeywords must be an object")
	}

	var routes KeywordMap
	seen := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("channelKeywords: unexpected key %v", keyTok)
		}
		var channelID string
		if err := dec.Decode(&channelID); err != nil {
			return fmt.Errorf("channelKeywords[%q]: %w", key, err)
		}
		// A repeated key keeps its first position and takes the last value.
		if idx, dup := seen[key]; dup {
			routes[idx].ChannelID = channelID
			continue
		}
		seen[key] = len(routes)
		routes = append(routes, KeywordRoute{Keyword: key, ChannelID: channelID})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = routes
	return nil
}

func (m KeywordMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, route := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(route.Keyword)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(route.ChannelID)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
