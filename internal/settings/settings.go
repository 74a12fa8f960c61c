package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"guildkeeper/internal/utils"
)

const UserPlaceholder = "{user}"

var ErrInvalid = errors.New("invalid settings")

type CustomCommand struct {
	Command  string `json:"command"`
	Response string `json:"response"`
}

// Settings is loaded once and never mutated afterwards. Share it by pointer.
type Settings struct {
	Status          string          `json:"status"`
	Activity        string          `json:"activity"`
	AvatarURL       string          `json:"avatarURL,omitempty"`
	WelcomeMessage  string          `json:"welcomeMessage"`
	AutoRoleID      string          `json:"autoRoleId,omitempty"`
	DiscordLink     string          `json:"discordLink"`
	ChannelKeywords KeywordMap      `json:"channelKeywords"`
	CustomCommands  []CustomCommand `json:"customCommands"`

	// extra keeps fields this version does not know so a dashboard save
	// writes them back.
	extra map[string]json.RawMessage
}

var knownFields = []string{"status", "activity", "avatarURL", "welcomeMessage", "autoRoleId", "discordLink", "channelKeywords", "customCommands"}

func isKnownField(name string) bool {
	for _, known := range knownFields {
		if strings.EqualFold(name, known) {
			return true
		}
	}
	return false
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	type fields Settings
	var decoded fields
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Settings(decoded)
	s.extra = nil
	for name, value := range raw {
		if isKnownField(name) {
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, value); err != nil {
			return err
		}
		if s.extra == nil {
			s.extra = make(map[string]json.RawMessage)
		}
		s.extra[name] = compact.Bytes()
	}
	return nil
}

func (s Settings) MarshalJSON() ([]byte, error) {
	type fields Settings
	data, err := json.Marshal(fields(s))
	if err != nil || len(s.extra) == 0 {
		return data, err
	}

	names := make([]string, 0, len(s.extra))
	for name := range s.extra {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.Write(data[:len(data)-1])
	for _, name := range names {
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(s.extra[name])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load settings %s: %w", path, err)
	}
	return s, nil
}

func Parse(data []byte) (*Settings, error) {
	var s Settings
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	for i, cmd := range s.CustomCommands {
		if strings.TrimSpace(cmd.Command) == "" {
			return fmt.Errorf("%w: customCommands[%d] has an empty command", ErrInvalid, i)
		}
	}
	for _, route := range s.ChannelKeywords {
		if strings.TrimSpace(route.Keyword) == "" {
			return fmt.Errorf("%w: channelKeywords has an empty keyword", ErrInvalid)
		}
		if route.ChannelID == "" {
			return fmt.Errorf("%w: keyword %q has no channel", ErrInvalid, route.Keyword)
		}
	}
	return nil
}

func (s *Settings) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func Save(path string, s *Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := s.Encode()
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, data)
}

func (s *Settings) CustomResponse(name string) (string, bool) {
	for _, cmd := range s.CustomCommands {
		if cmd.Command == name {
			return cmd.Response, true
		}
	}
	return "", false
}

func (s *Settings) Welcome(mention string) (string, bool) {
	if s.WelcomeMessage == "" {
		return "", false
	}
	return strings.Replace(s.WelcomeMessage, UserPlaceholder, mention, 1), true
}
