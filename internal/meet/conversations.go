package meet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tanisma/internal/core"
)

const (
	conversationsFile = "tanma_conversations.json"
	legacyChatFile    = "tanma_chat_messages.json"
)

type ChatMessage struct {
	ID        string    `json:"id"`
	Role      core.Role `json:"role"`
	Text      string    `json:"text"`
	CreatedAt int64     `json:"createdAt"` // unix milliseconds
}

type Conversation struct {
	ID         string        `json:"id"`
	PersonName string        `json:"personName"`
	CreatedAt  int64         `json:"createdAt"` // unix milliseconds
	Messages   []ChatMessage `json:"messages"`
}

// legacyMessage is the shape of the old single-conversation history file.
type legacyMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

// autoNamePattern matches persona names produced by an older build:
// either a trailing numeric suffix or a single token without a surname.
var autoNamePattern = regexp.MustCompile(`\s\d+$`)

// Log is the on-device conversation store. The backing file is read once
// at open and rewritten in full on every change; there are no concurrent
// writers.
type Log struct {
	mu            sync.Mutex
	path          string
	legacyPath    string
	conversations []Conversation
}

func OpenLog(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	l := &Log{
		path:       filepath.Join(dir, conversationsFile),
		legacyPath: filepath.Join(dir, legacyChatFile),
	}
	l.load()
	return l, nil
}

// load reads the conversation file, falling back to the legacy
// single-conversation format. Any parse failure leaves existing state
// untouched.
func (l *Log) load() {
	if raw, err := os.ReadFile(l.path); err == nil {
		var parsed []Conversation
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return
		}
		changed := l.normalizePersonaNames(parsed)
		l.conversations = parsed
		if changed {
			l.save()
		}
		return
	}

	raw, err := os.ReadFile(l.legacyPath)
	if err != nil {
		return
	}
	var legacy []legacyMessage
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return
	}

	migrated := make([]ChatMessage, 0, len(legacy))
	for _, m := range legacy {
		role := core.RoleThem
		if m.Role == "user" {
			role = core.RoleMe
		}
		id := m.ID
		if id == "" {
			id = uuid.NewString()
		}
		migrated = append(migrated, ChatMessage{ID: id, Role: role, Text: m.Text, CreatedAt: m.CreatedAt})
	}
	l.conversations = []Conversation{{
		ID:         uuid.NewString(),
		PersonName: "Zeynep",
		CreatedAt:  time.Now().UnixMilli(),
		Messages:   migrated,
	}}
	l.save()
}

// normalizePersonaNames re-picks persona names that look auto-generated
// and rewrites the opening message accordingly. Returns whether anything
// changed.
func (l *Log) normalizePersonaNames(conversations []Conversation) bool {
	used := make(map[string]struct{})
	changed := false
	for i := range conversations {
		c := &conversations[i]
		oldName := strings.TrimSpace(c.PersonName)
		name := oldName
		if autoNamePattern.MatchString(name) || !strings.Contains(name, " ") {
			name = PickPersonName(used)
			changed = true
		}
		used[strings.ToLower(name)] = struct{}{}

		if name != oldName {
			c.PersonName = name
			if len(c.Messages) > 0 && c.Messages[0].Role == core.RoleThem {
				c.Messages[0].Text = strings.Replace(c.Messages[0].Text, oldName, name, 1)
			}
		}
	}
	return changed
}

// save rewrites the whole file. Callers hold l.mu or run during load.
func (l *Log) save() error {
	data, err := json.MarshalIndent(l.conversations, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode conversations: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write conversations: %w", err)
	}
	return nil
}

// Save persists the current state. Exposed so a reload/save cycle with no
// mutation can be verified to be byte-identical.
func (l *Log) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save()
}

// Snapshot returns a deep copy of all conversations, most recent first.
func (l *Log) Snapshot() []Conversation {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Conversation, len(l.conversations))
	for i, c := range l.conversations {
		out[i] = c
		out[i].Messages = append([]ChatMessage(nil), c.Messages...)
	}
	return out
}

func (l *Log) Get(id string) (Conversation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range l.conversations {
		if c.ID == id {
			c.Messages = append([]ChatMessage(nil), c.Messages...)
			return c, true
		}
	}
	return Conversation{}, false
}

// PersonaNamesLower returns the lowercased persona names currently in
// use, for collision avoidance when picking a new persona.
func (l *Log) PersonaNamesLower() map[string]struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	used := make(map[string]struct{}, len(l.conversations))
	for _, c := range l.conversations {
		used[strings.ToLower(c.PersonName)] = struct{}{}
	}
	return used
}

// Insert adds a new conversation at the front and persists.
func (l *Log) Insert(c Conversation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.conversations = append([]Conversation{c}, l.conversations...)
	return l.save()
}

// Append adds a message to a conversation, moves that conversation to
// the front, and persists. Unknown IDs are ignored.
func (l *Log) Append(conversationID string, msg ChatMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := -1
	for i, c := range l.conversations {
		if c.ID == conversationID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}

	target := l.conversations[idx]
	target.Messages = append(target.Messages, msg)
	l.conversations = append(l.conversations[:idx], l.conversations[idx+1:]...)
	l.conversations = append([]Conversation{target}, l.conversations...)
	return l.save()
}
