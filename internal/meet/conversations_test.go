package meet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tanisma/internal/core"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpenLogEmptyDirectory(t *testing.T) {
	log, err := OpenLog(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, log.Snapshot())
}

func TestLogRoundTripIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	log, err := OpenLog(dir)
	require.NoError(t, err)

	require.NoError(t, log.Insert(Conversation{
		ID:         "conv-1",
		PersonName: "Elif Yılmaz",
		CreatedAt:  1700000000000,
		Messages: []ChatMessage{
			{ID: "m1", Role: core.RoleThem, Text: "Merhaba ben Elif. Tanıştığıma sevindim. Sen neler yapıyorsun?", CreatedAt: 1700000000000},
			{ID: "m2", Role: core.RoleMe, Text: "selam!", CreatedAt: 1700000001000},
		},
	}))

	path := filepath.Join(dir, "tanma_conversations.json")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// Reload and save with no mutation: the file must not change.
	reloaded, err := OpenLog(dir)
	require.NoError(t, err)
	require.NoError(t, reloaded.Save())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestLogInsertPrepends(t *testing.T) {
	log, err := OpenLog(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, log.Insert(Conversation{ID: "conv-1", PersonName: "Elif Yılmaz"}))
	require.NoError(t, log.Insert(Conversation{ID: "conv-2", PersonName: "Zeynep Kaya"}))

	snap := log.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "conv-2", snap[0].ID)
	assert.Equal(t, "conv-1", snap[1].ID)
}

func TestLogAppendMovesConversationToFront(t *testing.T) {
	log, err := OpenLog(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, log.Insert(Conversation{ID: "conv-1", PersonName: "Elif Yılmaz"}))
	require.NoError(t, log.Insert(Conversation{ID: "conv-2", PersonName: "Zeynep Kaya"}))

	require.NoError(t, log.Append("conv-1", ChatMessage{ID: "m1", Role: core.RoleMe, Text: "selam", CreatedAt: time.Now().UnixMilli()}))

	snap := log.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "conv-1", snap[0].ID)
	require.Len(t, snap[0].Messages, 1)
	assert.Equal(t, "selam", snap[0].Messages[0].Text)
}

func TestLogAppendIgnoresUnknownID(t *testing.T) {
	log, err := OpenLog(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, log.Insert(Conversation{ID: "conv-1", PersonName: "Elif Yılmaz"}))

	require.NoError(t, log.Append("no-such-conv", ChatMessage{ID: "m1", Role: core.RoleMe, Text: "selam"}))

	snap := log.Snapshot()
	require.Len(t, snap, 1)
	assert.Empty(t, snap[0].Messages)
}

func TestLogMigratesLegacyHistory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tanma_chat_messages.json", `[
		{"id":"m1","role":"assistant","text":"Merhaba!","createdAt":1700000000000},
		{"id":"m2","role":"user","text":"selam","createdAt":1700000001000}
	]`)

	log, err := OpenLog(dir)
	require.NoError(t, err)

	snap := log.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "Zeynep", snap[0].PersonName)
	require.Len(t, snap[0].Messages, 2)
	assert.Equal(t, core.RoleThem, snap[0].Messages[0].Role)
	assert.Equal(t, core.RoleMe, snap[0].Messages[1].Role)

	// Migration persists to the new file.
	_, err = os.Stat(filepath.Join(dir, "tanma_conversations.json"))
	assert.NoError(t, err)
}

func TestLogCorruptFileLeavesStateUntouched(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tanma_conversations.json", `{not json`)

	log, err := OpenLog(dir)
	require.NoError(t, err)
	assert.Empty(t, log.Snapshot())

	// The corrupt file is not overwritten.
	raw, err := os.ReadFile(filepath.Join(dir, "tanma_conversations.json"))
	require.NoError(t, err)
	assert.Equal(t, `{not json`, string(raw))
}

func TestLogNormalizesAutoNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tanma_conversations.json", `[
		{"id":"conv-1","personName":"Kişi 2","createdAt":1700000000000,"messages":[
			{"id":"m1","role":"them","text":"Merhaba ben Kişi 2. Tanıştığıma sevindim. Sen neler yapıyorsun?","createdAt":1700000000000}
		]},
		{"id":"conv-2","personName":"Elif Yılmaz","createdAt":1700000001000,"messages":[]}
	]`)

	log, err := OpenLog(dir)
	require.NoError(t, err)

	snap := log.Snapshot()
	require.Len(t, snap, 2)

	// The auto-generated name is replaced with a full persona name and the
	// opener is rewritten to match.
	assert.NotEqual(t, "Kişi 2", snap[0].PersonName)
	assert.Contains(t, snap[0].PersonName, " ")
	assert.NotContains(t, snap[0].Messages[0].Text, "Kişi 2")
	assert.Contains(t, snap[0].Messages[0].Text, snap[0].PersonName)

	// Real names survive untouched.
	assert.Equal(t, "Elif Yılmaz", snap[1].PersonName)
}

func TestPickPersonNameAvoidsUsedNames(t *testing.T) {
	// Exhausting nearly every combination still yields an unused one while
	// any remain.
	used := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		name := PickPersonName(used)
		_, clash := used[strings.ToLower(name)]
		assert.False(t, clash, "duplicate pick %q after %d names", name, i)
		used[strings.ToLower(name)] = struct{}{}
	}
}

func TestPickPersonNameShape(t *testing.T) {
	name := PickPersonName(nil)
	parts := strings.Fields(name)
	assert.Len(t, parts, 2)
}
