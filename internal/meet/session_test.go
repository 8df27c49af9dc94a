package meet

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tanisma/internal/core"
	"tanisma/internal/logging"
)

type fakeBackend struct {
	mu        sync.Mutex
	locations [][2]float64
	locErr    error

	chatReply core.Reply
	chatErr   error
	chatCalls int
	block     chan struct{} // when non-nil, Chat waits on it
}

func (f *fakeBackend) UpdateLocation(_ context.Context, lat, lon float64) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locErr != nil {
		return nil, f.locErr
	}
	f.locations = append(f.locations, [2]float64{lat, lon})
	return nil, nil
}

func (f *fakeBackend) Chat(_ context.Context, _ string, _ []core.Message) (core.Reply, error) {
	f.mu.Lock()
	f.chatCalls++
	block := f.block
	reply, err := f.chatReply, f.chatErr
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return reply, err
}

type failingGeolocator struct{}

func (failingGeolocator) Locate(context.Context) (float64, float64, error) {
	return 0, 0, errors.New("position unavailable")
}

func fastConfig() SessionConfig {
	return SessionConfig{
		SearchDuration: 60 * time.Millisecond,
		TickInterval:   15 * time.Millisecond,
		LocateTimeout:  100 * time.Millisecond,
	}
}

func newTestSession(t *testing.T, backend Backend) (*Session, *Log) {
	t.Helper()
	log, err := OpenLog(t.TempDir())
	require.NoError(t, err)
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})))
	return NewSessionWithConfig(backend, StaticGeolocator{Latitude: 41.0082, Longitude: 28.9784}, log, logger, fastConfig()), log
}

func TestStartMeetingReportsLocationAndCountsDown(t *testing.T) {
	backend := &fakeBackend{chatReply: core.Reply{Text: "Merhaba!", Source: "gemini"}}
	session, log := newTestSession(t, backend)

	require.NoError(t, session.StartMeeting(context.Background()))

	assert.Equal(t, PhaseSearching, session.Phase())
	left, total := session.Progress()
	assert.Equal(t, 4, total)
	assert.LessOrEqual(t, left, total)

	require.Len(t, backend.locations, 1)
	assert.InDelta(t, 41.0082, backend.locations[0][0], 1e-9)

	// The countdown ends in a chat with exactly one new conversation.
	assert.Eventually(t, func() bool {
		return session.Phase() == PhaseChat
	}, time.Second, 5*time.Millisecond)

	snap := log.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, snap[0].ID, session.ActiveConversationID())
	require.Len(t, snap[0].Messages, 1)
	assert.Equal(t, core.RoleThem, snap[0].Messages[0].Role)
	assert.Contains(t, snap[0].Messages[0].Text, "Merhaba ben ")
	assert.Contains(t, snap[0].Messages[0].Text, "Tanıştığıma sevindim")
	assert.Contains(t, snap[0].PersonName, " ")
}

func TestStartMeetingSurvivesLocationUploadFailure(t *testing.T) {
	backend := &fakeBackend{locErr: errors.New("server down")}
	session, _ := newTestSession(t, backend)

	require.NoError(t, session.StartMeeting(context.Background()))

	assert.Equal(t, PhaseSearching, session.Phase())
}

func TestStartMeetingFailsWhenLocatorFails(t *testing.T) {
	backend := &fakeBackend{}
	session, log := newTestSession(t, backend)
	session.locator = failingGeolocator{}

	err := session.StartMeeting(context.Background())

	require.Error(t, err)
	assert.Equal(t, PhaseIdle, session.Phase())
	assert.Empty(t, log.Snapshot())
}

func TestStartMeetingRejectsConcurrentSearch(t *testing.T) {
	backend := &fakeBackend{}
	session, _ := newTestSession(t, backend)

	require.NoError(t, session.StartMeeting(context.Background()))
	assert.Error(t, session.StartMeeting(context.Background()))
}

func TestCancelSearchProducesNothing(t *testing.T) {
	backend := &fakeBackend{}
	session, log := newTestSession(t, backend)

	require.NoError(t, session.StartMeeting(context.Background()))
	session.CancelSearch()

	assert.Equal(t, PhaseIdle, session.Phase())
	left, total := session.Progress()
	assert.Zero(t, left)
	assert.Zero(t, total)

	// Even after the original countdown would have elapsed, no
	// conversation appears.
	time.Sleep(fastConfig().SearchDuration + 30*time.Millisecond)
	assert.Empty(t, log.Snapshot())
	assert.Equal(t, PhaseIdle, session.Phase())
}

func TestCancelSearchOutsideSearchingIsNoop(t *testing.T) {
	backend := &fakeBackend{}
	session, _ := newTestSession(t, backend)

	session.CancelSearch()
	assert.Equal(t, PhaseIdle, session.Phase())
}

func TestOpenChatUnknownConversation(t *testing.T) {
	backend := &fakeBackend{}
	session, _ := newTestSession(t, backend)

	assert.Error(t, session.OpenChat("no-such-conv"))
	assert.Equal(t, PhaseIdle, session.Phase())
}

func TestSendAppendsOptimisticallyAndReceivesReply(t *testing.T) {
	backend := &fakeBackend{chatReply: core.Reply{Text: "İyiyim, sen?", Source: "gemini"}}
	session, log := newTestSession(t, backend)
	require.NoError(t, log.Insert(Conversation{ID: "conv-1", PersonName: "Elif Yılmaz"}))
	require.NoError(t, session.OpenChat("conv-1"))

	require.True(t, session.Send(context.Background(), "conv-1", "selam, nasılsın?"))
	session.WaitReplies()

	conv, ok := log.Get("conv-1")
	require.True(t, ok)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, core.RoleMe, conv.Messages[0].Role)
	assert.Equal(t, "selam, nasılsın?", conv.Messages[0].Text)
	assert.Equal(t, core.RoleThem, conv.Messages[1].Role)
	assert.Equal(t, "İyiyim, sen?", conv.Messages[1].Text)
}

func TestSendDropsWhileReplyPending(t *testing.T) {
	block := make(chan struct{})
	backend := &fakeBackend{chatReply: core.Reply{Text: "tamam", Source: "gemini"}, block: block}
	session, log := newTestSession(t, backend)
	require.NoError(t, log.Insert(Conversation{ID: "conv-1", PersonName: "Elif Yılmaz"}))

	require.True(t, session.Send(context.Background(), "conv-1", "ilk mesaj"))

	// While the reply is pending, further sends are dropped, not queued.
	assert.False(t, session.Send(context.Background(), "conv-1", "ikinci mesaj"))

	close(block)
	session.WaitReplies()

	conv, _ := log.Get("conv-1")
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "ilk mesaj", conv.Messages[0].Text)

	// Once the reply landed, sending works again.
	backend.mu.Lock()
	backend.block = nil
	backend.mu.Unlock()
	assert.True(t, session.Send(context.Background(), "conv-1", "üçüncü mesaj"))
	session.WaitReplies()
}

func TestSendFallsBackToLocalReplyOnFailure(t *testing.T) {
	backend := &fakeBackend{chatErr: errors.New("server unreachable")}
	session, log := newTestSession(t, backend)
	require.NoError(t, log.Insert(Conversation{ID: "conv-1", PersonName: "Elif Yılmaz"}))

	require.True(t, session.Send(context.Background(), "conv-1", "selam"))
	session.WaitReplies()

	conv, _ := log.Get("conv-1")
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, core.RoleThem, conv.Messages[1].Role)
	// The greeting keyword gets the deterministic on-device answer with
	// the persona's first name.
	assert.Equal(t, "Merhaba! Ben Elif. Nasılsın?", conv.Messages[1].Text)
}

func TestSendRejectsBlankAndUnknown(t *testing.T) {
	backend := &fakeBackend{}
	session, log := newTestSession(t, backend)
	require.NoError(t, log.Insert(Conversation{ID: "conv-1", PersonName: "Elif Yılmaz"}))

	assert.False(t, session.Send(context.Background(), "conv-1", "   "))
	assert.False(t, session.Send(context.Background(), "no-such-conv", "selam"))
	assert.Zero(t, backend.chatCalls)
}

func TestCloseChatReturnsToIdle(t *testing.T) {
	backend := &fakeBackend{}
	session, log := newTestSession(t, backend)
	require.NoError(t, log.Insert(Conversation{ID: "conv-1", PersonName: "Elif Yılmaz"}))
	require.NoError(t, session.OpenChat("conv-1"))

	session.CloseChat()

	assert.Equal(t, PhaseIdle, session.Phase())
	assert.Empty(t, session.ActiveConversationID())
}

func TestAutoReplyKeywords(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"merhaba", "Merhaba! Ben Elif. Nasılsın?"},
		{"naber", "İyiyim, teşekkürler. Sen nasılsın?"},
		{"nerelisin", "İstanbul'da yaşıyorum. Sen nerede yaşıyorsun?"},
		{"kaç yaşındasın", "Yaş sadece bir sayı bence. Sen kendini kaç hissediyorsun?"},
		{"müzik sever misin", "Müzik dinlemeyi çok severim. En son hangi şarkıyı dinledin?"},
		{"dizi önerir misin", "Film gecelerine bayılırım. En sevdiğin film ne?"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, autoReply(tt.input, "Elif"), "input %q", tt.input)
	}

	fallback := autoReply("kuantum fiziği", "Elif")
	assert.Contains(t, autoReplyStarters, fallback)
}

func TestFirstNameOf(t *testing.T) {
	assert.Equal(t, "Elif", firstNameOf("Elif Yılmaz"))
	assert.Equal(t, "Zeynep", firstNameOf("Zeynep"))
	assert.True(t, strings.HasPrefix(firstNameOf("Elif Yılmaz"), "Elif"))
}
