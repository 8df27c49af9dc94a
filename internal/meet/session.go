package meet

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"tanisma/internal/core"
	"tanisma/internal/logging"
)

// Phase is the session's current screen state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLocating  Phase = "locating"
	PhaseSearching Phase = "searching"
	PhaseChat      Phase = "chat"
)

// Geolocator resolves the device position before a search starts.
type Geolocator interface {
	Locate(ctx context.Context) (latitude, longitude float64, err error)
}

// StaticGeolocator always reports a fixed position.
type StaticGeolocator struct {
	Latitude  float64
	Longitude float64
}

func (g StaticGeolocator) Locate(_ context.Context) (float64, float64, error) {
	return g.Latitude, g.Longitude, nil
}

// Backend is the slice of the server API the session exercises.
type Backend interface {
	UpdateLocation(ctx context.Context, latitude, longitude float64) (user any, err error)
	Chat(ctx context.Context, personName string, history []core.Message) (core.Reply, error)
}

// apiBackend adapts *API to the Backend interface.
type apiBackend struct {
	api *API
}

func (b apiBackend) UpdateLocation(ctx context.Context, latitude, longitude float64) (any, error) {
	return b.api.UpdateLocation(ctx, latitude, longitude)
}

func (b apiBackend) Chat(ctx context.Context, personName string, history []core.Message) (core.Reply, error) {
	return b.api.Chat(ctx, personName, history)
}

// SessionConfig holds the search timing knobs. Tests shrink these.
type SessionConfig struct {
	SearchDuration time.Duration
	TickInterval   time.Duration
	LocateTimeout  time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SearchDuration: 12 * time.Second,
		TickInterval:   time.Second,
		LocateTimeout:  15 * time.Second,
	}
}

// Session drives the meet-a-stranger flow: locate, search with a visible
// countdown, then open a chat with a persona whose replies come from the
// server. All exported methods are safe for concurrent use.
type Session struct {
	backend Backend
	locator Geolocator
	log     *Log
	logger  logging.Logger
	cfg     SessionConfig

	mu           sync.Mutex
	phase        Phase
	secondsLeft  int
	secondsTotal int
	searchTimer  *time.Timer
	searchTicker *time.Ticker
	tickerDone   chan struct{}
	activeConvID string
	inFlight     map[string]bool

	// sendWG tracks in-flight reply fetches so tests can wait for them.
	sendWG sync.WaitGroup
}

func NewSession(api *API, locator Geolocator, log *Log, logger logging.Logger) *Session {
	return NewSessionWithConfig(apiBackend{api: api}, locator, log, logger, DefaultSessionConfig())
}

func NewSessionWithConfig(backend Backend, locator Geolocator, log *Log, logger logging.Logger, cfg SessionConfig) *Session {
	return &Session{
		backend:  backend,
		locator:  locator,
		log:      log,
		logger:   logger,
		cfg:      cfg,
		phase:    PhaseIdle,
		inFlight: make(map[string]bool),
	}
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Progress reports the countdown as seconds remaining and total.
func (s *Session) Progress() (left, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secondsLeft, s.secondsTotal
}

func (s *Session) ActiveConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeConvID
}

// StartMeeting resolves the position, reports it to the server and starts
// the countdown. The search runs even when the location upload fails; the
// failure is only logged.
func (s *Session) StartMeeting(ctx context.Context) error {
	s.mu.Lock()
	if s.phase == PhaseLocating || s.phase == PhaseSearching {
		s.mu.Unlock()
		return fmt.Errorf("a search is already running")
	}
	s.phase = PhaseLocating
	s.mu.Unlock()

	locateCtx, cancel := context.WithTimeout(ctx, s.cfg.LocateTimeout)
	defer cancel()

	lat, lon, err := s.locator.Locate(locateCtx)
	if err != nil {
		s.mu.Lock()
		s.phase = PhaseIdle
		s.mu.Unlock()
		return fmt.Errorf("failed to resolve location: %w", err)
	}

	if _, err := s.backend.UpdateLocation(ctx, lat, lon); err != nil {
		s.logger.Warn(ctx, "location upload failed", "error", err)
	}

	s.beginSearch()
	return nil
}

func (s *Session) beginSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopSearchLocked()

	total := int(s.cfg.SearchDuration / s.cfg.TickInterval)
	s.phase = PhaseSearching
	s.secondsLeft = total
	s.secondsTotal = total
	s.searchTimer = time.AfterFunc(s.cfg.SearchDuration, s.finishSearch)
	s.searchTicker = time.NewTicker(s.cfg.TickInterval)
	s.tickerDone = make(chan struct{})

	go func(ticker *time.Ticker, done chan struct{}) {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.mu.Lock()
				if s.phase == PhaseSearching && s.secondsLeft > 0 {
					s.secondsLeft--
				}
				s.mu.Unlock()
			}
		}
	}(s.searchTicker, s.tickerDone)
}

// stopSearchLocked releases the countdown timer and ticker. Caller holds mu.
func (s *Session) stopSearchLocked() {
	if s.searchTimer != nil {
		s.searchTimer.Stop()
		s.searchTimer = nil
	}
	if s.searchTicker != nil {
		s.searchTicker.Stop()
		close(s.tickerDone)
		s.searchTicker = nil
		s.tickerDone = nil
	}
}

// finishSearch creates the conversation when the countdown ran out. A search
// cancelled in the meantime produces nothing.
func (s *Session) finishSearch() {
	s.mu.Lock()
	if s.phase != PhaseSearching {
		s.mu.Unlock()
		return
	}
	s.stopSearchLocked()
	s.secondsLeft = 0

	name := PickPersonName(s.log.PersonaNamesLower())
	now := time.Now().UnixMilli()
	conv := Conversation{
		ID:         fmt.Sprintf("conv_%d_%d", now, rand.IntN(100000)),
		PersonName: name,
		CreatedAt:  now,
		Messages: []ChatMessage{{
			ID:        fmt.Sprintf("msg_%d_%d", now, rand.IntN(100000)),
			Role:      core.RoleThem,
			Text:      fmt.Sprintf("Merhaba ben %s. Tanıştığıma sevindim. Sen neler yapıyorsun?", firstNameOf(name)),
			CreatedAt: now,
		}},
	}
	s.phase = PhaseChat
	s.activeConvID = conv.ID
	s.mu.Unlock()

	s.log.Insert(conv)
}

// CancelSearch aborts a running countdown. Outside the searching phase it
// does nothing.
func (s *Session) CancelSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseSearching {
		return
	}
	s.stopSearchLocked()
	s.phase = PhaseIdle
	s.secondsLeft = 0
	s.secondsTotal = 0
}

// OpenChat switches to an existing conversation.
func (s *Session) OpenChat(conversationID string) error {
	if _, ok := s.log.Get(conversationID); !ok {
		return fmt.Errorf("conversation not found: %s", conversationID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseChat
	s.activeConvID = conversationID
	return nil
}

func (s *Session) CloseChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseChat {
		return
	}
	s.phase = PhaseIdle
	s.activeConvID = ""
}

// Send appends the user's message and fetches the reply in the background.
// While a reply for the conversation is pending, further sends are dropped
// and Send reports false.
func (s *Session) Send(ctx context.Context, conversationID, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	conv, ok := s.log.Get(conversationID)
	if !ok {
		return false
	}

	s.mu.Lock()
	if s.inFlight[conversationID] {
		s.mu.Unlock()
		return false
	}
	s.inFlight[conversationID] = true
	s.mu.Unlock()

	now := time.Now().UnixMilli()
	s.log.Append(conversationID, ChatMessage{
		ID:        fmt.Sprintf("msg_%d_%d", now, rand.IntN(100000)),
		Role:      core.RoleMe,
		Text:      text,
		CreatedAt: now,
	})

	history := make([]core.Message, 0, len(conv.Messages)+1)
	for _, m := range conv.Messages {
		history = append(history, core.Message{Role: m.Role, Text: m.Text})
	}
	history = append(history, core.Message{Role: core.RoleMe, Text: text})

	s.sendWG.Add(1)
	go func() {
		defer s.sendWG.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, conversationID)
			s.mu.Unlock()
		}()

		replyText := ""
		reply, err := s.backend.Chat(ctx, conv.PersonName, history)
		if err != nil || strings.TrimSpace(reply.Text) == "" {
			if err != nil {
				s.logger.Warn(ctx, "chat request failed, replying locally", "error", err)
			}
			replyText = autoReply(text, firstNameOf(conv.PersonName))
		} else {
			replyText = reply.Text
		}

		replyAt := time.Now().UnixMilli()
		s.log.Append(conversationID, ChatMessage{
			ID:        fmt.Sprintf("msg_%d_%d", replyAt, rand.IntN(100000)),
			Role:      core.RoleThem,
			Text:      replyText,
			CreatedAt: replyAt,
		})
	}()
	return true
}

// WaitReplies blocks until pending reply fetches complete.
func (s *Session) WaitReplies() {
	s.sendWG.Wait()
}

func firstNameOf(personName string) string {
	if i := strings.IndexByte(personName, ' '); i > 0 {
		return personName[:i]
	}
	return personName
}

var autoReplyStarters = []string{
	"Anladım. Biraz daha anlatmak ister misin?",
	"İlginç, devam et.",
	"Bunu hiç böyle düşünmemiştim.",
	"Peki sen bu konuda ne hissediyorsun?",
	"Güzel, başka neler yapıyorsun?",
}

// autoReply produces a persona answer on the device when the server cannot.
func autoReply(text, firstName string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAnyOf(lower, "selam", "merhaba", "hey"):
		return fmt.Sprintf("Merhaba! Ben %s. Nasılsın?", firstName)
	case containsAnyOf(lower, "nasılsın", "naber", "napıyorsun"):
		return "İyiyim, teşekkürler. Sen nasılsın?"
	case containsAnyOf(lower, "nereden", "nerelisin"):
		return "İstanbul'da yaşıyorum. Sen nerede yaşıyorsun?"
	case strings.Contains(lower, "yaş"):
		return "Yaş sadece bir sayı bence. Sen kendini kaç hissediyorsun?"
	case containsAnyOf(lower, "müzik", "şarkı", "spotify"):
		return "Müzik dinlemeyi çok severim. En son hangi şarkıyı dinledin?"
	case containsAnyOf(lower, "film", "dizi"):
		return "Film gecelerine bayılırım. En sevdiğin film ne?"
	}
	return autoReplyStarters[rand.IntN(len(autoReplyStarters))]
}

func containsAnyOf(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
