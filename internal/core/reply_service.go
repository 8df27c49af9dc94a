package core

import (
	"context"
	"errors"
	"fmt"

	"tanisma/internal/logging"
)

const (
	// historyLimit caps how much conversation history is forwarded to a
	// provider.
	historyLimit = 20

	// MaxMessageLength caps the accepted length of a single chat message,
	// in runes.
	MaxMessageLength = 2000
)

var (
	errMissingCredential = errors.New("missing credential")
	errEmptyPayload      = errors.New("empty payload")
	errEmptyHistory      = errors.New("empty history")
)

type Role string

const (
	RoleMe   Role = "me"   // the human user
	RoleThem Role = "them" // the persona
)

type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Reply is the outcome of the provider chain. Source names the provider
// that produced the text; Diagnostics is only populated when every
// remote provider failed and the local responder answered.
type Reply struct {
	Text        string   `json:"reply"`
	Source      string   `json:"source"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// Provider is a single remote reply backend. A nil error means text is a
// usable reply.
type Provider interface {
	Name() string
	Reply(ctx context.Context, systemInstruction string, history []Message) (string, error)
}

// ReplyService runs the provider cascade. Every provider failure is
// non-fatal: the chain always terminates in a usable reply.
type ReplyService struct {
	providers []Provider
	logger    logging.Logger
}

func NewReplyService(logger logging.Logger, providers ...Provider) *ReplyService {
	return &ReplyService{providers: providers, logger: logger}
}

// systemInstruction builds the persona directive sent to every provider.
func systemInstruction(personName string) string {
	return fmt.Sprintf("Sen %s adında gerçek bir insansın. Türkçe, samimi ve doğal konuş. "+
		"Kısa cevaplar ver (1-3 cümle). Karşı tarafın yazdığına göre devam et, soru sorarak sohbeti sürdür. "+
		"Asla yapay zeka olduğunu söyleme.", personName)
}

func (s *ReplyService) Reply(ctx context.Context, personName string, history []Message) Reply {
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	system := systemInstruction(personName)

	var diagnostics []string
	for _, p := range s.providers {
		text, err := p.Reply(ctx, system, history)
		if err != nil {
			diagnostics = append(diagnostics, p.Name()+": "+err.Error())
			s.logger.Warn(ctx, "reply provider failed", "provider", p.Name(), "error", err)
			continue
		}
		return Reply{Text: text, Source: p.Name()}
	}

	var lastUserText string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleMe {
			lastUserText = history[i].Text
			break
		}
	}
	return Reply{
		Text:        localReply(personName, lastUserText),
		Source:      "local",
		Diagnostics: diagnostics,
	}
}
