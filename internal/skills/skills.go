// Package skills runs configured chat "skills": named system prompts bound
// to a model, exposed to MCP callers through the skill_chat_once tool.
package skills

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultConversationPrefix prefixes generated chat ids when neither the
// profile nor the service sets one.
const DefaultConversationPrefix = "skill"

const (
	// maxHistory bounds the remembered turns per chat id.
	maxHistory = 20
	// DefaultHistoryTTL is how long an idle conversation is remembered.
	DefaultHistoryTTL = 30 * time.Minute
	// sweepEvery is how many stored turns pass between idle sweeps.
	sweepEvery = 64
)

var (
	// ErrCodeRequired is returned for a blank skill code.
	ErrCodeRequired = errors.New("skill code is required")
	// ErrNotFound is returned for an unknown or disabled skill.
	ErrNotFound = errors.New("skill not found")
	// ErrUnavailable is returned when the model backend fails or is not
	// configured.
	ErrUnavailable = errors.New("skill model service unavailable")
)

// Mode is a skill's preferred conversation mode.
type Mode string

const (
	ModeStream Mode = "stream"
	ModeSync   Mode = "sync"
)

// Profile describes one skill.
type Profile struct {
	Code               string `json:"code"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	Mode               Mode   `json:"mode"`
	Model              string `json:"model,omitempty"`
	SystemPrompt       string `json:"-"`
	ConversationPrefix string `json:"conversationPrefix"`
	WelcomeMessage     string `json:"welcomeMessage,omitempty"`
	Enabled            bool   `json:"enabled"`
}

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn sent to a Completer.
type Message struct {
	Role    Role
	Content string
}

// Completer produces a single assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, model string, messages []Message) (string, error)
}

// Config configures a Service.
type Config struct {
	DefaultModel              string
	DefaultConversationPrefix string
	Profiles                  []Profile
}

// Service resolves skills and runs one-shot chats against a Completer.
type Service struct {
	completer    Completer
	defaultModel string
	prefix       string
	profiles     map[string]Profile
	ordered      []string
	log          *slog.Logger
	now          func() time.Time

	historyTTL time.Duration

	mu      sync.Mutex
	history map[string]*conversation
	stored  int
}

type conversation struct {
	turns    []Message
	lastSeen time.Time
}

// Option configures New.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source used for chat ids.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithHistoryTTL sets how long an idle conversation's turns are kept.
func WithHistoryTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.historyTTL = d
		}
	}
}

// New validates cfg and builds a Service. A nil completer is allowed; every
// chat then fails with ErrUnavailable.
func New(cfg Config, completer Completer, opts ...Option) (*Service, error) {
	s := &Service{
		completer:    completer,
		defaultModel: strings.TrimSpace(cfg.DefaultModel),
		prefix:       strings.TrimSpace(cfg.DefaultConversationPrefix),
		profiles:     make(map[string]Profile, len(cfg.Profiles)),
		log:          slog.Default(),
		now:          time.Now,
		historyTTL:   DefaultHistoryTTL,
		history:      make(map[string]*conversation),
	}
	if s.prefix == "" {
		s.prefix = DefaultConversationPrefix
	}
	for _, opt := range opts {
		opt(s)
	}

	for i, p := range cfg.Profiles {
		p.Code = strings.TrimSpace(p.Code)
		p.Name = strings.TrimSpace(p.Name)
		p.Description = strings.TrimSpace(p.Description)
		p.WelcomeMessage = strings.TrimSpace(p.WelcomeMessage)
		switch {
		case p.Code == "":
			return nil, fmt.Errorf("skill %d: code must not be empty", i)
		case p.Name == "":
			return nil, fmt.Errorf("skill %s: name must not be empty", p.Code)
		case p.Description == "":
			return nil, fmt.Errorf("skill %s: description must not be empty", p.Code)
		}
		key := strings.ToLower(p.Code)
		if _, dup := s.profiles[key]; dup {
			return nil, fmt.Errorf("duplicate skill code found: %s", p.Code)
		}
		switch Mode(strings.ToLower(string(p.Mode))) {
		case ModeSync:
			p.Mode = ModeSync
		default:
			p.Mode = ModeStream
		}
		if strings.TrimSpace(p.ConversationPrefix) == "" {
			p.ConversationPrefix = s.prefix
		} else {
			p.ConversationPrefix = strings.TrimSpace(p.ConversationPrefix)
		}
		s.profiles[key] = p
		s.ordered = append(s.ordered, key)
	}

	if len(s.profiles) > 0 && len(s.Profiles()) == 0 {
		return nil, errors.New("all skills are disabled")
	}
	s.log.Info("skills.ready", "count", len(s.Profiles()))
	return s, nil
}

// Profiles lists the enabled skills in configuration order.
func (s *Service) Profiles() []Profile {
	out := make([]Profile, 0, len(s.ordered))
	for _, key := range s.ordered {
		if p := s.profiles[key]; p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// Profile resolves an enabled skill by code, ignoring case.
func (s *Service) Profile(code string) (Profile, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Profile{}, ErrCodeRequired
	}
	p, ok := s.profiles[strings.ToLower(code)]
	if !ok || !p.Enabled {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return p, nil
}

// NextChatID returns a fresh chat id "<prefix>_<code>_<unixmillis>". An
// unknown code uses the service-wide prefix.
func (s *Service) NextChatID(code string) string {
	code = strings.TrimSpace(code)
	prefix := s.prefix
	if p, ok := s.profiles[strings.ToLower(code)]; ok {
		prefix = p.ConversationPrefix
	}
	return fmt.Sprintf("%s_%s_%d", prefix, code, s.now().UnixMilli())
}

// SyncChat sends prompt to the skill's model within the conversation chatID
// and returns the full reply. Earlier turns of the same chat are replayed.
func (s *Service) SyncChat(ctx context.Context, code, prompt, chatID string) (string, error) {
	p, err := s.Profile(code)
	if err != nil {
		return "", err
	}
	if s.completer == nil {
		return "", ErrUnavailable
	}

	model := p.Model
	if model == "" {
		model = s.defaultModel
	}

	var msgs []Message
	if p.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: p.SystemPrompt})
	}
	msgs = append(msgs, s.turns(chatID)...)
	msgs = append(msgs, Message{Role: RoleUser, Content: prompt})

	start := time.Now()
	reply, err := s.completer.Complete(ctx, model, msgs)
	if err != nil {
		s.log.WarnContext(ctx, "skills.chat.fail", "skill", p.Code, "chat_id", chatID, "err", err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.remember(chatID, Message{Role: RoleUser, Content: prompt}, Message{Role: RoleAssistant, Content: reply})
	s.log.InfoContext(ctx, "skills.chat.ok", "skill", p.Code, "chat_id", chatID, "dur_ms", time.Since(start).Milliseconds())
	return reply, nil
}

func (s *Service) turns(chatID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.history[chatID]
	if !ok || s.now().Sub(c.lastSeen) >= s.historyTTL {
		return nil
	}
	return append([]Message(nil), c.turns...)
}

func (s *Service) remember(chatID string, msgs ...Message) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stored++
	if s.stored%sweepEvery == 0 {
		s.sweepLocked(now)
	}

	c, ok := s.history[chatID]
	if !ok || now.Sub(c.lastSeen) >= s.historyTTL {
		c = &conversation{}
		s.history[chatID] = c
	}
	c.turns = append(c.turns, msgs...)
	if len(c.turns) > maxHistory {
		c.turns = c.turns[len(c.turns)-maxHistory:]
	}
	c.lastSeen = now
}

// sweepLocked forgets conversations idle for longer than the history TTL.
func (s *Service) sweepLocked(now time.Time) {
	for id, c := range s.history {
		if now.Sub(c.lastSeen) >= s.historyTTL {
			delete(s.history, id)
		}
	}
}

// Conversations reports how many chat ids currently have remembered turns.
func (s *Service) Conversations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}
