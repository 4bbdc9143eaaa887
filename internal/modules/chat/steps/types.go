package steps

import (
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/chatlens/chatlens-backend/internal/ai"
	"github.com/chatlens/chatlens-backend/internal/data/repos"
	"github.com/chatlens/chatlens-backend/internal/platform/logger"
)

const (
	// MinEmbedChars is the minimum trimmed rune count a message needs to be
	// worth a vector. Shorter messages ("ok", "lol") carry no retrievable
	// signal.
	MinEmbedChars = 10

	// ContextWindowMessages bounds the transcript sent to the summarizer.
	ContextWindowMessages = 50

	// SearchCandidateLimit is the internal search width used when assembling
	// relevant context.
	SearchCandidateLimit = 20

	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
)

// ErrRebuildInProgress is returned when a rebuild is requested while one is
// already running in this process.
var ErrRebuildInProgress = errors.New("index rebuild already in progress")

type Deps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Embedder  ai.Embedder
	Completer ai.Completer

	// Summarizer derives a context draft from a transcript. Nil means the
	// Completer-backed default.
	Summarizer ContextSummarizer

	Chats    repos.ChatRepo
	Messages repos.ChatMessageRepo
	Embedded repos.EmbeddedMessageRepo
	Contexts repos.ConversationContextRepo

	State *State
}

func (d Deps) validate() error {
	if d.DB == nil || d.Log == nil || d.Embedder == nil || d.Completer == nil {
		return fmt.Errorf("chat steps: missing core deps")
	}
	if d.Messages == nil || d.Embedded == nil || d.Contexts == nil {
		return fmt.Errorf("chat steps: missing repos")
	}
	if d.State == nil {
		return fmt.Errorf("chat steps: missing state")
	}
	return nil
}

// State is the engine's shared mutable state: the initialized flag, the
// rebuild single-flight latch, and the per-chat refresh locks.
type State struct {
	mu          sync.Mutex
	initialized bool
	rebuilding  bool
	chatLocks   map[string]*sync.Mutex
}

func NewState() *State {
	return &State{chatLocks: map[string]*sync.Mutex{}}
}

func (s *State) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *State) setInitialized() {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
}

// beginRebuild reports whether the caller won the single-flight latch.
func (s *State) beginRebuild() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rebuilding {
		return false
	}
	s.rebuilding = true
	return true
}

func (s *State) endRebuild() {
	s.mu.Lock()
	s.rebuilding = false
	s.mu.Unlock()
}

// lockChat serializes context refreshes per chat. Different chats proceed in
// parallel.
func (s *State) lockChat(chatID string) func() {
	s.mu.Lock()
	lock, ok := s.chatLocks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		s.chatLocks[chatID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
