package ginserver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	appbindings "campusmarket/internal/app/bindings"
	appchat "campusmarket/internal/app/chat"
	"campusmarket/internal/app/requests"
	domainchat "campusmarket/internal/domain/chat"
	domainlistings "campusmarket/internal/domain/listings"
)

// Session holds one viewer's bound render state. Each session owns its own
// request slots, so one viewer's superseded fetches never cancel another's.
type Session struct {
	Sync          *appchat.Sync
	Conversations *appbindings.ConversationList
	Feed          *appbindings.Feed
	Saved         *appbindings.Saved

	mu      sync.Mutex
	threads map[domainchat.ConversationID]*appbindings.Conversation
}

// Thread returns the binding for one conversation, creating it lazily.
func (s *Session) Thread(id domainchat.ConversationID) *appbindings.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	binding, ok := s.threads[id]
	if !ok {
		binding = appbindings.NewConversation(s.Sync, id)
		s.threads[id] = binding
	}
	return binding
}

// SessionHub builds and caches per-viewer sessions.
type SessionHub struct {
	chatStore   domainchat.Store
	listingRepo domainlistings.Repository
	savedStore  domainlistings.SavedStore
	cache       appchat.UnreadCache
	feedTimeout time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[domainchat.UserID]*Session
}

func NewSessionHub(
	chatStore domainchat.Store,
	listingRepo domainlistings.Repository,
	savedStore domainlistings.SavedStore,
	cache appchat.UnreadCache,
	feedTimeout time.Duration,
	logger *slog.Logger,
) *SessionHub {
	return &SessionHub{
		chatStore:   chatStore,
		listingRepo: listingRepo,
		savedStore:  savedStore,
		cache:       cache,
		feedTimeout: feedTimeout,
		logger:      logger,
		sessions:    make(map[domainchat.UserID]*Session),
	}
}

// Session returns the viewer's session, creating it on first use.
func (h *SessionHub) Session(viewer domainchat.UserID) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	session, ok := h.sessions[viewer]
	if !ok {
		slots := requests.NewSlots(h.logger)
		sync := appchat.NewSync(h.chatStore, slots, viewer, h.cache, h.logger)
		session = &Session{
			Sync:          sync,
			Conversations: appbindings.NewConversationList(sync),
			Feed:          appbindings.NewFeed(slots, h.listingRepo, h.feedTimeout),
			Saved:         appbindings.NewSaved(slots, h.savedStore, domainlistings.ViewerID(viewer)),
			threads:       make(map[domainchat.ConversationID]*appbindings.Conversation),
		}
		h.sessions[viewer] = session
	}
	return session
}

// HandleEvent fans one push event out to every active session.
func (h *SessionHub) HandleEvent(ctx context.Context, ev domainchat.Event) error {
	h.mu.Lock()
	active := make([]*Session, 0, len(h.sessions))
	for _, session := range h.sessions {
		active = append(active, session)
	}
	h.mu.Unlock()
	for _, session := range active {
		session.Sync.HandleEvent(ctx, ev)
	}
	return nil
}
