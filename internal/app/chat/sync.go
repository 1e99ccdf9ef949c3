package chat

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"campusmarket/internal/app/requests"
	domainchat "campusmarket/internal/domain/chat"
)

const (
	// conversationsSlot names the conversation-list fetch slot.
	conversationsSlot = "conversations"
	// historyTimeout bounds full history fetches.
	historyTimeout = 10 * time.Second
	// listTimeout bounds the metadata-only conversation list refresh.
	listTimeout = 8 * time.Second
)

// UnreadCache is an advisory write-through cache of the viewer's global
// unread total. Reads are hints only; the recomputed sum over message lists
// is the sole source of truth.
type UnreadCache interface {
	SetTotal(ctx context.Context, viewer domainchat.UserID, total int) error
	Total(ctx context.Context, viewer domainchat.UserID) (int, bool, error)
}

// ConversationView is a list row: conversation metadata plus its derived
// unread count.
type ConversationView struct {
	Conversation domainchat.Conversation
	Unread       int
}

// Sync reconciles the viewer's conversations from two independent writers,
// orchestrated history fetches and realtime push events, merging by message
// identity. It is the only component mutating conversation and message
// state; everything else reads snapshots.
type Sync struct {
	store   domainchat.Store
	slots   *requests.Slots
	mutator *requests.Mutator
	viewer  domainchat.UserID
	cache   UnreadCache
	logger  *slog.Logger

	mu      sync.Mutex
	threads map[domainchat.ConversationID]*thread
}

type thread struct {
	conv     domainchat.Conversation
	messages []domainchat.Message
	index    map[domainchat.MessageID]int
	unread   int
	loaded   bool
}

// NewSync builds a Sync for one viewer. cache may be nil.
func NewSync(store domainchat.Store, slots *requests.Slots, viewer domainchat.UserID, cache UnreadCache, logger *slog.Logger) *Sync {
	return &Sync{
		store:   store,
		slots:   slots,
		mutator: &requests.Mutator{},
		viewer:  viewer,
		cache:   cache,
		logger:  logger,
		threads: make(map[domainchat.ConversationID]*thread),
	}
}

// Viewer returns the user this Sync reconciles for.
func (s *Sync) Viewer() domainchat.UserID { return s.viewer }

// RefreshConversations reloads the conversation list, merging fetched
// metadata into known threads by conversation identity and reconciling
// per-thread unread counts against the store's fresh counts.
func (s *Sync) RefreshConversations(ctx context.Context) error {
	type listing struct {
		conversations []domainchat.Conversation
		unread        map[domainchat.ConversationID]int
	}
	res := requests.Run(ctx, s.slots, conversationsSlot, requests.RunOptions{Timeout: listTimeout}, func(ctx context.Context) (listing, error) {
		conversations, err := s.store.ListConversations(ctx, s.viewer)
		if err != nil {
			return listing{}, err
		}
		unread, err := s.store.UnreadCounts(ctx, s.viewer)
		if err != nil {
			return listing{}, err
		}
		return listing{conversations: conversations, unread: unread}, nil
	})
	if res.Cancelled() {
		return requests.ErrCancelled
	}
	if res.Err != nil {
		return res.Err
	}
	// A newer refresh may have taken the slot while the result was in hand;
	// its merge owns the thread metadata then.
	if res.Seq != s.slots.Latest(conversationsSlot) {
		return requests.ErrCancelled
	}

	s.mu.Lock()
	for _, conv := range res.Value.conversations {
		th := s.threadLocked(conv.ID)
		th.conv = conv
		if !th.loaded {
			// Counts for threads without local history come from the store;
			// loaded threads recompute from their own message lists.
			th.unread = res.Value.unread[conv.ID]
		}
	}
	s.mu.Unlock()
	s.publishUnread(ctx)
	return nil
}

// LoadHistory fetches the full message history of a conversation, merges it
// by message identity with whatever push events already delivered, and marks
// every message not sent by the viewer as read, write-through. Opening a
// conversation counts as reading it. The returned IDs are the messages whose
// read flag flipped, so the caller can announce the read receipt.
func (s *Sync) LoadHistory(ctx context.Context, id domainchat.ConversationID) ([]domainchat.MessageID, error) {
	slot := "history:" + string(id)
	res := requests.Run(ctx, s.slots, slot, requests.RunOptions{Timeout: historyTimeout}, func(ctx context.Context) ([]domainchat.Message, error) {
		return s.store.ListMessages(ctx, id)
	})
	if res.Cancelled() {
		return nil, requests.ErrCancelled
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Seq != s.slots.Latest(slot) {
		return nil, requests.ErrCancelled
	}

	toRead := domainchat.UnreadIDs(res.Value, s.viewer)
	if len(toRead) > 0 {
		if err := s.store.MarkRead(ctx, id, toRead); err != nil {
			// The local view still flips; the advisory counts reconcile on the
			// next refresh against the store.
			s.log().Warn("mark read write-through failed", "conversation_id", id, "error", err)
		}
	}

	s.mu.Lock()
	th := s.threadLocked(id)
	for _, msg := range res.Value {
		th.upsert(msg)
	}
	th.markRead(toRead)
	th.loaded = true
	th.recompute(s.viewer)
	s.mu.Unlock()
	s.publishUnread(ctx)
	return toRead, nil
}

// HandleEvent applies one push event. Duplicate deliveries and fetch/push
// races resolve by message identity: the same ID lands exactly once,
// regardless of arrival order.
func (s *Sync) HandleEvent(ctx context.Context, ev domainchat.Event) {
	switch ev.Type {
	case domainchat.EventMessageInserted:
		if ev.Message.ID == "" {
			return
		}
		s.mu.Lock()
		th := s.threadLocked(ev.Message.ConversationID)
		th.upsert(ev.Message)
		if ev.Message.CreatedAt.After(th.conv.LastMessageAt) {
			th.conv.LastMessageAt = ev.Message.CreatedAt
		}
		th.recompute(s.viewer)
		s.mu.Unlock()
	case domainchat.EventMessagesRead:
		s.mu.Lock()
		th := s.threadLocked(ev.ConversationID)
		th.markRead(ev.MessageIDs)
		th.recompute(s.viewer)
		s.mu.Unlock()
	default:
		s.log().Debug("unhandled chat event", "type", ev.Type)
		return
	}
	s.publishUnread(ctx)
}

// Send appends a provisional message immediately, persists it, and rolls the
// provisional back on failure so the caller can restore the composer. Rapid
// duplicate sends of the same body on a conversation collapse into one
// attempt and all return the message that actually persisted; distinct
// bodies run independently.
func (s *Sync) Send(ctx context.Context, id domainchat.ConversationID, body string) (domainchat.Message, error) {
	msg, err := domainchat.NewMessage(
		domainchat.MessageID(uuid.NewString()), id, s.viewer, body, time.Now(),
	)
	if err != nil {
		return domainchat.Message{}, fmt.Errorf("%w: %w", requests.ErrValidation, err)
	}

	var prevActivity time.Time
	mutation := requests.Mutation{
		Key: sendKey(id, msg.Body),
		Apply: func() {
			s.mu.Lock()
			th := s.threadLocked(id)
			prevActivity = th.conv.LastMessageAt
			th.upsert(msg)
			th.conv.LastMessageAt = msg.CreatedAt
			s.mu.Unlock()
		},
		Revert: func() {
			s.mu.Lock()
			th := s.threadLocked(id)
			th.remove(msg.ID)
			th.conv.LastMessageAt = prevActivity
			s.mu.Unlock()
		},
		Persist: func(ctx context.Context) error {
			return s.store.InsertMessage(ctx, msg)
		},
		Result: func() any { return msg },
	}
	value, err := s.mutator.Do(ctx, mutation)
	if err != nil {
		return domainchat.Message{}, err
	}
	if sent, ok := value.(domainchat.Message); ok {
		return sent, nil
	}
	return msg, nil
}

// sendKey identifies one send action: same conversation and same body are
// duplicate triggers, anything else is a distinct message.
func sendKey(id domainchat.ConversationID, body string) string {
	h := fnv.New64a()
	h.Write([]byte(body))
	return fmt.Sprintf("send:%s:%x", id, h.Sum64())
}

// Open returns the unique conversation for the (listing, initiator) pair,
// creating it on first contact, and registers it locally.
func (s *Sync) Open(ctx context.Context, listingID string, owner domainchat.UserID) (domainchat.Conversation, error) {
	conv, err := s.store.GetOrCreateConversation(ctx, listingID, s.viewer, owner, time.Now())
	if err != nil {
		return domainchat.Conversation{}, requests.Classify(err)
	}
	s.mu.Lock()
	th := s.threadLocked(conv.ID)
	th.conv = conv
	s.mu.Unlock()
	return conv, nil
}

// Conversations returns list rows ordered by last activity descending.
func (s *Sync) Conversations() []ConversationView {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]ConversationView, 0, len(s.threads))
	for _, th := range s.threads {
		rows = append(rows, ConversationView{Conversation: th.conv, Unread: th.unread})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].Conversation, rows[j].Conversation
		if !a.LastMessageAt.Equal(b.LastMessageAt) {
			return a.LastMessageAt.After(b.LastMessageAt)
		}
		return a.ID < b.ID
	})
	return rows
}

// Messages returns a snapshot of one thread, ascending by creation time.
func (s *Sync) Messages(id domainchat.ConversationID) []domainchat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.threads[id]
	if !ok {
		return nil
	}
	out := make([]domainchat.Message, len(th.messages))
	copy(out, th.messages)
	return out
}

// Unread returns the derived unread count for one conversation.
func (s *Sync) Unread(id domainchat.ConversationID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if th, ok := s.threads[id]; ok {
		return th.unread
	}
	return 0
}

// GlobalUnread sums unread over all conversations. Always recomputed from
// the per-thread derivations, never maintained as a running counter.
func (s *Sync) GlobalUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalUnreadLocked()
}

// GlobalUnreadHint prefers the advisory cached total when the local state has
// not synced yet; the local recomputation wins once any thread is known.
func (s *Sync) GlobalUnreadHint(ctx context.Context) int {
	s.mu.Lock()
	known := len(s.threads) > 0
	total := s.globalUnreadLocked()
	s.mu.Unlock()
	if known || s.cache == nil {
		return total
	}
	cached, ok, err := s.cache.Total(ctx, s.viewer)
	if err != nil || !ok {
		return total
	}
	return cached
}

func (s *Sync) globalUnreadLocked() int {
	total := 0
	for _, th := range s.threads {
		total += th.unread
	}
	return total
}

// publishUnread writes the recomputed global total through to the advisory
// cache. Failures are logged, never surfaced: the cache is a hint.
func (s *Sync) publishUnread(ctx context.Context) {
	if s.cache == nil {
		return
	}
	total := s.GlobalUnread()
	if err := s.cache.SetTotal(ctx, s.viewer, total); err != nil {
		s.log().Debug("unread cache write failed", "error", err)
	}
}

func (s *Sync) threadLocked(id domainchat.ConversationID) *thread {
	th, ok := s.threads[id]
	if !ok {
		th = &thread{
			conv:  domainchat.Conversation{ID: id},
			index: make(map[domainchat.MessageID]int),
		}
		s.threads[id] = th
	}
	return th
}

func (s *Sync) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// upsert inserts or replaces a message by identity, keeping ascending order
// by creation time. Same identity wins over arrival order.
func (t *thread) upsert(msg domainchat.Message) {
	if i, ok := t.index[msg.ID]; ok {
		// Never un-read a message: the flag only moves forward.
		if t.messages[i].Read {
			msg.Read = true
		}
		t.messages[i] = msg
		return
	}
	t.messages = append(t.messages, msg)
	sort.SliceStable(t.messages, func(i, j int) bool {
		a, b := t.messages[i], t.messages[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	t.reindex()
}

func (t *thread) remove(id domainchat.MessageID) {
	i, ok := t.index[id]
	if !ok {
		return
	}
	t.messages = append(t.messages[:i], t.messages[i+1:]...)
	t.reindex()
}

func (t *thread) markRead(ids []domainchat.MessageID) {
	for _, id := range ids {
		if i, ok := t.index[id]; ok {
			t.messages[i].Read = true
		}
	}
}

func (t *thread) recompute(viewer domainchat.UserID) {
	t.unread = domainchat.CountUnread(t.messages, viewer)
}

func (t *thread) reindex() {
	t.index = make(map[domainchat.MessageID]int, len(t.messages))
	for i, msg := range t.messages {
		t.index[msg.ID] = i
	}
}
