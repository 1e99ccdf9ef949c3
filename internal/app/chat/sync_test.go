package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusmarket/internal/app/requests"
	domainchat "campusmarket/internal/domain/chat"
)

type fakeStore struct {
	mu            sync.Mutex
	conversations map[domainchat.ConversationID]domainchat.Conversation
	messages      map[domainchat.ConversationID][]domainchat.Message

	listGate      func()
	insertGate    func(domainchat.Message)
	insertErr     error
	markReadErr   error
	markReadCalls [][]domainchat.MessageID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[domainchat.ConversationID]domainchat.Conversation),
		messages:      make(map[domainchat.ConversationID][]domainchat.Message),
	}
}

func (f *fakeStore) seed(conv domainchat.Conversation, msgs ...domainchat.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[conv.ID] = conv
	f.messages[conv.ID] = append(f.messages[conv.ID], msgs...)
}

func (f *fakeStore) GetOrCreateConversation(ctx context.Context, listingID string, initiator, owner domainchat.UserID, now time.Time) (domainchat.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conv := range f.conversations {
		if conv.ListingID == listingID && conv.Initiator == initiator {
			return conv, nil
		}
	}
	conv, err := domainchat.NewConversation(domainchat.NewConversationParams{
		ID:        domainchat.ConversationID("conv-" + listingID),
		ListingID: listingID,
		Initiator: initiator,
		Owner:     owner,
		Now:       now,
	})
	if err != nil {
		return domainchat.Conversation{}, err
	}
	f.conversations[conv.ID] = conv
	return conv, nil
}

func (f *fakeStore) Conversation(ctx context.Context, id domainchat.ConversationID) (domainchat.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[id]
	if !ok {
		return domainchat.Conversation{}, domainchat.ErrConversationNotFound
	}
	return conv, nil
}

func (f *fakeStore) ListConversations(ctx context.Context, viewer domainchat.UserID) ([]domainchat.Conversation, error) {
	if f.listGate != nil {
		f.listGate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domainchat.Conversation, 0)
	for _, conv := range f.conversations {
		if conv.HasParticipant(viewer) {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (f *fakeStore) ListMessages(ctx context.Context, id domainchat.ConversationID) ([]domainchat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.conversations[id]; !ok {
		return nil, domainchat.ErrConversationNotFound
	}
	out := make([]domainchat.Message, len(f.messages[id]))
	copy(out, f.messages[id])
	return out, nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, msg domainchat.Message) error {
	if f.insertGate != nil {
		f.insertGate(msg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], msg)
	return nil
}

func (f *fakeStore) MarkRead(ctx context.Context, id domainchat.ConversationID, messageIDs []domainchat.MessageID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReadCalls = append(f.markReadCalls, messageIDs)
	if f.markReadErr != nil {
		return f.markReadErr
	}
	wanted := make(map[domainchat.MessageID]struct{}, len(messageIDs))
	for _, messageID := range messageIDs {
		wanted[messageID] = struct{}{}
	}
	rows := f.messages[id]
	for i := range rows {
		if _, ok := wanted[rows[i].ID]; ok {
			rows[i].Read = true
		}
	}
	return nil
}

func (f *fakeStore) UnreadCounts(ctx context.Context, viewer domainchat.UserID) (map[domainchat.ConversationID]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[domainchat.ConversationID]int)
	for id, conv := range f.conversations {
		if conv.HasParticipant(viewer) {
			counts[id] = domainchat.CountUnread(f.messages[id], viewer)
		}
	}
	return counts, nil
}

var _ domainchat.Store = (*fakeStore)(nil)

type fakeCache struct {
	mu     sync.Mutex
	totals map[domainchat.UserID]int
}

func newFakeCache() *fakeCache {
	return &fakeCache{totals: make(map[domainchat.UserID]int)}
}

func (c *fakeCache) SetTotal(ctx context.Context, viewer domainchat.UserID, total int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totals[viewer] = total
	return nil
}

func (c *fakeCache) Total(ctx context.Context, viewer domainchat.UserID) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	total, ok := c.totals[viewer]
	return total, ok, nil
}

const (
	viewer = domainchat.UserID("u1")
	peer   = domainchat.UserID("u2")
)

func testConversation(id domainchat.ConversationID, at time.Time) domainchat.Conversation {
	return domainchat.Conversation{
		ID:            id,
		ListingID:     "l1",
		Initiator:     viewer,
		Owner:         peer,
		CreatedAt:     at,
		LastMessageAt: at,
	}
}

func peerMessage(id domainchat.MessageID, conv domainchat.ConversationID, at time.Time) domainchat.Message {
	return domainchat.Message{
		ID:             id,
		ConversationID: conv,
		SenderID:       peer,
		Body:           "hey",
		CreatedAt:      at,
	}
}

func newTestSync(store domainchat.Store, cache UnreadCache) *Sync {
	return NewSync(store, requests.NewSlots(nil), viewer, cache, nil)
}

func loadHistory(t *testing.T, s *Sync, id domainchat.ConversationID) []domainchat.MessageID {
	t.Helper()
	marked, err := s.LoadHistory(context.Background(), id)
	require.NoError(t, err)
	return marked
}

type sendResult struct {
	msg domainchat.Message
	err error
}

func TestLoadHistoryMarksThreadRead(t *testing.T) {
	store := newFakeStore()
	base := time.Now().UTC()
	store.seed(testConversation("c1", base),
		peerMessage("m1", "c1", base.Add(1*time.Second)),
		peerMessage("m2", "c1", base.Add(2*time.Second)),
		peerMessage("m3", "c1", base.Add(3*time.Second)),
	)
	s := newTestSync(store, nil)

	require.NoError(t, s.RefreshConversations(context.Background()))
	require.Equal(t, 3, s.Unread("c1"))
	require.Equal(t, 3, s.GlobalUnread())

	marked := loadHistory(t, s, "c1")
	assert.ElementsMatch(t, []domainchat.MessageID{"m1", "m2", "m3"}, marked)

	assert.Equal(t, 0, s.Unread("c1"))
	assert.Equal(t, 0, s.GlobalUnread())
	require.Len(t, store.markReadCalls, 1)
	assert.Len(t, store.markReadCalls[0], 3)

	// Opening again has nothing left to flip.
	assert.Empty(t, loadHistory(t, s, "c1"))
	assert.Len(t, store.markReadCalls, 1)
	assert.Equal(t, 0, s.Unread("c1"))
}

func TestPushAndFetchConvergeByIdentity(t *testing.T) {
	store := newFakeStore()
	base := time.Now().UTC()
	m1 := peerMessage("m1", "c1", base.Add(1*time.Second))
	m2 := peerMessage("m2", "c1", base.Add(2*time.Second))
	store.seed(testConversation("c1", base), m1, m2)
	s := newTestSync(store, nil)

	// The push event for m1 lands before the history fetch returns.
	s.HandleEvent(context.Background(), domainchat.Event{
		Type:           domainchat.EventMessageInserted,
		ConversationID: "c1",
		Message:        m1,
		OccurredAt:     m1.CreatedAt,
	})
	loadHistory(t, s, "c1")

	msgs := s.Messages("c1")
	require.Len(t, msgs, 2)
	assert.Equal(t, domainchat.MessageID("m1"), msgs[0].ID)
	assert.Equal(t, domainchat.MessageID("m2"), msgs[1].ID)

	// A duplicate delivery after the fetch changes nothing.
	s.HandleEvent(context.Background(), domainchat.Event{
		Type:           domainchat.EventMessageInserted,
		ConversationID: "c1",
		Message:        m2,
		OccurredAt:     m2.CreatedAt,
	})
	assert.Len(t, s.Messages("c1"), 2)
}

func TestDuplicateEventNeverRevertsReadFlag(t *testing.T) {
	store := newFakeStore()
	base := time.Now().UTC()
	m1 := peerMessage("m1", "c1", base.Add(1*time.Second))
	store.seed(testConversation("c1", base), m1)
	s := newTestSync(store, nil)

	loadHistory(t, s, "c1")
	require.Equal(t, 0, s.Unread("c1"))

	// Redelivery still carries Read=false; identity merge keeps the flag.
	s.HandleEvent(context.Background(), domainchat.Event{
		Type:           domainchat.EventMessageInserted,
		ConversationID: "c1",
		Message:        m1,
		OccurredAt:     m1.CreatedAt,
	})
	assert.Equal(t, 0, s.Unread("c1"))
}

func TestSendRollsBackProvisionalOnFailure(t *testing.T) {
	store := newFakeStore()
	base := time.Now().UTC()
	store.seed(testConversation("c1", base))
	store.insertErr = errors.New("insert rejected")
	s := newTestSync(store, nil)

	loadHistory(t, s, "c1")
	before := s.Conversations()[0].Conversation.LastMessageAt

	_, err := s.Send(context.Background(), "c1", "did not make it")
	require.ErrorIs(t, err, requests.ErrTransport)

	assert.Empty(t, s.Messages("c1"))
	assert.Equal(t, before, s.Conversations()[0].Conversation.LastMessageAt)
}

func TestSendAppendsAndBumpsActivity(t *testing.T) {
	store := newFakeStore()
	base := time.Now().UTC().Add(-time.Hour)
	store.seed(testConversation("c1", base))
	s := newTestSync(store, nil)

	msg, err := s.Send(context.Background(), "c1", "hello there")
	require.NoError(t, err)

	msgs := s.Messages("c1")
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)
	assert.True(t, s.Conversations()[0].Conversation.LastMessageAt.After(base))
	// The viewer's own message never counts as unread.
	assert.Equal(t, 0, s.Unread("c1"))
}

func TestConcurrentDistinctSendsBothPersist(t *testing.T) {
	store := newFakeStore()
	base := time.Now().UTC()
	store.seed(testConversation("c1", base))

	started := make(chan struct{})
	release := make(chan struct{})
	store.insertGate = func(msg domainchat.Message) {
		if msg.Body == "is the desk still available?" {
			close(started)
			<-release
		}
	}
	s := newTestSync(store, nil)

	slow := make(chan sendResult, 1)
	go func() {
		msg, err := s.Send(context.Background(), "c1", "is the desk still available?")
		slow <- sendResult{msg: msg, err: err}
	}()
	<-started

	// A different message while the first persist is in flight must run its
	// own attempt, not join the first one.
	second, err := s.Send(context.Background(), "c1", "could you do 40?")
	require.NoError(t, err)
	assert.Equal(t, "could you do 40?", second.Body)

	close(release)
	first := <-slow
	require.NoError(t, first.err)
	assert.Equal(t, "is the desk still available?", first.msg.Body)

	store.mu.Lock()
	stored := len(store.messages["c1"])
	store.mu.Unlock()
	assert.Equal(t, 2, stored)
	assert.Len(t, s.Messages("c1"), 2)
}

func TestDuplicateSendsCollapseToOnePersistedMessage(t *testing.T) {
	store := newFakeStore()
	base := time.Now().UTC()
	store.seed(testConversation("c1", base))

	var once sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	store.insertGate = func(domainchat.Message) {
		once.Do(func() {
			close(started)
			<-release
		})
	}
	s := newTestSync(store, nil)

	first := make(chan sendResult, 1)
	go func() {
		msg, err := s.Send(context.Background(), "c1", "same words")
		first <- sendResult{msg: msg, err: err}
	}()
	<-started

	dup := make(chan sendResult, 1)
	go func() {
		msg, err := s.Send(context.Background(), "c1", "same words")
		dup <- sendResult{msg: msg, err: err}
	}()
	// Give the duplicate trigger time to join the in-flight attempt.
	time.Sleep(50 * time.Millisecond)
	close(release)

	a, b := <-first, <-dup
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	// Both callers observe the message that actually persisted.
	assert.Equal(t, a.msg.ID, b.msg.ID)

	store.mu.Lock()
	stored := len(store.messages["c1"])
	store.mu.Unlock()
	assert.Equal(t, 1, stored)
	assert.Len(t, s.Messages("c1"), 1)
}

func TestSendRejectsEmptyBody(t *testing.T) {
	s := newTestSync(newFakeStore(), nil)
	_, err := s.Send(context.Background(), "c1", "   ")
	assert.ErrorIs(t, err, requests.ErrValidation)
}

func TestMarkReadWriteThroughFailureFlipsLocally(t *testing.T) {
	store := newFakeStore()
	base := time.Now().UTC()
	store.seed(testConversation("c1", base), peerMessage("m1", "c1", base.Add(time.Second)))
	store.markReadErr = errors.New("store down")
	s := newTestSync(store, nil)

	loadHistory(t, s, "c1")
	assert.Equal(t, 0, s.Unread("c1"))
}

func TestReadReceiptEventClearsUnread(t *testing.T) {
	store := newFakeStore()
	base := time.Now().UTC()
	m1 := peerMessage("m1", "c1", base.Add(time.Second))
	store.seed(testConversation("c1", base))
	s := newTestSync(store, nil)

	s.HandleEvent(context.Background(), domainchat.Event{
		Type:           domainchat.EventMessageInserted,
		ConversationID: "c1",
		Message:        m1,
		OccurredAt:     m1.CreatedAt,
	})
	require.Equal(t, 1, s.Unread("c1"))

	// The viewer read the thread in another session; the receipt arrives here.
	receipt := domainchat.Event{
		Type:           domainchat.EventMessagesRead,
		ConversationID: "c1",
		MessageIDs:     []domainchat.MessageID{"m1"},
		OccurredAt:     base.Add(2 * time.Second),
	}
	s.HandleEvent(context.Background(), receipt)
	assert.Equal(t, 0, s.Unread("c1"))
	assert.Equal(t, 0, s.GlobalUnread())

	// Redelivery changes nothing.
	s.HandleEvent(context.Background(), receipt)
	assert.Equal(t, 0, s.Unread("c1"))
}

func TestRefreshSupersededResolvesCancelled(t *testing.T) {
	store := newFakeStore()
	base := time.Now().UTC()
	store.seed(testConversation("c1", base))

	var gated atomic.Bool
	started := make(chan struct{})
	release := make(chan struct{})
	store.listGate = func() {
		// Only the first refresh parks; sync.Once.Do would also block the
		// superseding refresh until the first one is released.
		if gated.CompareAndSwap(false, true) {
			close(started)
			<-release
		}
	}
	s := newTestSync(store, nil)

	errs := make(chan error, 1)
	go func() {
		errs <- s.RefreshConversations(context.Background())
	}()
	<-started

	require.NoError(t, s.RefreshConversations(context.Background()))
	close(release)
	assert.True(t, requests.IsCancelled(<-errs))
}

func TestEventsReorderConversationList(t *testing.T) {
	store := newFakeStore()
	base := time.Now().UTC()
	c1 := testConversation("c1", base)
	c2 := domainchat.Conversation{
		ID: "c2", ListingID: "l2", Initiator: viewer, Owner: peer,
		CreatedAt: base.Add(time.Minute), LastMessageAt: base.Add(time.Minute),
	}
	store.seed(c1)
	store.seed(c2)
	s := newTestSync(store, nil)

	require.NoError(t, s.RefreshConversations(context.Background()))
	rows := s.Conversations()
	require.Equal(t, domainchat.ConversationID("c2"), rows[0].Conversation.ID)

	late := peerMessage("m9", "c1", base.Add(2*time.Minute))
	s.HandleEvent(context.Background(), domainchat.Event{
		Type:           domainchat.EventMessageInserted,
		ConversationID: "c1",
		Message:        late,
		OccurredAt:     late.CreatedAt,
	})

	rows = s.Conversations()
	assert.Equal(t, domainchat.ConversationID("c1"), rows[0].Conversation.ID)
	assert.Equal(t, 1, rows[0].Unread)
	assert.Equal(t, 1, s.GlobalUnread())
}

func TestGlobalUnreadHintPrefersCacheBeforeFirstSync(t *testing.T) {
	store := newFakeStore()
	base := time.Now().UTC()
	store.seed(testConversation("c1", base), peerMessage("m1", "c1", base.Add(time.Second)))
	cache := newFakeCache()
	require.NoError(t, cache.SetTotal(context.Background(), viewer, 7))
	s := newTestSync(store, cache)

	assert.Equal(t, 7, s.GlobalUnreadHint(context.Background()))

	require.NoError(t, s.RefreshConversations(context.Background()))
	assert.Equal(t, 1, s.GlobalUnreadHint(context.Background()))
	// The refresh wrote the recomputed total back through.
	total, ok, err := cache.Total(context.Background(), viewer)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, total)
}

func TestOpenRegistersThread(t *testing.T) {
	store := newFakeStore()
	s := newTestSync(store, nil)

	conv, err := s.Open(context.Background(), "l1", peer)
	require.NoError(t, err)

	again, err := s.Open(context.Background(), "l1", peer)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	rows := s.Conversations()
	require.Len(t, rows, 1)
	assert.Equal(t, conv.ID, rows[0].Conversation.ID)
}
