package bindings

import (
	"context"

	appchat "campusmarket/internal/app/chat"
	"campusmarket/internal/app/requests"
	"campusmarket/internal/app/view"
	domainchat "campusmarket/internal/domain/chat"
)

// ConversationList binds the viewer's conversation list to render state. The
// rows themselves are always read live from the sync component, so push
// events show up without an extra refresh; the model only tracks the phase.
type ConversationList struct {
	sync  *appchat.Sync
	model *view.Model[struct{}]
}

// NewConversationList builds an idle binding.
func NewConversationList(sync *appchat.Sync) *ConversationList {
	return &ConversationList{sync: sync, model: view.NewModel[struct{}]()}
}

// Refresh reloads the list. A superseded refresh resolves silently; the
// newer one owns the phase.
func (b *ConversationList) Refresh(ctx context.Context) error {
	b.model.BeginInitial()
	if err := b.sync.RefreshConversations(ctx); err != nil {
		if requests.IsCancelled(err) {
			return nil
		}
		b.model.Fail(err)
		return err
	}
	b.model.Commit(struct{}{}, len(b.sync.Conversations()) == 0)
	return nil
}

// Retry re-runs the refresh after a failure.
func (b *ConversationList) Retry(ctx context.Context) error {
	return b.Refresh(ctx)
}

// Snapshot returns the phase plus live rows ordered by last activity.
func (b *ConversationList) Snapshot() view.Snapshot[[]appchat.ConversationView] {
	state := b.model.Snapshot()
	rows := b.sync.Conversations()
	phase := state.Phase
	// Push events can populate or empty the list between commits; the live
	// rows decide between ready and empty once the initial load settled.
	if phase == view.PhaseReady || phase == view.PhaseEmpty {
		if len(rows) == 0 {
			phase = view.PhaseEmpty
		} else {
			phase = view.PhaseReady
		}
	}
	return view.Snapshot[[]appchat.ConversationView]{Phase: phase, Data: rows, Err: state.Err}
}

// GlobalUnread returns the navigation badge total, preferring the advisory
// cache only before the first sync.
func (b *ConversationList) GlobalUnread(ctx context.Context) int {
	return b.sync.GlobalUnreadHint(ctx)
}

// ThreadData is what a conversation screen renders.
type ThreadData struct {
	Conversation domainchat.Conversation
	Messages     []domainchat.Message
	Unread       int
}

// Conversation binds a single thread to render state.
type Conversation struct {
	sync  *appchat.Sync
	id    domainchat.ConversationID
	model *view.Model[struct{}]
}

// NewConversation builds an idle binding for one thread.
func NewConversation(sync *appchat.Sync, id domainchat.ConversationID) *Conversation {
	return &Conversation{sync: sync, id: id, model: view.NewModel[struct{}]()}
}

// Open loads the thread's history, which also marks it read. It returns the
// IDs whose read flag flipped so the caller can announce the read receipt to
// the viewer's other sessions.
func (b *Conversation) Open(ctx context.Context) ([]domainchat.MessageID, error) {
	b.model.BeginInitial()
	marked, err := b.sync.LoadHistory(ctx, b.id)
	if err != nil {
		if requests.IsCancelled(err) {
			return nil, nil
		}
		b.model.Fail(err)
		return nil, err
	}
	b.model.Commit(struct{}{}, len(b.sync.Messages(b.id)) == 0)
	return marked, nil
}

// Retry re-runs the history load after a failure.
func (b *Conversation) Retry(ctx context.Context) error {
	_, err := b.Open(ctx)
	return err
}

// Send posts a message through the optimistic path. On failure the caller
// keeps the body and repopulates the composer; nothing is silently dropped.
func (b *Conversation) Send(ctx context.Context, body string) (domainchat.Message, error) {
	return b.sync.Send(ctx, b.id, body)
}

// Snapshot returns the phase plus live thread data.
func (b *Conversation) Snapshot() view.Snapshot[ThreadData] {
	state := b.model.Snapshot()
	messages := b.sync.Messages(b.id)
	phase := state.Phase
	if phase == view.PhaseReady || phase == view.PhaseEmpty {
		if len(messages) == 0 {
			phase = view.PhaseEmpty
		} else {
			phase = view.PhaseReady
		}
	}
	data := ThreadData{
		Messages: messages,
		Unread:   b.sync.Unread(b.id),
	}
	for _, row := range b.sync.Conversations() {
		if row.Conversation.ID == b.id {
			data.Conversation = row.Conversation
			break
		}
	}
	return view.Snapshot[ThreadData]{Phase: phase, Data: data, Err: state.Err}
}
