package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/augustino-massawe/chat-notifier/internal/dedup"
	"github.com/augustino-massawe/chat-notifier/internal/domain"
	"github.com/augustino-massawe/chat-notifier/internal/push"
)

type fakeStore struct {
	mu       sync.Mutex
	messages map[string]*domain.Message // "roomID/messageID"
	users    map[string]*domain.User
	rooms    map[string]*domain.ChatRoom
	cleared  []string

	failGets  bool
	panicGets bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages: map[string]*domain.Message{},
		users:    map[string]*domain.User{},
		rooms:    map[string]*domain.ChatRoom{},
	}
}

func (s *fakeStore) GetMessage(_ context.Context, roomID, messageID string) (*domain.Message, error) {
	if s.panicGets {
		panic("store blew up")
	}
	if s.failGets {
		return nil, errors.New("store unavailable")
	}
	return s.messages[roomID+"/"+messageID], nil
}

func (s *fakeStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGets {
		return nil, errors.New("store unavailable")
	}
	return s.users[userID], nil
}

func (s *fakeStore) GetRoom(_ context.Context, roomID string) (*domain.ChatRoom, error) {
	if s.failGets {
		return nil, errors.New("store unavailable")
	}
	return s.rooms[roomID], nil
}

func (s *fakeStore) ClearUserToken(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = append(s.cleared, userID)
	return nil
}

func (s *fakeStore) Close(context.Context) error { return nil }

func (s *fakeStore) clearedTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cleared...)
}

type fakeSender struct {
	mu        sync.Mutex
	sent      []*push.Notification
	failToken map[string]error // token -> error returned by Send
}

func newFakeSender() *fakeSender {
	return &fakeSender{failToken: map[string]error{}}
}

func (f *fakeSender) Send(_ context.Context, n *push.Notification) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failToken[n.Token]; ok {
		return "", err
	}
	f.sent = append(f.sent, n)
	return "projects/demo/messages/" + n.Token, nil
}

func (f *fakeSender) deliveries() []*push.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*push.Notification(nil), f.sent...)
}

type rejectAllGuard struct{}

func (rejectAllGuard) FirstDelivery(context.Context, string, string) bool { return false }
func (rejectAllGuard) Close() error                                       { return nil }

func eventBytes(t *testing.T, roomID, messageID string) []byte {
	t.Helper()
	b, err := json.Marshal(MessageCreatedEvent{ChatRoomID: roomID, MessageID: messageID})
	require.NoError(t, err)
	return b
}

func newDispatcher(st *fakeStore, sender *fakeSender) *Dispatcher {
	return New(st, sender, dedup.Nop{}, time.Second)
}

// seedRoom is the scenario used across most tests: u1 sends "hello" in a
// room with u2 (valid token) and u3 (no token).
func seedRoom(st *fakeStore) {
	st.messages["room1/msg1"] = &domain.Message{ID: "msg1", ChatRoomID: "room1", SenderID: "u1", Text: "hello"}
	st.rooms["room1"] = &domain.ChatRoom{ID: "room1", Participants: []string{"u1", "u2", "u3"}}
	st.users["u1"] = &domain.User{ID: "u1", DisplayName: "Alice"}
	st.users["u2"] = &domain.User{ID: "u2", DisplayName: "Bob", FCMToken: "tok-u2"}
	st.users["u3"] = &domain.User{ID: "u3", DisplayName: "Carol"}
}

func TestDispatchSkipsRecipientsWithoutToken(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	seedRoom(st)
	sender := newFakeSender()

	err := newDispatcher(st, sender).HandleEvent(context.Background(), nil, eventBytes(t, "room1", "msg1"))
	req.NoError(err)

	sent := sender.deliveries()
	req.Len(sent, 1)
	req.Equal("tok-u2", sent[0].Token)
	req.Equal("Alice", sent[0].Title)
	req.Equal("hello", sent[0].Body)
	req.Empty(st.clearedTokens())
}

func TestDispatchPayloadData(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	seedRoom(st)
	sender := newFakeSender()

	req.NoError(newDispatcher(st, sender).HandleEvent(context.Background(), nil, eventBytes(t, "room1", "msg1")))

	sent := sender.deliveries()
	req.Len(sent, 1)
	req.Equal(map[string]string{
		"chatRoomId":   "room1",
		"senderUid":    "u1",
		"senderName":   "Alice",
		"click_action": "FLUTTER_NOTIFICATION_CLICK",
	}, sent[0].Data)
	req.Equal("/chat/room1", sent[0].Link)
}

func TestDispatchMissingSenderIsNoOp(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	seedRoom(st)
	st.messages["room1/msg1"].SenderID = ""
	sender := newFakeSender()

	req.NoError(newDispatcher(st, sender).HandleEvent(context.Background(), nil, eventBytes(t, "room1", "msg1")))
	req.Empty(sender.deliveries())
	req.Empty(st.clearedTokens())
}

func TestDispatchMissingRoomIsNoOp(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	seedRoom(st)
	delete(st.rooms, "room1")
	sender := newFakeSender()

	req.NoError(newDispatcher(st, sender).HandleEvent(context.Background(), nil, eventBytes(t, "room1", "msg1")))
	req.Empty(sender.deliveries())
	req.Empty(st.clearedTokens())
}

func TestDispatchMissingMessageIsNoOp(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	sender := newFakeSender()

	req.NoError(newDispatcher(st, sender).HandleEvent(context.Background(), nil, eventBytes(t, "room1", "gone")))
	req.Empty(sender.deliveries())
}

func TestDeadTokenIsCleared(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	seedRoom(st)
	sender := newFakeSender()
	sender.failToken["tok-u2"] = fmt.Errorf("%w: UNREGISTERED", push.ErrTokenNotRegistered)

	req.NoError(newDispatcher(st, sender).HandleEvent(context.Background(), nil, eventBytes(t, "room1", "msg1")))

	req.Equal([]string{"u2"}, st.clearedTokens())
	req.Empty(sender.deliveries())
}

func TestOtherDeliveryErrorsDoNotMutate(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	seedRoom(st)
	sender := newFakeSender()
	sender.failToken["tok-u2"] = errors.New("fcm unavailable")

	req.NoError(newDispatcher(st, sender).HandleEvent(context.Background(), nil, eventBytes(t, "room1", "msg1")))
	req.Empty(st.clearedTokens())
}

func TestFailureIsolationAcrossRecipients(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	seedRoom(st)
	st.users["u3"].FCMToken = "tok-u3"
	st.users["u4"] = &domain.User{ID: "u4", FCMToken: "tok-u4"}
	st.rooms["room1"].Participants = append(st.rooms["room1"].Participants, "u4")
	sender := newFakeSender()
	sender.failToken["tok-u3"] = fmt.Errorf("%w: UNREGISTERED", push.ErrTokenNotRegistered)

	req.NoError(newDispatcher(st, sender).HandleEvent(context.Background(), nil, eventBytes(t, "room1", "msg1")))

	sent := sender.deliveries()
	req.Len(sent, 2)
	tokens := []string{sent[0].Token, sent[1].Token}
	req.ElementsMatch([]string{"tok-u2", "tok-u4"}, tokens)
	req.Equal([]string{"u3"}, st.clearedTokens())
}

func TestSenderNameFallbackChain(t *testing.T) {
	cases := []struct {
		name   string
		sender *domain.User
		want   string
	}{
		{"display name wins", &domain.User{ID: "u1", DisplayName: "Alice", Email: "a@x.io"}, "Alice"},
		{"email next", &domain.User{ID: "u1", Email: "a@x.io"}, "a@x.io"},
		{"placeholder last", &domain.User{ID: "u1"}, "Someone"},
		{"missing record", nil, "Someone"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			st := newFakeStore()
			seedRoom(st)
			if tc.sender == nil {
				delete(st.users, "u1")
			} else {
				st.users["u1"] = tc.sender
			}
			sender := newFakeSender()

			req.NoError(newDispatcher(st, sender).HandleEvent(context.Background(), nil, eventBytes(t, "room1", "msg1")))

			sent := sender.deliveries()
			req.Len(sent, 1)
			req.Equal(tc.want, sent[0].Title)
			req.Equal(tc.want, sent[0].Data["senderName"])
		})
	}
}

func TestLongBodyTruncatedInDelivery(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	seedRoom(st)
	body := strings.Repeat("x", 250)
	st.messages["room1/msg1"].Text = body
	sender := newFakeSender()

	req.NoError(newDispatcher(st, sender).HandleEvent(context.Background(), nil, eventBytes(t, "room1", "msg1")))

	sent := sender.deliveries()
	req.Len(sent, 1)
	req.Equal(body[:100]+"...", sent[0].Body)
	req.Empty(st.clearedTokens())
}

func TestPreviewText(t *testing.T) {
	req := require.New(t)

	req.Equal("Attachment", previewText(""))
	req.Equal("hello", previewText("hello"))

	exact := strings.Repeat("a", 100)
	req.Equal(exact, previewText(exact))

	long := strings.Repeat("b", 101)
	req.Equal(long[:100]+"...", previewText(long))

	// Truncation counts characters, not bytes.
	multibyte := strings.Repeat("é", 150)
	got := previewText(multibyte)
	req.Equal(strings.Repeat("é", 100)+"...", got)
}

func TestRecipientSetExcludesSenderAndDuplicates(t *testing.T) {
	req := require.New(t)

	req.Equal([]string{"u2", "u3"}, recipientSet([]string{"u1", "u2", "u1", "u3", "u2", ""}, "u1"))
	req.Empty(recipientSet([]string{"u1", "u1"}, "u1"))
	req.Equal([]string{"u2"}, recipientSet([]string{"u2"}, "u1"))
	req.Empty(recipientSet(nil, "u1"))
}

func TestEmptyRecipientSetCompletes(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	seedRoom(st)
	st.rooms["room1"].Participants = []string{"u1"}
	sender := newFakeSender()

	req.NoError(newDispatcher(st, sender).HandleEvent(context.Background(), nil, eventBytes(t, "room1", "msg1")))
	req.Empty(sender.deliveries())
}

func TestMalformedEventSkipped(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	sender := newFakeSender()
	d := newDispatcher(st, sender)

	req.NoError(d.HandleEvent(context.Background(), nil, []byte("{not json")))
	req.NoError(d.HandleEvent(context.Background(), nil, []byte(`{"chat_room_id":"","message_id":""}`)))
	req.Empty(sender.deliveries())
}

func TestDuplicateEventSuppressed(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	seedRoom(st)
	sender := newFakeSender()
	d := New(st, sender, rejectAllGuard{}, time.Second)

	req.NoError(d.HandleEvent(context.Background(), nil, eventBytes(t, "room1", "msg1")))
	req.Empty(sender.deliveries())
}

func TestStoreErrorAbortsWithoutSideEffects(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	seedRoom(st)
	st.failGets = true
	sender := newFakeSender()

	req.NoError(newDispatcher(st, sender).HandleEvent(context.Background(), nil, eventBytes(t, "room1", "msg1")))
	req.Empty(sender.deliveries())
	req.Empty(st.clearedTokens())
}

func TestPanicDoesNotEscapeHandler(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	seedRoom(st)
	st.panicGets = true
	sender := newFakeSender()

	req.NotPanics(func() {
		req.NoError(newDispatcher(st, sender).HandleEvent(context.Background(), nil, eventBytes(t, "room1", "msg1")))
	})
	req.Empty(sender.deliveries())
}
