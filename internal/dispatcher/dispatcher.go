package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/augustino-massawe/chat-notifier/internal/dedup"
	"github.com/augustino-massawe/chat-notifier/internal/push"
	"github.com/augustino-massawe/chat-notifier/internal/store"
	"github.com/augustino-massawe/chat-notifier/pkg/log"
)

const (
	previewMaxRunes       = 100
	previewEllipsis       = "..."
	attachmentPlaceholder = "Attachment"
)

// MessageCreatedEvent is the payload the chat write path publishes once
// per newly created message. Delivery is at-least-once.
type MessageCreatedEvent struct {
	ChatRoomID string `json:"chat_room_id"`
	MessageID  string `json:"message_id"`
}

// Dispatcher reacts to one message-created event: it resolves the sender
// and room, fans one push notification out per recipient, and clears a
// recipient's stored token when the provider reports it dead.
type Dispatcher struct {
	store       store.Store
	sender      push.Sender
	guard       dedup.Guard
	sendTimeout time.Duration
}

func New(st store.Store, sender push.Sender, guard dedup.Guard, sendTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		store:       st,
		sender:      sender,
		guard:       guard,
		sendTimeout: sendTimeout,
	}
}

// HandleEvent processes one consumed event. It always returns nil: every
// failure path here is terminal for this event, and surfacing an error
// would only make the consumer redeliver a permanently failing input.
func (d *Dispatcher) HandleEvent(ctx context.Context, key, value []byte) error {
	l := log.Ctx(ctx)

	defer func() {
		if r := recover(); r != nil {
			l.Error().Interface("panic", r).Msg("dispatch panicked")
		}
	}()

	var ev MessageCreatedEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		l.Warn().Err(err).Msg("failed to unmarshal event")
		return nil
	}
	if ev.ChatRoomID == "" || ev.MessageID == "" {
		l.Warn().Str(log.FieldRoomID, ev.ChatRoomID).Str(log.FieldMessageID, ev.MessageID).
			Msg("event missing ids, skipping")
		return nil
	}

	if !d.guard.FirstDelivery(ctx, ev.ChatRoomID, ev.MessageID) {
		l.Debug().Str(log.FieldRoomID, ev.ChatRoomID).Str(log.FieldMessageID, ev.MessageID).
			Msg("event already dispatched, skipping")
		return nil
	}

	d.dispatch(ctx, ev)
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, ev MessageCreatedEvent) {
	l := log.Ctx(ctx).With().
		Str(log.FieldRoomID, ev.ChatRoomID).
		Str(log.FieldMessageID, ev.MessageID).
		Logger()

	msg, err := d.store.GetMessage(ctx, ev.ChatRoomID, ev.MessageID)
	if err != nil {
		l.Error().Err(err).Msg("failed to load message")
		return
	}
	if msg == nil {
		l.Info().Msg("message not found, skipping")
		return
	}
	if msg.SenderID == "" {
		l.Info().Msg("no sender id, skipping")
		return
	}

	senderUser, err := d.store.GetUser(ctx, msg.SenderID)
	if err != nil {
		l.Error().Err(err).Str(log.FieldSenderID, msg.SenderID).Msg("failed to load sender")
		return
	}
	senderName := senderUser.BestName()

	room, err := d.store.GetRoom(ctx, ev.ChatRoomID)
	if err != nil {
		l.Error().Err(err).Msg("failed to load chat room")
		return
	}
	if room == nil {
		l.Info().Msg("chat room not found, skipping")
		return
	}

	preview := previewText(msg.Text)
	recipients := recipientSet(room.Participants, msg.SenderID)

	var wg sync.WaitGroup
	for _, recipientID := range recipients {
		wg.Add(1)
		go func(recipientID string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					l.Error().Interface("panic", r).
						Str(log.FieldRecipientID, recipientID).
						Msg("recipient dispatch panicked")
				}
			}()
			d.notify(ctx, ev.ChatRoomID, msg.SenderID, senderName, preview, recipientID)
		}(recipientID)
	}
	wg.Wait()

	l.Info().Int("recipients", len(recipients)).Msg("dispatch completed")
}

// notify handles a single recipient end to end. Failures here are
// isolated: nothing a recipient branch does affects another recipient.
func (d *Dispatcher) notify(ctx context.Context, roomID, senderID, senderName, preview, recipientID string) {
	l := log.Ctx(ctx).With().
		Str(log.FieldRoomID, roomID).
		Str(log.FieldRecipientID, recipientID).
		Logger()

	recipient, err := d.store.GetUser(ctx, recipientID)
	if err != nil {
		l.Error().Err(err).Msg("failed to load recipient")
		return
	}
	if recipient == nil {
		l.Debug().Msg("recipient not found, skipping")
		return
	}
	if recipient.FCMToken == "" {
		l.Info().Msg("recipient has no push token, skipping")
		return
	}

	n := &push.Notification{
		Token: recipient.FCMToken,
		Title: senderName,
		Body:  preview,
		Data: map[string]string{
			push.DataKeyRoomID:      roomID,
			push.DataKeySenderUID:   senderID,
			push.DataKeySenderName:  senderName,
			push.DataKeyClickAction: push.ClickAction,
		},
		Link: "/chat/" + roomID,
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	providerID, err := d.sender.Send(sendCtx, n)
	if err != nil {
		if errors.Is(err, push.ErrTokenNotRegistered) {
			if clearErr := d.store.ClearUserToken(ctx, recipientID); clearErr != nil {
				l.Error().Err(clearErr).Msg("failed to clear dead token")
			} else {
				l.Info().Msg("cleared dead push token")
			}
		}
		l.Error().Err(err).Msg("push delivery failed")
		return
	}

	l.Info().Str(log.FieldProviderID, providerID).Msg("push delivered")
}

// previewText builds the notification body: an empty text becomes the
// attachment placeholder, anything longer than 100 characters is cut to
// the first 100 with an ellipsis marker.
func previewText(text string) string {
	if text == "" {
		text = attachmentPlaceholder
	}
	runes := []rune(text)
	if len(runes) <= previewMaxRunes {
		return text
	}
	return string(runes[:previewMaxRunes]) + previewEllipsis
}

// recipientSet returns the room participants minus the sender, with
// duplicates and empty ids collapsed, preserving stored order.
func recipientSet(participants []string, senderID string) []string {
	seen := make(map[string]struct{}, len(participants))
	recipients := make([]string, 0, len(participants))
	for _, id := range participants {
		if id == "" || id == senderID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}
	return recipients
}
