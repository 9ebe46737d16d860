// Package notify pushes marketplace events to buyers and vendors over
// PubNub. Delivery is best effort and happens on a background worker:
// failures are logged, never returned to the request that triggered them.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	pubnub "github.com/pubnub/go"
)

const (
	EventBookingRequested = "booking_requested"
	EventBookingDecided   = "booking_decided"
	EventPaymentSuccess   = "payment_success"
	EventTicketModerated  = "ticket_moderated"
)

type (
	Event struct {
		Type   string         `json:"type"`
		Data   map[string]any `json:"data,omitempty"`
		SentAt time.Time      `json:"sent_at"`
	}

	Notifier interface {
		// Notify publishes ev to the channel of the given user email.
		Notify(ctx context.Context, email string, ev Event)
	}
)

// ChannelFor maps an email to its PubNub channel. Characters PubNub
// reserves (",", ":", "*", "/", "\", ".") and spaces become dashes.
func ChannelFor(email string) string {
	var b strings.Builder
	b.WriteString("user-")
	for _, r := range strings.ToLower(strings.TrimSpace(email)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-', r == '@', r == '+':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

// queueSize bounds the events waiting for the publish worker. Events past
// it are dropped.
const queueSize = 256

type delivery struct {
	ctx     context.Context
	channel string
	event   Event
}

type PubNubNotifier struct {
	publish func(channel string, message any) error

	queue     chan delivery
	done      chan struct{}
	closeOnce sync.Once
}

var _ Notifier = (*PubNubNotifier)(nil)

func NewPubNub(cfg PubNubConfig) *PubNubNotifier {
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PublishKey
	pnConfig.SubscribeKey = cfg.SubscribeKey
	pnConfig.SecretKey = cfg.SecretKey
	pnConfig.UUID = cfg.UserID

	pn := pubnub.NewPubNub(pnConfig)

	return newPubNubNotifier(queueSize, func(channel string, message any) error {
		_, st, err := pn.Publish().
			Channel(channel).
			Message(message).
			Execute()
		if err != nil {
			return err
		}
		if st.StatusCode >= 300 {
			return fmt.Errorf("pubnub publish: status %d", st.StatusCode)
		}
		return nil
	})
}

func newPubNubNotifier(size int, publish func(channel string, message any) error) *PubNubNotifier {
	n := &PubNubNotifier{
		publish: publish,
		queue:   make(chan delivery, size),
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *PubNubNotifier) run() {
	defer close(n.done)
	for d := range n.queue {
		if err := n.publish(d.channel, d.event); err != nil {
			slog.WarnContext(d.ctx, "notification not delivered",
				"channel", d.channel,
				"type", d.event.Type,
				"error", err,
			)
		}
	}
}

// Notify queues ev for the publish worker and returns immediately.
func (n *PubNubNotifier) Notify(ctx context.Context, email string, ev Event) {
	if email == "" {
		return
	}
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now().UTC()
	}

	channel := ChannelFor(email)
	select {
	case n.queue <- delivery{ctx: context.WithoutCancel(ctx), channel: channel, event: ev}:
	default:
		slog.WarnContext(ctx, "notification queue full, event dropped",
			"channel", channel,
			"type", ev.Type,
		)
	}
}

// Close stops accepting events and waits until the queued ones are
// published or ctx is done. Notify must not be called after Close.
func (n *PubNubNotifier) Close(ctx context.Context) error {
	n.closeOnce.Do(func() { close(n.queue) })
	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Nop discards every event. Used when PubNub keys are not configured.
type Nop struct{}

func (Nop) Notify(context.Context, string, Event) {}
