// Package mailx sends plain email messages. The rest of the service talks to
// the Sender interface; SMTP is the production implementation and Outbox is
// an in-memory one for development and tests.
package mailx

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrHostPortRequired = errors.New("mailx: smtp host and port are required")
	ErrNoRecipients     = errors.New("mailx: no recipients provided")
	ErrNoSender         = errors.New("mailx: no sender provided")
)

// Message is a provider-agnostic email payload.
type Message struct {
	From     string
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Outbox records every message instead of delivering it.
type Outbox struct {
	mu   sync.Mutex
	msgs []Message
	fail error
}

func NewOutbox() *Outbox { return &Outbox{} }

func (o *Outbox) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

// FailWith makes subsequent sends return err; nil restores delivery.
func (o *Outbox) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fail = err
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.msgs...)
}

// Last returns the most recent message sent to addr.
func (o *Outbox) Last(addr string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		for _, to := range o.msgs[i].To {
			if to == addr {
				return o.msgs[i], true
			}
		}
	}
	return Message{}, false
}
