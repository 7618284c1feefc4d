package slots

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// BatchLimit is the maximum number of slots a single Store.Put call accepts.
const BatchLimit = 25

var (
	// ErrTransport means the page could not be fetched.
	ErrTransport = errors.New("transport")
	// ErrParse means the page could not be tokenized.
	ErrParse = errors.New("parse")
	// ErrStore means a lookup or write against the slot store was rejected.
	ErrStore = errors.New("store")
	// ErrNotification means the notification channel rejected the message.
	ErrNotification = errors.New("notification")
)

// Lookup is the result of a bulk existence check.
type Lookup struct {
	// Confirmed are the ids the store holds.
	Confirmed []string
	// Unknown are the ids the store could not answer for in this call, they are neither
	// present nor absent.
	Unknown []string
}

// Store is the key-value store of every slot seen so far, keyed by slot identifier.
type Store interface {
	// Lookup checks which of ids already exist.
	Lookup(ctx context.Context, ids []string) (Lookup, error)
	// Put upserts at most BatchLimit ids, putting an id that already exists is not an error.
	Put(ctx context.Context, ids []string) error
}

// Lister is implemented by stores that can enumerate their contents.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// Notification is the message sent when new slots show up.
type Notification struct {
	// Source identifies the page the slots were scraped from.
	Source string
	Slots  []string
}

func (n Notification) Subject() string {
	return "New slots"
}

func (n Notification) Message() string {
	return fmt.Sprintf("%s: New slots are %s", n.Source, strings.Join(n.Slots, ","))
}

// Notifier delivers a Notification to whoever is watching the page.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}
