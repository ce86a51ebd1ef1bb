// Package messaging provides a NATS client wrapper for pub/sub messaging
// across PartyLink services. The API server publishes change notifications
// when attendance or social visibility mutates; gateway instances subscribe
// per event and push the changes to connected attendees.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used across PartyLink services.
const (
	SubjectAttendees = "event.attendees" // + .<event_id>
	SubjectSocials   = "event.socials"   // + .<event_id>
	SubjectPresence  = "presence.update" // + .<event_id>
)

// AttendeeChange is published when a user joins or leaves an event.
type AttendeeChange struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	Action  string `json:"action"` // "join" or "leave"
	Ts      int64  `json:"ts"`
}

// SocialChange is published when a user toggles a social platform's
// visibility. Subscribers re-fetch visible socials rather than patching.
type SocialChange struct {
	UserID string `json:"user_id"`
	Ts     int64  `json:"ts"`
}

// PresenceUpdate is published when an attendee's online state changes.
type PresenceUpdate struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	Online  bool   `json:"online"`
	Ts      int64  `json:"ts"`
}

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "partylink",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// PublishAttendeeChange publishes an attendance change for an event.
func (c *NATSClient) PublishAttendeeChange(eventID string, data []byte) error {
	return c.Publish(SubjectAttendees+"."+eventID, data)
}

// PublishSocialChange publishes a social-visibility change for an event.
func (c *NATSClient) PublishSocialChange(eventID string, data []byte) error {
	return c.Publish(SubjectSocials+"."+eventID, data)
}

// PublishPresenceUpdate publishes a presence transition for an event.
func (c *NATSClient) PublishPresenceUpdate(eventID string, data []byte) error {
	return c.Publish(SubjectPresence+"."+eventID, data)
}

// SubscribeAttendeeChanges subscribes a gateway session to attendance
// changes for an event. The subscription is keyed by sessionID so that
// multiple sessions on the same gateway can watch the same event without
// overwriting each other.
func (c *NATSClient) SubscribeAttendeeChanges(eventID, sessionID string, handler func(data []byte)) error {
	return c.subscribeKeyed(SubjectAttendees+"."+eventID, "attendees:"+sessionID, handler)
}

// UnsubscribeAttendeeChanges removes a session's attendance subscription.
func (c *NATSClient) UnsubscribeAttendeeChanges(sessionID string) error {
	return c.unsubscribe("attendees:" + sessionID)
}

// SubscribeSocialChanges subscribes a gateway session to social-visibility
// changes for an event.
func (c *NATSClient) SubscribeSocialChanges(eventID, sessionID string, handler func(data []byte)) error {
	return c.subscribeKeyed(SubjectSocials+"."+eventID, "socials:"+sessionID, handler)
}

// UnsubscribeSocialChanges removes a session's social subscription.
func (c *NATSClient) UnsubscribeSocialChanges(sessionID string) error {
	return c.unsubscribe("socials:" + sessionID)
}

// SubscribePresenceUpdates subscribes a gateway session to presence
// transitions for an event.
func (c *NATSClient) SubscribePresenceUpdates(eventID, sessionID string, handler func(data []byte)) error {
	return c.subscribeKeyed(SubjectPresence+"."+eventID, "presence:"+sessionID, handler)
}

// UnsubscribePresenceUpdates removes a session's presence subscription.
func (c *NATSClient) UnsubscribePresenceUpdates(sessionID string) error {
	return c.unsubscribe("presence:" + sessionID)
}

// subscribeKeyed registers a handler for the subject under an explicit
// registry key and stores the subscription for later cleanup.
func (c *NATSClient) subscribeKeyed(subject, key string, handler func(data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	// Replace any previous subscription under the same key.
	if prev, ok := c.subs[key]; ok {
		_ = prev.Unsubscribe()
	}
	c.subs[key] = sub
	c.mu.Unlock()
	return nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", key, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// unsubscribe removes and unsubscribes a registered subscription by key.
func (c *NATSClient) unsubscribe(key string) error {
	c.mu.Lock()
	sub, ok := c.subs[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for %s", key)
	}
	delete(c.subs, key)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", key, err)
	}
	return nil
}
