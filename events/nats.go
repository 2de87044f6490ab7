package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// natsConn is the part of *nats.Conn the publisher needs.
type natsConn interface {
	Publish(subj string, data []byte) error
	IsClosed() bool
}

// NATSPublisher publishes events as JSON on "<prefix>.<type>" subjects, e.g. blog.post.expired.
type NATSPublisher struct {
	conn   natsConn
	prefix string
	close  func()
}

// ConnectNATS dials url and returns a publisher owning the connection.
func ConnectNATS(url, prefix string) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("blog-go"),
		nats.Timeout(5 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("NATS reconnected")
		}),
		nats.DrainTimeout(10 * time.Second),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	p := NewNATSPublisher(nc, prefix)
	p.close = func() {
		if err := nc.Drain(); err != nil {
			log.Printf("Error draining NATS connection: %v", err)
		}
	}
	return p, nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn natsConn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix, close: func() {}}
}

// Subject returns the subject an event of type t is published on.
func (p *NATSPublisher) Subject(t Type) string {
	if p.prefix == "" {
		return string(t)
	}
	return p.prefix + "." + string(t)
}

// Publish implements Publisher. While the client is reconnecting nats.go buffers the
// message, so only a closed connection is an error.
func (p *NATSPublisher) Publish(_ context.Context, ev Event) error {
	if p.conn.IsClosed() {
		return nats.ErrConnectionClosed
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", ev.Type, err)
	}
	if err := p.conn.Publish(p.Subject(ev.Type), payload); err != nil {
		return fmt.Errorf("publishing %s: %w", p.Subject(ev.Type), err)
	}
	return nil
}

// Close drains the connection if the publisher owns it.
func (p *NATSPublisher) Close() {
	p.close()
}

var _ Publisher = (*NATSPublisher)(nil)
