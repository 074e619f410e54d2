package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject notifications are published on when none is configured.
const DefaultSubject = "hexagram.notifications"

// Publisher is the subset of *nats.Conn the publisher needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes each notification as JSON on a NATS subject.
// Publish failures are logged and dropped.
type NATSPublisher struct {
	conn    Publisher
	subject string
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn Publisher, subject string) (*NATSPublisher, error) {
	if subject == "" {
		return nil, errEmptySubject
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// DialNATS connects to url with client reconnect defaults.
// The caller owns the returned connection.
func DialNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("hexagram"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return nc, nil
}

func (p *NATSPublisher) Notify(n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		logDropped(n, err)
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		logDropped(n, err)
	}
}
