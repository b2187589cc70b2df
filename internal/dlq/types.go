package dlq

import "fmt"

// Entry captures a poison message pulled from the dead-letter queue. It is
// transient: entries live only in memory between capture and alert.
type Entry struct {
	MessageID string
	EventType string
	Payload   []byte
}

func (e Entry) String() string {
	return fmt.Sprintf("id=%s type=%s payload=%s", e.MessageID, e.EventType, e.Payload)
}

// Delivery is one dead-letter queue message. Dead-letter deliveries are
// always acknowledged after capture; they have already exhausted normal
// processing.
type Delivery interface {
	Body() []byte
	MessageID() string
	EventType() string
	Ack() error
}

func entryFrom(d Delivery) Entry {
	return Entry{
		MessageID: d.MessageID(),
		EventType: d.EventType(),
		Payload:   d.Body(),
	}
}
