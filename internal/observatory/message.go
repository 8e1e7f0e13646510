package observatory

import "encoding/json"

// MessageType is the discriminator on every relayed or viewer message.
type MessageType string

// MessageType values.
const (
	MessageTypeEvent    MessageType = "EVENT"
	MessageTypeRegister MessageType = "REGISTER"
	MessageTypeLog      MessageType = "LOG"
	MessageTypeState    MessageType = "STATE"
)

// Envelope is the relay message carrying one event from an instrumented
// client to the aggregator.
type Envelope struct {
	Type    MessageType     `json:"type"`
	TabID   int             `json:"tabId"`
	Payload json.RawMessage `json:"payload"`
}

// NewEventEnvelope returns an event envelope for a given tab.
func NewEventEnvelope(tabID int, ev RequestEvent) (Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Type:    MessageTypeEvent,
		TabID:   tabID,
		Payload: payload,
	}, nil
}

// Ack is the optional acknowledgement returned for a relayed envelope.
type Ack struct {
	OK bool `json:"ok"`
}

// Register is the first message a viewer sends on its channel.
type Register struct {
	Type   MessageType `json:"type"`
	TabID  int         `json:"tabId"`
	Domain string      `json:"domain,omitempty"`
}

// Message is sent from the aggregator to a viewer session.
//
// LOG messages carry a payload, STATE messages carry the domain fields.
type Message struct {
	Type     MessageType   `json:"type"`
	Payload  *RequestEvent `json:"payload,omitempty"`
	Domain   string        `json:"domain,omitempty"`
	Tracking *bool         `json:"tracking,omitempty"`
	Stats    *DomainStats  `json:"stats,omitempty"`
}

// LogMessage returns a LOG message for an event.
func LogMessage(ev RequestEvent) Message {
	return Message{Type: MessageTypeLog, Payload: &ev}
}

// StateMessage returns a STATE message for a domain.
func StateMessage(domain string, tracking bool, stats DomainStats) Message {
	return Message{
		Type:     MessageTypeState,
		Domain:   domain,
		Tracking: &tracking,
		Stats:    &stats,
	}
}
