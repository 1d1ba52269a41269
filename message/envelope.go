package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind indicates an envelope names a kind this package does not define.
var ErrUnknownKind = errors.New("unknown message kind")

// Envelope is the wire form of a Message: its kind plus the JSON payload.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Wrap converts m into an envelope.
func Wrap(m Message) (Envelope, error) {
	if m == nil {
		return Envelope{}, fmt.Errorf("wrap message: nil message")
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", m.Kind(), err)
	}
	return Envelope{Kind: m.Kind(), Payload: payload}, nil
}

// Open decodes the payload into the variant named by Kind.
func (e Envelope) Open() (Message, error) {
	switch e.Kind {
	case KindTicketAnalyzed:
		return decode[TicketAnalyzedMessage](e.Payload)
	case KindAnswersReceived:
		return decode[AnswersReceivedMessage](e.Payload)
	case KindPlanGenerated:
		return decode[PlanGeneratedMessage](e.Payload)
	case KindPlanCommitted:
		return decode[PlanCommittedMessage](e.Payload)
	case KindMessagePosted:
		return decode[MessagePostedMessage](e.Payload)
	case KindPlanApproved:
		return decode[PlanApprovedMessage](e.Payload)
	case KindPlanRejected:
		return decode[PlanRejectedMessage](e.Payload)
	case KindCodeImplemented:
		return decode[CodeImplementedMessage](e.Payload)
	case KindCodeCommitted:
		return decode[CodeCommittedMessage](e.Payload)
	case KindPRCreated:
		return decode[PRCreatedMessage](e.Payload)
	case KindReviewRequested:
		return decode[ReviewRequestedMessage](e.Payload)
	case KindCodeReviewed:
		return decode[CodeReviewedMessage](e.Payload)
	case KindWorkflowCompleted:
		return decode[WorkflowCompletedMessage](e.Payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
}

// Marshal encodes m as an envelope.
func Marshal(m Message) ([]byte, error) {
	env, err := Wrap(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Unmarshal decodes an envelope produced by Marshal.
func Unmarshal(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env.Open()
}

func decode[T Message](payload json.RawMessage) (Message, error) {
	var m T
	if len(payload) == 0 {
		return nil, fmt.Errorf("decode %s: empty payload", m.Kind())
	}
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", m.Kind(), err)
	}
	return m, nil
}
