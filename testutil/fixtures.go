// Package testutil provides utilities for testing.
package testutil

import (
	"github.com/randalmurphal/ticketflow/message"
)

// Answers returns an AnswersReceivedMessage for ticketID.
func Answers(ticketID string) message.AnswersReceivedMessage {
	return message.AnswersReceivedMessage{
		TicketID: ticketID,
		Answers:  map[string]string{"scope": "backend only"},
	}
}

// Approval returns a PlanApprovedMessage for ticketID.
func Approval(ticketID string) message.PlanApprovedMessage {
	return message.PlanApprovedMessage{TicketID: ticketID, ApprovedBy: "ana"}
}

// Rejection returns a PlanRejectedMessage for ticketID.
func Rejection(ticketID, reason string) message.PlanRejectedMessage {
	return message.PlanRejectedMessage{TicketID: ticketID, RejectedBy: "ben", Reason: reason}
}

// ReviewRequest returns a ReviewRequestedMessage for ticketID.
func ReviewRequest(ticketID string) message.ReviewRequestedMessage {
	return message.ReviewRequestedMessage{
		TicketID: ticketID,
		PRNumber: 42,
		PRURL:    "https://github.com/acme/api/pull/42",
	}
}
