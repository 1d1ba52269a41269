// Package message defines the messages agent steps and graphs exchange.
//
// The set is closed: Message has an unexported method, so every variant lives
// here and callers match on them with a type switch. Envelope carries a
// message across process or storage boundaries with its Kind alongside the
// JSON payload.
//
//	env, _ := message.Wrap(message.PlanApprovedMessage{TicketID: "T-1", ApprovedBy: "ana"})
//	m, _ := env.Open()
//	switch m := m.(type) {
//	case message.PlanApprovedMessage:
//	    fmt.Println(m.ApprovedBy)
//	}
package message
