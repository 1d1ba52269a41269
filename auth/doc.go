// Package auth issues and verifies reviewer decision tokens.
//
// A decision token is an HMAC-signed JWT naming one reviewer and one ticket.
// It is handed to a reviewer (in a notification link or by the CLI) and
// presented back when the reviewer approves or rejects the plan:
//
//	cfg := auth.Config{Secret: secret, Issuer: "ticketflow", TTL: 72 * time.Hour}
//	token, err := auth.IssueDecisionToken(cfg, "TK-421", "ana")
//
//	claims, err := auth.ParseDecisionToken(cfg, token)
//	if err := claims.Authorize("TK-421"); err != nil { ... }
//	reviewer := claims.Reviewer()
package auth
