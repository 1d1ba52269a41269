package git

import (
	"errors"
	"fmt"
	"strings"
)

// CommitType is the conventional-commit type.
type CommitType string

const (
	CommitTypeFeat CommitType = "feat"
	CommitTypeFix  CommitType = "fix"
	CommitTypeDocs CommitType = "docs"
)

const (
	maxSubjectLength = 100
	bodyWidth        = 72
)

// CommitMessage builds a conventional commit message with ticket footers.
type CommitMessage struct {
	Type        CommitType
	Scope       string
	Subject     string
	Body        string
	TicketRefs  []string
	GeneratedBy string
}

// NewCommitMessage creates a commit message carrying the ticketflow marker.
func NewCommitMessage(typ CommitType, subject string) *CommitMessage {
	return &CommitMessage{
		Type:        typ,
		Subject:     subject,
		GeneratedBy: "ticketflow",
	}
}

// WithScope sets the scope.
func (c *CommitMessage) WithScope(scope string) *CommitMessage {
	c.Scope = scope
	return c
}

// WithBody sets the body. Long lines are wrapped when formatted.
func (c *CommitMessage) WithBody(body string) *CommitMessage {
	c.Body = body
	return c
}

// WithTicketRef adds a "Refs:" footer.
func (c *CommitMessage) WithTicketRef(ref string) *CommitMessage {
	c.TicketRefs = append(c.TicketRefs, ref)
	return c
}

// Validate checks the subject line.
func (c *CommitMessage) Validate() error {
	switch {
	case c.Type == "":
		return errors.New("commit type is required")
	case strings.TrimSpace(c.Subject) == "":
		return errors.New("commit subject is required")
	case len(c.Subject) > maxSubjectLength:
		return fmt.Errorf("commit subject too long (max %d characters)", maxSubjectLength)
	}
	return nil
}

// String formats the message as "type(scope): subject", body, footers.
func (c *CommitMessage) String() string {
	var b strings.Builder
	b.WriteString(string(c.Type))
	if c.Scope != "" {
		fmt.Fprintf(&b, "(%s)", c.Scope)
	}
	b.WriteString(": ")
	b.WriteString(firstLine(c.Subject))

	if c.Body != "" {
		b.WriteString("\n\n")
		b.WriteString(wrapText(c.Body, bodyWidth))
	}

	var footer []string
	for _, ref := range c.TicketRefs {
		footer = append(footer, "Refs: "+ref)
	}
	if c.GeneratedBy != "" {
		footer = append(footer, "Generated-By: "+c.GeneratedBy)
	}
	if len(footer) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(footer, "\n"))
	}
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// wrapText wraps each paragraph at width, keeping existing newlines.
func wrapText(text string, width int) string {
	var out []string
	for _, paragraph := range strings.Split(text, "\n") {
		if len(paragraph) <= width {
			out = append(out, paragraph)
			continue
		}
		var line string
		for _, word := range strings.Fields(paragraph) {
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) > width:
				out = append(out, line)
				line = word
			default:
				line += " " + word
			}
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
