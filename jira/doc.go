// Package jira is the ticket tracker client used to post plans and ticket
// updates back to the issue a workflow run was started from.
//
// Only the calls the workflow needs are implemented: reading an issue's
// summary and adding a comment. Comments are written in Markdown and sent
// as Atlassian Document Format on API v3 (Cloud) or as plain text on v2
// (Server and Data Center).
//
//	client, err := jira.NewClient(&jira.Config{
//	    URL:  "https://acme.atlassian.net",
//	    Auth: jira.AuthConfig{Type: jira.AuthAPIToken, Email: "bot@acme.io", Token: token},
//	})
//	comment, err := client.AddComment(ctx, "TK-421", "## Plan\n\n- step one")
package jira
