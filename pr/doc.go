// Package pr opens pull requests and posts comments on GitHub and GitLab.
//
// Core types:
//   - Provider: create a pull request, comment on it, link to files
//   - Builder: fluent construction of Options and the generated description
//   - GitHubProvider: go-github with an oauth2 token source
//   - GitLabProvider: go-gitlab merge requests and notes
//
// Example:
//
//	provider, err := pr.NewProvider("git@github.com:acme/api.git", token)
//	pull, err := provider.CreatePR(ctx, pr.NewBuilder("Add rate limiting").
//	    WithTicket("TK-421").
//	    WithHead("feature/tk-421").
//	    Build())
package pr
