package pr

import (
	"fmt"
	"os"
)

// ProviderFromEnv creates a provider for remoteURL, reading the token from
// GITHUB_TOKEN or GITLAB_TOKEN with GIT_TOKEN as the fallback for either.
func ProviderFromEnv(remoteURL string) (Provider, error) {
	platform, err := DetectProvider(remoteURL)
	if err != nil {
		return nil, err
	}

	envVar := "GITHUB_TOKEN"
	if platform == "gitlab" {
		envVar = "GITLAB_TOKEN"
	}
	token := os.Getenv(envVar)
	if token == "" {
		token = os.Getenv("GIT_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("%s or GIT_TOKEN not set; set one of these environment variables with a valid personal access token", envVar)
	}
	return NewProvider(remoteURL, token)
}

// NewProvider creates the provider matching remoteURL's host.
func NewProvider(remoteURL, token string) (Provider, error) {
	platform, err := DetectProvider(remoteURL)
	if err != nil {
		return nil, err
	}

	switch platform {
	case "github":
		return NewGitHubProviderFromURL(token, remoteURL)
	case "gitlab":
		return NewGitLabProviderFromURL(token, remoteURL)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, platform)
	}
}
