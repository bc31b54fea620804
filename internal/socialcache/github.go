package socialcache

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v83/github"
	"golang.org/x/oauth2"
)

// GitHubService is the service name GitHub accounts are linked under.
const GitHubService = "github.com"

// GitHubLoader reads account creation dates from the GitHub users API.
// Account ids are numeric GitHub user ids.
type GitHubLoader struct {
	client *github.Client
}

// NewGitHubLoader creates a loader. An empty token uses unauthenticated requests.
func NewGitHubLoader(ctx context.Context, token string) *GitHubLoader {
	var hc *http.Client
	if token != "" {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			TokenType:   "token",
			AccessToken: token,
		}))
	}
	return &GitHubLoader{client: github.NewClient(hc)}
}

// NewGitHubLoaderWithClient wraps an existing client.
func NewGitHubLoaderWithClient(c *github.Client) *GitHubLoader {
	return &GitHubLoader{client: c}
}

// JoinDate implements Loader.
func (g *GitHubLoader) JoinDate(ctx context.Context, accountID string) (time.Time, bool, error) {
	id, err := strconv.ParseInt(accountID, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("github account id %q is not numeric", accountID)
	}

	usr, resp, err := g.client.Users.GetByID(ctx, id)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get github user %d: %w", id, err)
	}

	slog.DebugContext(ctx, "github user loaded", "id", id, "login", usr.GetLogin(), "remaining", resp.Rate.Remaining)

	created := usr.GetCreatedAt()
	if created.IsZero() {
		return time.Time{}, false, nil
	}
	return created.UTC(), true, nil
}
