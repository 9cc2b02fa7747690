package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"

	"zipup/internal/zipup"
)

// GitHubOptions configures a GitHubConnector.
type GitHubOptions struct {
	// BaseURL is the REST API root, e.g. "https://ghe.example.com/api/v3/".
	// Empty means api.github.com.
	BaseURL string
	// UploadURL defaults to BaseURL when BaseURL is set.
	UploadURL string
	// Organization creates repositories under an organization instead of the
	// authenticated user. The organization then owns every later git call.
	Organization string
	// Timeout is the HTTP client timeout. Zero means no timeout.
	Timeout time.Duration
	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client
}

// GitHubConnector opens go-github sessions against the GitHub REST API.
type GitHubConnector struct {
	opts       GitHubOptions
	httpClient *http.Client
}

// NewGitHubConnector creates a connector. No network traffic happens until a
// session method is called.
func NewGitHubConnector(opts GitHubOptions) *GitHubConnector {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &GitHubConnector{opts: opts, httpClient: httpClient}
}

// Connect builds a client authenticated with the caller's token. The client
// lives only as long as the returned session.
func (c *GitHubConnector) Connect(creds zipup.Credentials) (zipup.ObjectAPI, error) {
	client := github.NewClient(c.httpClient).WithAuthToken(creds.Token)

	if c.opts.BaseURL != "" {
		baseURL, err := parseAPIURL(c.opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing base_url: %w", err)
		}
		uploadURL := baseURL
		if c.opts.UploadURL != "" {
			if uploadURL, err = parseAPIURL(c.opts.UploadURL); err != nil {
				return nil, fmt.Errorf("parsing upload_url: %w", err)
			}
		}
		client.BaseURL = baseURL
		client.UploadURL = uploadURL
	}

	owner := creds.Owner
	if c.opts.Organization != "" {
		owner = c.opts.Organization
	}
	return &githubSession{client: client, owner: owner, org: c.opts.Organization}, nil
}

// parseAPIURL parses raw and guarantees the trailing slash go-github requires.
func parseAPIURL(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute URL", raw)
	}
	return u, nil
}

type githubSession struct {
	client *github.Client
	owner  string
	org    string
}

func (s *githubSession) CreateRepository(ctx context.Context, spec zipup.RepositorySpec) (*zipup.Repository, error) {
	repo, _, err := s.client.Repositories.Create(ctx, s.org, &github.Repository{
		Name:     github.String(spec.Name),
		Private:  github.Bool(spec.Private),
		AutoInit: github.Bool(spec.AutoInit),
	})
	if err != nil {
		return nil, translateError(err)
	}
	return &zipup.Repository{
		Name:          repo.GetName(),
		HTMLURL:       repo.GetHTMLURL(),
		DefaultBranch: repo.GetDefaultBranch(),
	}, nil
}

func (s *githubSession) GetBranchRef(ctx context.Context, repo, branch string) (string, error) {
	ref, _, err := s.client.Git.GetRef(ctx, s.owner, repo, "heads/"+branch)
	if err != nil {
		return "", translateError(err)
	}
	sha := ref.GetObject().GetSHA()
	if sha == "" {
		return "", fmt.Errorf("ref heads/%s has no object sha", branch)
	}
	return sha, nil
}

func (s *githubSession) GetCommit(ctx context.Context, repo, sha string) (*zipup.Commit, error) {
	c, _, err := s.client.Git.GetCommit(ctx, s.owner, repo, sha)
	if err != nil {
		return nil, translateError(err)
	}
	parents := make([]string, 0, len(c.Parents))
	for _, p := range c.Parents {
		parents = append(parents, p.GetSHA())
	}
	return &zipup.Commit{
		SHA:     c.GetSHA(),
		TreeSHA: c.GetTree().GetSHA(),
		Parents: parents,
	}, nil
}

func (s *githubSession) CreateBlob(ctx context.Context, repo, content string) (string, error) {
	blob, _, err := s.client.Git.CreateBlob(ctx, s.owner, repo, &github.Blob{
		Content:  github.String(content),
		Encoding: github.String("base64"),
	})
	if err != nil {
		return "", translateError(err)
	}
	return blob.GetSHA(), nil
}

func (s *githubSession) CreateTree(ctx context.Context, repo, baseTree string, items []zipup.TreeItem) (string, error) {
	entries := make([]*github.TreeEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, &github.TreeEntry{
			Path: github.String(item.Path),
			Mode: github.String(item.Mode),
			Type: github.String(item.Type),
			SHA:  github.String(item.SHA),
		})
	}
	tree, _, err := s.client.Git.CreateTree(ctx, s.owner, repo, baseTree, entries)
	if err != nil {
		return "", translateError(err)
	}
	return tree.GetSHA(), nil
}

func (s *githubSession) CreateCommit(ctx context.Context, repo string, spec zipup.CommitSpec) (string, error) {
	parents := make([]*github.Commit, 0, len(spec.Parents))
	for _, p := range spec.Parents {
		parents = append(parents, &github.Commit{SHA: github.String(p)})
	}
	commit, _, err := s.client.Git.CreateCommit(ctx, s.owner, repo, &github.Commit{
		Message: github.String(spec.Message),
		Tree:    &github.Tree{SHA: github.String(spec.TreeSHA)},
		Parents: parents,
	}, nil)
	if err != nil {
		return "", translateError(err)
	}
	return commit.GetSHA(), nil
}

func (s *githubSession) UpdateBranchRef(ctx context.Context, repo, branch, sha string, force bool) error {
	_, _, err := s.client.Git.UpdateRef(ctx, s.owner, repo, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.String(sha)},
	}, force)
	if err != nil {
		return translateError(err)
	}
	return nil
}

// translateError maps HTTP 422 responses onto zipup.ErrUnprocessable and
// keeps the remote's own message in the chain.
func translateError(err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusUnprocessableEntity {
		return fmt.Errorf("%w: %w", zipup.ErrUnprocessable, err)
	}
	return err
}

// Compile-time check that GitHubConnector implements zipup.Connector.
var _ zipup.Connector = (*GitHubConnector)(nil)
