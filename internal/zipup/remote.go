package zipup

import "context"

// RepositorySpec describes a repository to create.
type RepositorySpec struct {
	Name     string
	Private  bool
	AutoInit bool
}

// Repository is the subset of remote repository metadata the pipeline uses.
type Repository struct {
	Name          string
	HTMLURL       string
	DefaultBranch string
}

// Commit is the subset of a remote commit object the pipeline uses.
type Commit struct {
	SHA     string
	TreeSHA string
	Parents []string
}

// CommitSpec describes a commit to create.
type CommitSpec struct {
	Message string
	TreeSHA string
	Parents []string
}

// ObjectAPI is a session against a remote Git object store, bound to one
// account. Implementations wrap ErrUnprocessable when the remote rejects a
// request as unprocessable.
type ObjectAPI interface {
	// CreateRepository creates a repository owned by the session's account.
	CreateRepository(ctx context.Context, spec RepositorySpec) (*Repository, error)

	// GetBranchRef returns the commit sha the branch points at.
	GetBranchRef(ctx context.Context, repo, branch string) (string, error)

	// GetCommit fetches a commit object by sha.
	GetCommit(ctx context.Context, repo, sha string) (*Commit, error)

	// CreateBlob uploads base64-encoded content and returns its sha.
	CreateBlob(ctx context.Context, repo, content string) (string, error)

	// CreateTree creates a tree from items layered over baseTree and returns its sha.
	CreateTree(ctx context.Context, repo, baseTree string, items []TreeItem) (string, error)

	// CreateCommit creates a commit object and returns its sha.
	CreateCommit(ctx context.Context, repo string, spec CommitSpec) (string, error)

	// UpdateBranchRef moves the branch to sha. A non-force update requires sha
	// to descend from the current tip.
	UpdateBranchRef(ctx context.Context, repo, branch, sha string, force bool) error
}

// Connector opens an ObjectAPI session for a set of credentials.
// Each pipeline run gets its own session; no client outlives a call.
type Connector interface {
	Connect(creds Credentials) (ObjectAPI, error)
}
