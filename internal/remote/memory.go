package remote

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"zipup/internal/zipup"
)

// ErrNotFound is returned by MemoryRemote for unknown repositories, refs and objects.
var ErrNotFound = errors.New("not found")

const (
	defaultMemoryBaseURL = "https://memory.invalid"
	seedCommitMessage    = "Initial commit"
)

// Call records one ObjectAPI invocation against a MemoryRemote.
type Call struct {
	Method   string
	Owner    string
	Repo     string
	BaseTree string           // CreateTree
	Items    []zipup.TreeItem // CreateTree
	Parents  []string         // CreateCommit
	Message  string           // CreateCommit
	Force    bool             // UpdateBranchRef
}

// MemoryRemote is an in-memory Git object store implementing zipup.Connector.
// Object ids are real content addresses: blobs hash exactly as git hashes them,
// trees and commits hash a canonical text form. Trees are kept flat (path ->
// blob sha), which is all the upload pipeline ever builds.
// It records every call and can be told to fail a method, making it the
// standard fake for pipeline tests. This implementation is safe for concurrent use.
type MemoryRemote struct {
	baseURL       string
	defaultBranch string

	mu       sync.Mutex
	repos    map[string]*memoryRepo // "owner/name" -> repository
	calls    []Call
	failures map[string]error
}

type memoryRepo struct {
	owner   string
	name    string
	branch  string
	blobs   map[string][]byte
	trees   map[string]map[string]string // tree sha -> path -> blob sha
	commits map[string]*zipup.Commit
	refs    map[string]string // branch -> commit sha
}

// NewMemoryRemote creates an empty remote. Empty arguments select
// https://memory.invalid and "main".
func NewMemoryRemote(baseURL, defaultBranch string) *MemoryRemote {
	if baseURL == "" {
		baseURL = defaultMemoryBaseURL
	}
	if defaultBranch == "" {
		defaultBranch = zipup.DefaultBranch
	}
	return &MemoryRemote{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		defaultBranch: defaultBranch,
		repos:         make(map[string]*memoryRepo),
		failures:      make(map[string]error),
	}
}

// Connect returns a session bound to creds.Owner.
func (m *MemoryRemote) Connect(creds zipup.Credentials) (zipup.ObjectAPI, error) {
	if creds.Owner == "" {
		return nil, fmt.Errorf("memory remote requires an owner")
	}
	return &memorySession{remote: m, owner: creds.Owner}, nil
}

// FailOn makes every later call to method fail with err.
// method is an ObjectAPI method name, e.g. "CreateBlob".
func (m *MemoryRemote) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = err
}

// Calls returns a copy of every recorded call, in order.
func (m *MemoryRemote) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns how many times method was invoked.
func (m *MemoryRemote) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Files resolves branch in owner/repo down to its tree and returns the
// decoded content of every file keyed by path.
func (m *MemoryRemote) Files(owner, repo, branch string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.lookup(owner, repo)
	if err != nil {
		return nil, err
	}
	head, ok := r.refs[branch]
	if !ok {
		return nil, fmt.Errorf("ref heads/%s: %w", branch, ErrNotFound)
	}
	tree := r.trees[r.commits[head].TreeSHA]

	files := make(map[string][]byte, len(tree))
	for path, sha := range tree {
		files[path] = append([]byte(nil), r.blobs[sha]...)
	}
	return files, nil
}

// Commit returns a stored commit object.
func (m *MemoryRemote) Commit(owner, repo, sha string) (*zipup.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.lookup(owner, repo)
	if err != nil {
		return nil, err
	}
	c, ok := r.commits[sha]
	if !ok {
		return nil, fmt.Errorf("commit %s: %w", sha, ErrNotFound)
	}
	cp := *c
	cp.Parents = append([]string(nil), c.Parents...)
	return &cp, nil
}

// record appends a call and returns the injected failure for it, if any.
// Callers must hold m.mu.
func (m *MemoryRemote) record(c Call) error {
	m.calls = append(m.calls, c)
	return m.failures[c.Method]
}

// lookup finds a repository, ignoring case. Callers must hold m.mu.
func (m *MemoryRemote) lookup(owner, name string) (*memoryRepo, error) {
	r, ok := m.repos[repoKey(owner, name)]
	if !ok {
		return nil, fmt.Errorf("repository %s/%s: %w", owner, name, ErrNotFound)
	}
	return r, nil
}

func repoKey(owner, name string) string {
	return strings.ToLower(owner) + "/" + strings.ToLower(name)
}

// memorySession is the per-credential view of a MemoryRemote.
type memorySession struct {
	remote *MemoryRemote
	owner  string
}

func (s *memorySession) CreateRepository(_ context.Context, spec zipup.RepositorySpec) (*zipup.Repository, error) {
	m := s.remote
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(Call{Method: "CreateRepository", Owner: s.owner, Repo: spec.Name}); err != nil {
		return nil, err
	}
	if spec.Name == "" || zipup.SanitizeRepositoryName(spec.Name) != spec.Name {
		return nil, fmt.Errorf("name %q is invalid: %w", spec.Name, zipup.ErrUnprocessable)
	}
	key := repoKey(s.owner, spec.Name)
	if _, exists := m.repos[key]; exists {
		return nil, fmt.Errorf("name already exists on this account: %w", zipup.ErrUnprocessable)
	}

	r := &memoryRepo{
		owner:   s.owner,
		name:    spec.Name,
		branch:  m.defaultBranch,
		blobs:   make(map[string][]byte),
		trees:   make(map[string]map[string]string),
		commits: make(map[string]*zipup.Commit),
		refs:    make(map[string]string),
	}
	if spec.AutoInit {
		r.seed()
	}
	m.repos[key] = r

	return &zipup.Repository{
		Name:          spec.Name,
		HTMLURL:       fmt.Sprintf("%s/%s/%s", m.baseURL, s.owner, spec.Name),
		DefaultBranch: r.branch,
	}, nil
}

func (s *memorySession) GetBranchRef(_ context.Context, repo, branch string) (string, error) {
	m := s.remote
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(Call{Method: "GetBranchRef", Owner: s.owner, Repo: repo}); err != nil {
		return "", err
	}
	r, err := m.lookup(s.owner, repo)
	if err != nil {
		return "", err
	}
	sha, ok := r.refs[branch]
	if !ok {
		return "", fmt.Errorf("ref heads/%s: %w", branch, ErrNotFound)
	}
	return sha, nil
}

func (s *memorySession) GetCommit(_ context.Context, repo, sha string) (*zipup.Commit, error) {
	m := s.remote
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(Call{Method: "GetCommit", Owner: s.owner, Repo: repo}); err != nil {
		return nil, err
	}
	r, err := m.lookup(s.owner, repo)
	if err != nil {
		return nil, err
	}
	c, ok := r.commits[sha]
	if !ok {
		return nil, fmt.Errorf("commit %s: %w", sha, ErrNotFound)
	}
	cp := *c
	cp.Parents = append([]string(nil), c.Parents...)
	return &cp, nil
}

func (s *memorySession) CreateBlob(_ context.Context, repo, content string) (string, error) {
	m := s.remote
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(Call{Method: "CreateBlob", Owner: s.owner, Repo: repo}); err != nil {
		return "", err
	}
	r, err := m.lookup(s.owner, repo)
	if err != nil {
		return "", err
	}
	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return "", fmt.Errorf("invalid base64 content: %w", zipup.ErrUnprocessable)
	}
	return r.putBlob(data), nil
}

func (s *memorySession) CreateTree(_ context.Context, repo, baseTree string, items []zipup.TreeItem) (string, error) {
	m := s.remote
	m.mu.Lock()
	defer m.mu.Unlock()

	call := Call{Method: "CreateTree", Owner: s.owner, Repo: repo, BaseTree: baseTree, Items: append([]zipup.TreeItem(nil), items...)}
	if err := m.record(call); err != nil {
		return "", err
	}
	r, err := m.lookup(s.owner, repo)
	if err != nil {
		return "", err
	}

	entries := make(map[string]string)
	if baseTree != "" {
		base, ok := r.trees[baseTree]
		if !ok {
			return "", fmt.Errorf("base_tree %s: %w", baseTree, zipup.ErrUnprocessable)
		}
		for path, sha := range base {
			entries[path] = sha
		}
	}
	// Later items overwrite earlier ones with the same path.
	for _, item := range items {
		if item.Path == "" {
			return "", fmt.Errorf("tree item with empty path: %w", zipup.ErrUnprocessable)
		}
		if item.Type != zipup.TypeBlob {
			return "", fmt.Errorf("tree item %s has type %q: %w", item.Path, item.Type, zipup.ErrUnprocessable)
		}
		if _, ok := r.blobs[item.SHA]; !ok {
			return "", fmt.Errorf("tree item %s references unknown blob %s: %w", item.Path, item.SHA, zipup.ErrUnprocessable)
		}
		entries[item.Path] = item.SHA
	}
	return r.putTree(entries), nil
}

func (s *memorySession) CreateCommit(_ context.Context, repo string, spec zipup.CommitSpec) (string, error) {
	m := s.remote
	m.mu.Lock()
	defer m.mu.Unlock()

	call := Call{Method: "CreateCommit", Owner: s.owner, Repo: repo, Parents: append([]string(nil), spec.Parents...), Message: spec.Message}
	if err := m.record(call); err != nil {
		return "", err
	}
	r, err := m.lookup(s.owner, repo)
	if err != nil {
		return "", err
	}
	if _, ok := r.trees[spec.TreeSHA]; !ok {
		return "", fmt.Errorf("tree %s: %w", spec.TreeSHA, zipup.ErrUnprocessable)
	}
	for _, p := range spec.Parents {
		if _, ok := r.commits[p]; !ok {
			return "", fmt.Errorf("parent %s: %w", p, zipup.ErrUnprocessable)
		}
	}
	return r.putCommit(spec.TreeSHA, spec.Parents, spec.Message), nil
}

func (s *memorySession) UpdateBranchRef(_ context.Context, repo, branch, sha string, force bool) error {
	m := s.remote
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(Call{Method: "UpdateBranchRef", Owner: s.owner, Repo: repo, Force: force}); err != nil {
		return err
	}
	r, err := m.lookup(s.owner, repo)
	if err != nil {
		return err
	}
	tip, ok := r.refs[branch]
	if !ok {
		return fmt.Errorf("ref heads/%s: %w", branch, ErrNotFound)
	}
	if _, ok := r.commits[sha]; !ok {
		return fmt.Errorf("commit %s: %w", sha, zipup.ErrUnprocessable)
	}
	if !force && !r.descends(sha, tip) {
		return fmt.Errorf("update is not a fast forward: %w", zipup.ErrUnprocessable)
	}
	r.refs[branch] = sha
	return nil
}

// seed creates the auto-init README commit on the default branch.
func (r *memoryRepo) seed() {
	readme := r.putBlob([]byte("# " + r.name + "\n"))
	tree := r.putTree(map[string]string{"README.md": readme})
	r.refs[r.branch] = r.putCommit(tree, nil, seedCommitMessage)
}

func (r *memoryRepo) putBlob(data []byte) string {
	sha := hashObject("blob", data)
	r.blobs[sha] = append([]byte(nil), data...)
	return sha
}

func (r *memoryRepo) putTree(entries map[string]string) string {
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "%s %s %s\t%s\n", zipup.ModeRegularFile, zipup.TypeBlob, entries[p], p)
	}
	sha := hashObject("tree", []byte(b.String()))
	r.trees[sha] = entries
	return sha
}

func (r *memoryRepo) putCommit(tree string, parents []string, message string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tree %s\n", tree)
	for _, p := range parents {
		fmt.Fprintf(&b, "parent %s\n", p)
	}
	// Commits with identical content would collide; the repo-wide commit count keeps them apart.
	fmt.Fprintf(&b, "sequence %d\n\n%s", len(r.commits), message)
	sha := hashObject("commit", []byte(b.String()))
	r.commits[sha] = &zipup.Commit{SHA: sha, TreeSHA: tree, Parents: append([]string(nil), parents...)}
	return sha
}

// descends reports whether commit sha has ancestor in its history (or is it).
func (r *memoryRepo) descends(sha, ancestor string) bool {
	seen := make(map[string]bool)
	queue := []string{sha}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == ancestor {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if c, ok := r.commits[cur]; ok {
			queue = append(queue, c.Parents...)
		}
	}
	return false
}

// hashObject computes a git-style object id: sha1("<kind> <len>\x00<data>").
func hashObject(kind string, data []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", kind, len(data))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Compile-time check that MemoryRemote implements zipup.Connector.
var _ zipup.Connector = (*MemoryRemote)(nil)
