package zipup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBranch is used when the remote does not report the new repository's default branch.
	DefaultBranch = "main"
	// DefaultCommitMessage is the message of the commit holding the archive contents.
	DefaultCommitMessage = "Initial commit from ZIP upload"
	// DefaultSinkTimeout bounds how long Publish waits for the sink to drain.
	DefaultSinkTimeout = 5 * time.Second
	// SuccessMessage is the message of the terminal success event.
	SuccessMessage = "Successfully created repository and uploaded files!"
)

// PublisherOptions tunes a Publisher. Zero values select the defaults.
type PublisherOptions struct {
	// BlobConcurrency is the number of blob uploads in flight. 1 (the default)
	// uploads sequentially. Above 1, upload events still arrive in file order
	// but announce dispatch rather than completion.
	BlobConcurrency int
	DefaultBranch   string
	CommitMessage   string
	Private         bool
	Archive         ArchiveOptions
	SinkTimeout     time.Duration
}

// Publisher turns a ZIP archive into the first commit of a new remote repository.
type Publisher struct {
	connector Connector
	logger    Logger
	opts      PublisherOptions
}

// NewPublisher creates a Publisher. A nil logger discards log output.
func NewPublisher(connector Connector, logger Logger, opts PublisherOptions) *Publisher {
	if logger == nil {
		logger = NewNopLogger()
	}
	if opts.BlobConcurrency < 1 {
		opts.BlobConcurrency = 1
	}
	if opts.DefaultBranch == "" {
		opts.DefaultBranch = DefaultBranch
	}
	if opts.CommitMessage == "" {
		opts.CommitMessage = DefaultCommitMessage
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = DefaultSinkTimeout
	}
	return &Publisher{connector: connector, logger: logger, opts: opts}
}

// Publish runs the whole pipeline: read the archive, create the repository,
// upload one blob per file, build a tree over the seed commit's tree, commit it
// and advance the default branch. It returns the repository URL on success.
//
// Every failure is terminal. Nothing is retried and a repository created before
// the failure is left in place. The sink, when set, sees the processing events
// followed by exactly one success or error event.
func (p *Publisher) Publish(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	progress := newDispatcher(req.Sink)
	defer func() {
		if !progress.close(p.opts.SinkTimeout) {
			p.logger.Warn("progress sink did not drain", "timeout", p.opts.SinkTimeout.String())
		}
	}()

	result, err := p.publish(ctx, req, progress)
	if err != nil {
		p.logger.Error("upload failed", "repository", strings.ToLower(req.RepositoryName), "error", err.Error())
		progress.emit(Event{Phase: PhaseError, Stage: StageError, Message: err.Error()})
		return nil, err
	}

	p.logger.Info("upload complete", "repository", result.Repository, "url", result.URL, "files", result.Files)
	progress.emit(Event{Phase: PhaseSuccess, Stage: StageSuccess, Message: SuccessMessage})
	return result, nil
}

func (p *Publisher) publish(ctx context.Context, req UploadRequest, progress *dispatcher) (*UploadResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	name := strings.ToLower(req.RepositoryName)
	report := func(stage Stage, msg string) {
		progress.emit(Event{Phase: PhaseProcessing, Stage: stage, Message: msg})
	}

	report(StageReading, "Reading and unzipping file...")
	entries, err := ReadArchive(req.Archive, p.opts.Archive)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("archive read", "files", len(entries))

	api, err := p.connector.Connect(req.Credentials)
	if err != nil {
		return nil, &RepositoryCreateError{Err: fmt.Errorf("connecting to remote: %w", err)}
	}

	report(StageRepoCreating, fmt.Sprintf("Creating new repository: %s...", name))
	repo, err := api.CreateRepository(ctx, RepositorySpec{
		Name:     name,
		Private:  p.opts.Private,
		AutoInit: true,
	})
	if err != nil {
		if errors.Is(err, ErrUnprocessable) {
			return nil, &RepositoryConflictError{Name: name, Err: err}
		}
		return nil, &RepositoryCreateError{Err: err}
	}
	p.logger.Info("repository created", "repository", name, "url", repo.HTMLURL)

	branch := repo.DefaultBranch
	if branch == "" {
		branch = p.opts.DefaultBranch
	}

	report(StageRefFetching, "Fetching initial commit from new repository...")
	parentSHA, err := api.GetBranchRef(ctx, name, branch)
	if err != nil {
		return nil, &RemoteCallError{Stage: StageRefFetching, Err: err}
	}

	report(StageCommitFetching, "Resolving base tree from initial commit...")
	seed, err := api.GetCommit(ctx, name, parentSHA)
	if err != nil {
		return nil, &RemoteCallError{Stage: StageCommitFetching, Err: err}
	}

	items, err := p.uploadBlobs(ctx, api, name, entries, progress)
	if err != nil {
		return nil, err
	}

	report(StageTreeBuilding, "Building git tree from files...")
	treeSHA, err := api.CreateTree(ctx, name, seed.TreeSHA, items)
	if err != nil {
		return nil, &RemoteCallError{Stage: StageTreeBuilding, Err: err}
	}

	report(StageCommitCreating, "Creating new commit for uploaded files...")
	commitSHA, err := api.CreateCommit(ctx, name, CommitSpec{
		Message: p.opts.CommitMessage,
		TreeSHA: treeSHA,
		Parents: []string{parentSHA},
	})
	if err != nil {
		return nil, &RemoteCallError{Stage: StageCommitCreating, Err: err}
	}

	report(StageRefUpdating, fmt.Sprintf("Finalizing %s branch...", branch))
	if err := api.UpdateBranchRef(ctx, name, branch, commitSHA, false); err != nil {
		return nil, &RemoteCallError{Stage: StageRefUpdating, Err: err}
	}

	return &UploadResult{
		URL:        repo.HTMLURL,
		Repository: name,
		Branch:     branch,
		CommitSHA:  commitSHA,
		TreeSHA:    treeSHA,
		Files:      len(entries),
	}, nil
}

// uploadBlobs creates one blob per entry and returns the tree items indexed
// like entries, whatever order the uploads finish in.
func (p *Publisher) uploadBlobs(ctx context.Context, api ObjectAPI, repo string, entries []ArchiveEntry, progress *dispatcher) ([]TreeItem, error) {
	total := len(entries)
	items := make([]TreeItem, total)

	announce := func(i int, entry ArchiveEntry) {
		progress.emit(Event{
			Phase:   PhaseProcessing,
			Stage:   StageBlobUploading,
			Message: fmt.Sprintf("Uploading file %d/%d: %s", i+1, total, entry.Path),
			Current: i + 1,
			Total:   total,
		})
	}

	if p.opts.BlobConcurrency == 1 {
		for i, entry := range entries {
			announce(i, entry)
			sha, err := api.CreateBlob(ctx, repo, entry.Content)
			if err != nil {
				return nil, blobError(entry.Path, err)
			}
			items[i] = newTreeItem(entry.Path, sha)
			p.logger.Debug("blob created", "path", entry.Path, "sha", sha, "size", entry.Size)
		}
		return items, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.BlobConcurrency)
	for i, entry := range entries {
		if gctx.Err() != nil {
			break
		}
		announce(i, entry)
		g.Go(func() error {
			sha, err := api.CreateBlob(gctx, repo, entry.Content)
			if err != nil {
				return blobError(entry.Path, err)
			}
			items[i] = newTreeItem(entry.Path, sha)
			p.logger.Debug("blob created", "path", entry.Path, "sha", sha, "size", entry.Size)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// The loop may have stopped early on a cancelled parent without any upload failing.
	if err := ctx.Err(); err != nil {
		return nil, &RemoteCallError{Stage: StageBlobUploading, Err: err}
	}
	return items, nil
}

func newTreeItem(path, sha string) TreeItem {
	return TreeItem{Path: path, Mode: ModeRegularFile, Type: TypeBlob, SHA: sha}
}

func blobError(path string, err error) error {
	return &RemoteCallError{Stage: StageBlobUploading, Err: fmt.Errorf("%s: %w", path, err)}
}

func validateRequest(req UploadRequest) error {
	switch {
	case len(req.Archive) == 0:
		return &InputValidationError{Field: "archive"}
	case strings.TrimSpace(req.RepositoryName) == "":
		return &InputValidationError{Field: "repository name"}
	case strings.TrimSpace(req.Credentials.Owner) == "":
		return &InputValidationError{Field: "account"}
	case strings.TrimSpace(req.Credentials.Token) == "":
		return &InputValidationError{Field: "credential"}
	}
	return nil
}
