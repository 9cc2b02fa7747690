package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"zipup/internal/config"
	"zipup/internal/credential"
	"zipup/internal/database"
	"zipup/internal/remote"
	"zipup/internal/source"
	"zipup/internal/zipup"
)

// Options adjusts how NewZipupApp wires its dependencies. The zero value
// builds everything from config.
type Options struct {
	// Operation names the CLI command being run, e.g. "Upload".
	Operation string
	// Verbose mirrors log output to stderr.
	Verbose bool

	Connector zipup.Connector
	Clock     zipup.Clock
	IDs       zipup.IDGenerator
}

// ZipupApp is the application layer between the CLI and the upload pipeline.
// It constructs all dependencies from config and owns their lifecycle.
type ZipupApp struct {
	cfg       *config.Config
	history   zipup.History
	tokens    credential.TokenStore
	loader    *source.Loader
	connector zipup.Connector
	clock     zipup.Clock
	logger    *slog.Logger
	opID      string
	uploads   int
	logFile   *os.File
}

// NewZipupApp creates a fully wired ZipupApp from the given config.
// The caller must call Close when done.
func NewZipupApp(cfg *config.Config, opts Options) (*ZipupApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = zipup.RealClock{}
	}
	ids := opts.IDs
	if ids == nil {
		ids = zipup.UUIDGenerator{}
	}

	connector := opts.Connector
	if connector == nil {
		c, err := remote.NewConnectorFromConfig(cfg.Remote)
		if err != nil {
			return nil, fmt.Errorf("creating remote: %w", err)
		}
		connector = c
	}

	tokens, err := credential.NewTokenStoreFromConfig(cfg.Credential)
	if err != nil {
		return nil, fmt.Errorf("creating token store: %w", err)
	}

	history, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := history.CheckMigrations(); err != nil {
		history.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	opID := newOperationID(clock.Now(), ids.New())
	logger, logFile, err := newLogger(cfg.LogDir, opID, opts.Verbose)
	if err != nil {
		history.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	if opts.Operation != "" {
		logger.Debug("starting", "operation", opts.Operation)
	}

	return &ZipupApp{
		cfg:       cfg,
		history:   history,
		tokens:    tokens,
		loader:    source.NewLoaderFromConfig(cfg.Source),
		connector: connector,
		clock:     clock,
		logger:    logger,
		opID:      opID,
		logFile:   logFile,
	}, nil
}

// newOperationID combines a UTC timestamp with a short random suffix so two
// runs started in the same second stay distinct.
func newOperationID(now time.Time, id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return now.UTC().Format("20060102T150405Z") + "-" + id
}

// OperationID identifies this run in logs and in the upload history.
func (a *ZipupApp) OperationID() string {
	return a.opID
}

// UploadParams describes one upload. Zero fields fall back to config.
type UploadParams struct {
	Location    string // file path, "-" or s3://bucket/key
	Name        string // derived from Location when empty
	Owner       string
	Token       string
	Private     *bool
	Concurrency int
	Sink        zipup.ProgressSink
	// Passphrase unlocks the stored token when no other token is available.
	Passphrase func() (string, error)
}

// Upload loads the archive, resolves the token and publishes the archive as a
// new repository. Every attempt is recorded in the upload history.
func (a *ZipupApp) Upload(ctx context.Context, p UploadParams) (*zipup.UploadResult, error) {
	name := p.Name
	if name == "" {
		name = DeriveRepositoryName(p.Location)
	}
	owner := p.Owner
	if owner == "" {
		owner = a.cfg.Owner
	}

	op := NewUploadOperation(a.nextOperationID(), strings.ToLower(name))
	fail := func(err error) (*zipup.UploadResult, error) {
		a.logger.Error("upload failed", "stage", "prepare", "error", err.Error())
		if p.Sink != nil {
			p.Sink.Report(zipup.Event{Phase: zipup.PhaseError, Stage: zipup.StageError, Message: err.Error()})
		}
		op.Finish(nil, err)
		return nil, err
	}

	if err := a.recordStart(op, owner, p.Location); err != nil {
		return fail(err)
	}
	defer a.recordFinish(op)

	data, err := a.loader.Load(ctx, p.Location)
	if err != nil {
		return fail(err)
	}
	a.logger.Info("archive loaded", "location", p.Location, "bytes", len(data))

	resolver := &credential.Resolver{Store: a.tokens, Passphrase: p.Passphrase}
	token, src, err := resolver.Resolve(p.Token)
	if err != nil {
		return fail(err)
	}
	a.logger.Debug("token resolved", "source", string(src))

	publisher := zipup.NewPublisher(a.connector, &slogAdapter{l: a.logger}, a.publisherOptions(p))
	res, err := publisher.Publish(ctx, zipup.UploadRequest{
		Archive:        data,
		RepositoryName: name,
		Credentials:    zipup.Credentials{Owner: owner, Token: token},
		Sink:           p.Sink,
	})
	op.Finish(res, err)
	return res, err
}

// nextOperationID returns the history id for the next upload of this run.
// The first upload uses the run's operation id itself.
func (a *ZipupApp) nextOperationID() string {
	a.uploads++
	if a.uploads == 1 {
		return a.opID
	}
	return fmt.Sprintf("%s.%d", a.opID, a.uploads)
}

func (a *ZipupApp) publisherOptions(p UploadParams) zipup.PublisherOptions {
	up := a.cfg.Upload
	opts := zipup.PublisherOptions{
		BlobConcurrency: up.BlobConcurrency,
		DefaultBranch:   a.cfg.Remote.DefaultBranch,
		CommitMessage:   up.CommitMessage,
		Private:         a.cfg.Remote.Private,
		SinkTimeout:     time.Duration(up.ProgressTimeoutMS) * time.Millisecond,
		Archive: zipup.ArchiveOptions{
			MaxFileSize: up.MaxFileSize,
			Ignore:      zipup.NewIgnoreMatcher(up.Ignore),
		},
	}
	if p.Concurrency > 0 {
		opts.BlobConcurrency = p.Concurrency
	}
	if p.Private != nil {
		opts.Private = *p.Private
	}
	return opts
}

func (a *ZipupApp) recordStart(op *UploadOperation, owner, location string) error {
	historyOwner := owner
	if org := a.cfg.Remote.Organization; org != "" {
		historyOwner = org
	}
	rec := &zipup.UploadRecord{
		OperationID: op.OperationID,
		Owner:       historyOwner,
		Repository:  op.Repository,
		Archive:     location,
		StartedAt:   a.clock.Now(),
	}
	if err := a.history.CreateUpload(rec); err != nil {
		return fmt.Errorf("recording upload: %w", err)
	}
	op.ID = rec.ID
	return nil
}

// recordFinish closes the history row. A failure here is logged only: the
// remote repository already reflects the run's real outcome.
func (a *ZipupApp) recordFinish(op *UploadOperation) {
	if !op.Persisted() {
		return
	}
	if err := a.history.FinishUpload(op.ID, op.Outcome(a.clock.Now())); err != nil {
		a.logger.Error("recording upload outcome", "id", op.ID, "error", err.Error())
	}
}

// History returns the most recent uploads, newest first.
func (a *ZipupApp) History(limit int) ([]*zipup.UploadRecord, error) {
	return a.history.ListUploads(limit)
}

// FindUpload returns the history record for operationID.
func (a *ZipupApp) FindUpload(operationID string) (*zipup.UploadRecord, error) {
	rec, err := a.history.FindUpload(operationID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("no upload with operation id %q", operationID)
	}
	return rec, nil
}

// Login stores token encrypted with passphrase.
func (a *ZipupApp) Login(token, passphrase string) error {
	if err := a.tokens.Save(token, passphrase); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	a.logger.Info("token saved")
	return nil
}

// TokenStatus reports which token sources are available.
type TokenStatus struct {
	Stored bool
	EnvVar string // first environment variable holding a token, if any
}

// AuthStatus reports where an upload would get its token from.
func (a *ZipupApp) AuthStatus() TokenStatus {
	st := TokenStatus{Stored: a.tokens.IsConfigured()}
	for _, key := range []string{credential.EnvToken, credential.EnvGitHubToken} {
		if strings.TrimSpace(os.Getenv(key)) != "" {
			st.EnvVar = key
			break
		}
	}
	return st
}

// Close closes the history database and the log file.
func (a *ZipupApp) Close() error {
	var errs []error
	if err := a.history.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing log file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// DeriveRepositoryName turns an archive location into a repository name:
// the last path element without its .zip extension, limited to the
// characters GitHub accepts.
func DeriveRepositoryName(location string) string {
	if location == "" || location == source.Stdin {
		return ""
	}
	base := path.Base(strings.ReplaceAll(location, "\\", "/"))
	if ext := path.Ext(base); strings.EqualFold(ext, ".zip") {
		base = strings.TrimSuffix(base, ext)
	}
	return zipup.SanitizeRepositoryName(base)
}
