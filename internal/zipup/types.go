package zipup

// ArchiveEntry is one regular file extracted from an uploaded archive.
type ArchiveEntry struct {
	Path    string // slash-separated path inside the archive
	Content string // base64-encoded file content
	Size    int64  // decoded size in bytes
}

// Credentials identifies the account a pipeline run acts on behalf of.
// Token is an opaque bearer credential; it is never logged.
type Credentials struct {
	Owner string
	Token string
}

// UploadRequest holds everything a caller supplies for one pipeline run.
type UploadRequest struct {
	Archive        []byte
	RepositoryName string
	Credentials    Credentials
	Sink           ProgressSink // optional
}

// TreeItem is one path entry sent when building the remote tree.
type TreeItem struct {
	Path string
	Mode string
	Type string
	SHA  string
}

const (
	// ModeRegularFile is the only file mode the pipeline writes.
	ModeRegularFile = "100644"
	// TypeBlob is the tree entry type for file content.
	TypeBlob = "blob"
)

// UploadResult describes a successfully published repository.
type UploadResult struct {
	URL        string
	Repository string
	Branch     string
	CommitSHA  string
	TreeSHA    string
	Files      int
}
