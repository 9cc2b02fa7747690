package zipup_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"zipup/internal/remote"
	"zipup/internal/testutil"
	"zipup/internal/zipup"
)

func newRequest(t *testing.T, name string, files []testutil.ZipFile, sink zipup.ProgressSink) zipup.UploadRequest {
	t.Helper()
	return zipup.UploadRequest{
		Archive:        testutil.BuildZip(t, files),
		RepositoryName: name,
		Credentials:    testutil.NewTestCredentials(),
		Sink:           sink,
	}
}

func methods(calls []remote.Call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

func TestPublish_EndToEnd(t *testing.T) {
	t.Parallel()
	mem := testutil.NewTestRemote()
	sink := testutil.NewRecordingSink()
	p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{})

	req := newRequest(t, "Demo", []testutil.ZipFile{
		{Name: "src/"},
		{Name: "src/index.ts", Body: "console.log(1);"},
		{Name: "README.md", Body: "hello"},
	}, sink)

	res, err := p.Publish(context.Background(), req)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if res.URL != "https://memory.invalid/alice/demo" {
		t.Errorf("URL = %q", res.URL)
	}
	if res.Repository != "demo" || res.Branch != "main" || res.Files != 2 {
		t.Errorf("result = %+v", res)
	}

	wantCalls := []string{
		"CreateRepository", "GetBranchRef", "GetCommit",
		"CreateBlob", "CreateBlob",
		"CreateTree", "CreateCommit", "UpdateBranchRef",
	}
	gotCalls := methods(mem.Calls())
	if fmt.Sprint(gotCalls) != fmt.Sprint(wantCalls) {
		t.Errorf("calls = %v, want %v", gotCalls, wantCalls)
	}

	files, err := mem.Files(testutil.TestOwner, "demo", "main")
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	want := map[string]string{"src/index.ts": "console.log(1);", "README.md": "hello"}
	if len(files) != len(want) {
		t.Errorf("files = %v, want %v", files, want)
	}
	for path, body := range want {
		if string(files[path]) != body {
			t.Errorf("file %s = %q, want %q", path, files[path], body)
		}
	}

	head, err := mem.Commit(testutil.TestOwner, "demo", res.CommitSHA)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if head.TreeSHA != res.TreeSHA || len(head.Parents) != 1 {
		t.Errorf("head commit = %+v", head)
	}
	seed, err := mem.Commit(testutil.TestOwner, "demo", head.Parents[0])
	if err != nil {
		t.Fatalf("parent commit: %v", err)
	}

	for _, c := range mem.Calls() {
		switch c.Method {
		case "CreateTree":
			if c.BaseTree != seed.TreeSHA {
				t.Errorf("CreateTree base = %q, want seed tree %q", c.BaseTree, seed.TreeSHA)
			}
			for _, item := range c.Items {
				if item.Mode != zipup.ModeRegularFile || item.Type != zipup.TypeBlob {
					t.Errorf("tree item %+v has wrong mode or type", item)
				}
			}
		case "CreateCommit":
			if c.Message != zipup.DefaultCommitMessage {
				t.Errorf("commit message = %q", c.Message)
			}
		case "UpdateBranchRef":
			if c.Force {
				t.Error("branch update must not be forced")
			}
		}
	}
}

func TestPublish_KeepsSeedFiles(t *testing.T) {
	t.Parallel()
	mem := testutil.NewTestRemote()
	p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{})

	_, err := p.Publish(context.Background(), newRequest(t, "keep", []testutil.ZipFile{
		{Name: "main.go", Body: "package main"},
	}, nil))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	files, err := mem.Files(testutil.TestOwner, "keep", "main")
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	if string(files["README.md"]) != "# keep\n" {
		t.Errorf("seed README = %q, want it kept", files["README.md"])
	}
	if string(files["main.go"]) != "package main" {
		t.Errorf("main.go = %q", files["main.go"])
	}
}

func TestPublish_Events(t *testing.T) {
	t.Parallel()
	mem := testutil.NewTestRemote()
	sink := testutil.NewRecordingSink()
	p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{})

	_, err := p.Publish(context.Background(), newRequest(t, "MyProj", []testutil.ZipFile{
		{Name: "a.txt", Body: "a"},
		{Name: "b/c.txt", Body: "c"},
		{Name: "d.txt", Body: "d"},
	}, sink))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	want := []string{
		"Reading and unzipping file...",
		"Creating new repository: myproj...",
		"Fetching initial commit from new repository...",
		"Resolving base tree from initial commit...",
		"Uploading file 1/3: a.txt",
		"Uploading file 2/3: b/c.txt",
		"Uploading file 3/3: d.txt",
		"Building git tree from files...",
		"Creating new commit for uploaded files...",
		"Finalizing main branch...",
		zipup.SuccessMessage,
	}
	got := sink.Messages()
	if len(got) != len(want) {
		t.Fatalf("messages = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, got[i], want[i])
		}
	}

	events := sink.Events()
	upload := events[5]
	if upload.Stage != zipup.StageBlobUploading || upload.Current != 2 || upload.Total != 3 {
		t.Errorf("upload event = %+v", upload)
	}
	for _, e := range events[:len(events)-1] {
		if e.Phase != zipup.PhaseProcessing {
			t.Errorf("event %q has phase %s, want processing", e.Message, e.Phase)
		}
	}
	terminal := sink.Terminal()
	if len(terminal) != 1 || terminal[0].Phase != zipup.PhaseSuccess || terminal[0].Stage != zipup.StageSuccess {
		t.Errorf("terminal events = %+v, want one success", terminal)
	}
}

func TestPublish_EmptyArchive(t *testing.T) {
	t.Parallel()
	mem := testutil.NewTestRemote()
	sink := testutil.NewRecordingSink()
	p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{})

	_, err := p.Publish(context.Background(), newRequest(t, "demo", []testutil.ZipFile{{Name: "only-dir/"}}, sink))
	if !errors.Is(err, zipup.ErrEmptyArchive) {
		t.Fatalf("Publish() error = %v, want ErrEmptyArchive", err)
	}
	if n := len(mem.Calls()); n != 0 {
		t.Errorf("remote saw %d calls, want 0", n)
	}

	terminal := sink.Terminal()
	if len(terminal) != 1 || terminal[0].Phase != zipup.PhaseError {
		t.Fatalf("terminal events = %+v, want one error", terminal)
	}
	if terminal[0].Message != "the ZIP file is empty or contains no files" {
		t.Errorf("error message = %q", terminal[0].Message)
	}
}

func TestPublish_CorruptArchive(t *testing.T) {
	t.Parallel()
	mem := testutil.NewTestRemote()
	p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{})

	req := newRequest(t, "demo", nil, nil)
	req.Archive = []byte("PK but not really")

	_, err := p.Publish(context.Background(), req)
	var de *zipup.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Publish() error = %v, want *DecodeError", err)
	}
	if n := len(mem.Calls()); n != 0 {
		t.Errorf("remote saw %d calls, want 0", n)
	}
}

func TestPublish_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*zipup.UploadRequest)
		field  string
	}{
		{"missing archive", func(r *zipup.UploadRequest) { r.Archive = nil }, "archive"},
		{"missing name", func(r *zipup.UploadRequest) { r.RepositoryName = "  " }, "repository name"},
		{"missing owner", func(r *zipup.UploadRequest) { r.Credentials.Owner = "" }, "account"},
		{"missing token", func(r *zipup.UploadRequest) { r.Credentials.Token = "" }, "credential"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mem := testutil.NewTestRemote()
			sink := testutil.NewRecordingSink()
			p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{})

			req := newRequest(t, "demo", []testutil.ZipFile{{Name: "a.txt", Body: "a"}}, sink)
			tt.modify(&req)

			_, err := p.Publish(context.Background(), req)
			var ve *zipup.InputValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Publish() error = %v, want *InputValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
			if n := len(mem.Calls()); n != 0 {
				t.Errorf("remote saw %d calls, want 0", n)
			}
			if msgs := sink.Messages(); len(msgs) != 1 || msgs[0] != err.Error() {
				t.Errorf("messages = %q, want only the error", msgs)
			}
		})
	}
}

func TestPublish_RepositoryConflict(t *testing.T) {
	t.Parallel()
	mem := testutil.NewTestRemote()
	p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{})
	files := []testutil.ZipFile{{Name: "a.txt", Body: "a"}}

	if _, err := p.Publish(context.Background(), newRequest(t, "demo", files, nil)); err != nil {
		t.Fatalf("first Publish() error = %v", err)
	}
	before := len(mem.Calls())

	sink := testutil.NewRecordingSink()
	_, err := p.Publish(context.Background(), newRequest(t, "DEMO", files, sink))

	var ce *zipup.RepositoryConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("Publish() error = %v, want *RepositoryConflictError", err)
	}
	if err.Error() != "repository 'demo' already exists or name is invalid" {
		t.Errorf("message = %q", err.Error())
	}
	if !errors.Is(err, zipup.ErrUnprocessable) {
		t.Error("conflict should wrap ErrUnprocessable")
	}

	after := mem.Calls()[before:]
	if got := methods(after); len(got) != 1 || got[0] != "CreateRepository" {
		t.Errorf("calls after conflict = %v, want only CreateRepository", got)
	}
	terminal := sink.Terminal()
	if len(terminal) != 1 || terminal[0].Message != err.Error() {
		t.Errorf("terminal events = %+v", terminal)
	}
}

func TestPublish_RemoteFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		method string
		stage  zipup.Stage
		prefix string
	}{
		{"GetBranchRef", zipup.StageRefFetching, "fetching branch reference failed: "},
		{"GetCommit", zipup.StageCommitFetching, "fetching initial commit failed: "},
		{"CreateBlob", zipup.StageBlobUploading, "creating blob failed: "},
		{"CreateTree", zipup.StageTreeBuilding, "creating tree failed: "},
		{"CreateCommit", zipup.StageCommitCreating, "creating commit failed: "},
		{"UpdateBranchRef", zipup.StageRefUpdating, "updating branch reference failed: "},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			t.Parallel()
			mem := testutil.NewTestRemote()
			mem.FailOn(tt.method, boom)
			sink := testutil.NewRecordingSink()
			p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{})

			_, err := p.Publish(context.Background(), newRequest(t, "demo", []testutil.ZipFile{
				{Name: "a.txt", Body: "a"},
				{Name: "b.txt", Body: "b"},
			}, sink))

			var rce *zipup.RemoteCallError
			if !errors.As(err, &rce) {
				t.Fatalf("Publish() error = %v, want *RemoteCallError", err)
			}
			if rce.Stage != tt.stage {
				t.Errorf("Stage = %s, want %s", rce.Stage, tt.stage)
			}
			if !errors.Is(err, boom) {
				t.Error("RemoteCallError should wrap the remote error")
			}
			if msg := err.Error(); len(msg) < len(tt.prefix) || msg[:len(tt.prefix)] != tt.prefix {
				t.Errorf("message = %q, want prefix %q", msg, tt.prefix)
			}

			calls := methods(mem.Calls())
			if last := calls[len(calls)-1]; last != tt.method {
				t.Errorf("last call = %s, want pipeline to stop at %s", last, tt.method)
			}
			if n := mem.CallCount(tt.method); n != 1 {
				t.Errorf("%s called %d times, want 1 (no retries)", tt.method, n)
			}

			terminal := sink.Terminal()
			if len(terminal) != 1 || terminal[0].Phase != zipup.PhaseError {
				t.Errorf("terminal events = %+v, want one error", terminal)
			}
		})
	}

	t.Run("CreateRepository", func(t *testing.T) {
		t.Parallel()
		mem := testutil.NewTestRemote()
		mem.FailOn("CreateRepository", boom)
		p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{})

		_, err := p.Publish(context.Background(), newRequest(t, "demo", []testutil.ZipFile{{Name: "a.txt", Body: "a"}}, nil))
		var rce *zipup.RepositoryCreateError
		if !errors.As(err, &rce) {
			t.Fatalf("Publish() error = %v, want *RepositoryCreateError", err)
		}
		if err.Error() != "failed to create repository: boom" {
			t.Errorf("message = %q", err.Error())
		}
	})
}

func TestPublish_ConnectFailure(t *testing.T) {
	t.Parallel()
	sink := testutil.NewRecordingSink()
	p := zipup.NewPublisher(failingConnector{}, nil, zipup.PublisherOptions{})

	_, err := p.Publish(context.Background(), newRequest(t, "demo", []testutil.ZipFile{{Name: "a.txt", Body: "a"}}, sink))
	var rce *zipup.RepositoryCreateError
	if !errors.As(err, &rce) {
		t.Fatalf("Publish() error = %v, want *RepositoryCreateError", err)
	}
}

type failingConnector struct{}

func (failingConnector) Connect(zipup.Credentials) (zipup.ObjectAPI, error) {
	return nil, errors.New("no route to remote")
}

func TestPublish_ConcurrentBlobs(t *testing.T) {
	t.Parallel()
	mem := testutil.NewTestRemote()
	sink := testutil.NewRecordingSink()
	p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{BlobConcurrency: 4})

	var files []testutil.ZipFile
	for i := 1; i <= 20; i++ {
		files = append(files, testutil.ZipFile{Name: fmt.Sprintf("f%02d.txt", i), Body: fmt.Sprintf("body %d", i)})
	}

	res, err := p.Publish(context.Background(), newRequest(t, "many", files, sink))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if res.Files != 20 {
		t.Errorf("Files = %d, want 20", res.Files)
	}

	got, err := mem.Files(testutil.TestOwner, "many", "main")
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	for _, f := range files {
		if string(got[f.Name]) != f.Body {
			t.Errorf("file %s = %q, want %q", f.Name, got[f.Name], f.Body)
		}
	}

	for _, c := range mem.Calls() {
		if c.Method != "CreateTree" {
			continue
		}
		for i, item := range c.Items {
			if item.Path != files[i].Name {
				t.Errorf("tree item %d = %s, want %s", i, item.Path, files[i].Name)
			}
		}
	}

	n := 0
	for _, e := range sink.Events() {
		if e.Stage != zipup.StageBlobUploading {
			continue
		}
		n++
		if e.Current != n || e.Total != 20 {
			t.Errorf("upload event %d = %+v", n, e)
		}
	}
	if n != 20 {
		t.Errorf("saw %d upload events, want 20", n)
	}
}

func TestPublish_ConcurrentBlobFailure(t *testing.T) {
	t.Parallel()
	mem := testutil.NewTestRemote()
	mem.FailOn("CreateBlob", zipup.ErrUnprocessable)
	p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{BlobConcurrency: 3})

	var files []testutil.ZipFile
	for i := 0; i < 10; i++ {
		files = append(files, testutil.ZipFile{Name: fmt.Sprintf("f%d", i), Body: "x"})
	}

	_, err := p.Publish(context.Background(), newRequest(t, "demo", files, nil))
	var rce *zipup.RemoteCallError
	if !errors.As(err, &rce) || rce.Stage != zipup.StageBlobUploading {
		t.Fatalf("Publish() error = %v, want blob RemoteCallError", err)
	}
	if mem.CallCount("CreateTree") != 0 {
		t.Error("tree created after blob failure")
	}
}

func TestPublish_CancelledContext(t *testing.T) {
	t.Parallel()
	mem := testutil.NewTestRemote()
	p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{BlobConcurrency: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Publish(ctx, newRequest(t, "demo", []testutil.ZipFile{{Name: "a", Body: "a"}}, nil))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Publish() error = %v, want context.Canceled", err)
	}
	if mem.CallCount("CreateTree") != 0 {
		t.Error("tree created after cancellation")
	}
}

func TestPublish_DefaultBranchFromRemote(t *testing.T) {
	t.Parallel()
	mem := remote.NewMemoryRemote("https://git.example", "trunk")
	sink := testutil.NewRecordingSink()
	p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{})

	res, err := p.Publish(context.Background(), newRequest(t, "demo", []testutil.ZipFile{{Name: "a", Body: "a"}}, sink))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if res.Branch != "trunk" || res.URL != "https://git.example/alice/demo" {
		t.Errorf("result = %+v", res)
	}
	msgs := sink.Messages()
	if msgs[len(msgs)-2] != "Finalizing trunk branch..." {
		t.Errorf("finalize message = %q", msgs[len(msgs)-2])
	}
	if _, err := mem.Files(testutil.TestOwner, "demo", "trunk"); err != nil {
		t.Errorf("Files(trunk) error = %v", err)
	}
}

func TestPublish_CommitMessage(t *testing.T) {
	t.Parallel()
	mem := testutil.NewTestRemote()
	p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{CommitMessage: "custom"})

	if _, err := p.Publish(context.Background(), newRequest(t, "demo", []testutil.ZipFile{{Name: "a", Body: "a"}}, nil)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	for _, c := range mem.Calls() {
		if c.Method == "CreateCommit" && c.Message != "custom" {
			t.Errorf("commit message = %q, want custom", c.Message)
		}
	}
}

func TestPublish_SlowSinkDoesNotStallPipeline(t *testing.T) {
	t.Parallel()
	mem := testutil.NewTestRemote()
	sink := testutil.NewSlowSink(100 * time.Millisecond)
	p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{SinkTimeout: 50 * time.Millisecond})

	start := time.Now()
	res, err := p.Publish(context.Background(), newRequest(t, "demo", []testutil.ZipFile{
		{Name: "a", Body: "a"},
		{Name: "b", Body: "b"},
	}, sink))
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if res.URL == "" {
		t.Error("empty URL")
	}
	// Eleven events at 100ms each would take over a second if delivery blocked.
	if elapsed > 800*time.Millisecond {
		t.Errorf("Publish() took %v with a slow sink", elapsed)
	}
}

func TestPublish_SinkNotCalledAfterReturn(t *testing.T) {
	t.Parallel()
	mem := testutil.NewTestRemote()
	sink := testutil.NewSlowSink(30 * time.Millisecond)
	p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{SinkTimeout: 10 * time.Millisecond})

	if _, err := p.Publish(context.Background(), newRequest(t, "demo", []testutil.ZipFile{
		{Name: "a.txt", Body: "a"},
	}, sink)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	returned := sink.Calls()

	time.Sleep(300 * time.Millisecond)
	// A report that was already being delivered may still finish; nothing new starts.
	if late := sink.Calls() - returned; late > 1 {
		t.Errorf("sink received %d reports after Publish returned", late)
	}
}

func TestPublish_EmptyMemberName(t *testing.T) {
	t.Parallel()
	mem := testutil.NewTestRemote()
	p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{})

	_, err := p.Publish(context.Background(), newRequest(t, "demo", []testutil.ZipFile{
		{Name: "", Body: "orphan"},
		{Name: "ok.txt", Body: "ok"},
	}, nil))

	if !errors.Is(err, zipup.ErrEmptyMemberName) {
		t.Fatalf("Publish() error = %v, want ErrEmptyMemberName", err)
	}
	if calls := mem.Calls(); len(calls) != 0 {
		t.Errorf("remote calls = %v, want none", methods(calls))
	}
}

func TestPublish_DuplicatePaths(t *testing.T) {
	t.Parallel()
	mem := testutil.NewTestRemote()
	p := zipup.NewPublisher(mem, nil, zipup.PublisherOptions{})

	if _, err := p.Publish(context.Background(), newRequest(t, "demo", []testutil.ZipFile{
		{Name: "a.txt", Body: "first"},
		{Name: "a.txt", Body: "second"},
	}, nil)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	var tree *remote.Call
	for _, c := range mem.Calls() {
		if c.Method == "CreateTree" {
			tree = &c
		}
	}
	if tree == nil {
		t.Fatal("CreateTree was not called")
	}
	if len(tree.Items) != 2 {
		t.Fatalf("CreateTree items = %d, want 2", len(tree.Items))
	}
	for i, item := range tree.Items {
		if item.Path != "a.txt" {
			t.Errorf("item %d path = %q, want a.txt", i, item.Path)
		}
	}

	files, err := mem.Files(testutil.TestOwner, "demo", "main")
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	if got := string(files["a.txt"]); got != "second" {
		t.Errorf("a.txt = %q, want %q", got, "second")
	}
}
