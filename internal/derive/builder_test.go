package derive

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"derivate/internal/catalog"
	"derivate/internal/config"
	"derivate/internal/logging"
)

func newBuilder(t *testing.T, opts ...BuilderOption) (*Builder, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.BasePath = t.TempDir()
	cfg.Paths.TempDir = t.TempDir()
	cfg.Derivatives.InstallationTitle = "Test Library"
	cfg.Derivatives.SiteURL = "https://library.example.org"
	return NewBuilder(&cfg, logging.NewNop(), opts...), &cfg
}

func mustSpec(t *testing.T, key string) catalog.TypeSpec {
	t.Helper()
	spec, ok := catalog.Lookup(key)
	if !ok {
		t.Fatalf("unknown type %q", key)
	}
	return spec
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTempPath(t *testing.T) {
	cases := map[string]string{
		"/files/zip/42.zip":      "/files/zip/42.tmp.zip",
		"/files/alto/7.alto.xml": "/files/alto/7.alto.tmp.xml",
		"/files/x/noextension":   "/files/x/noextension.tmp",
	}
	for in, want := range cases {
		if got := TempPath(in); got != want {
			t.Errorf("TempPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestItemStorageName(t *testing.T) {
	spec := mustSpec(t, "zipm")
	if got := ItemStorageName(spec, 42); got != "zipm/42.zip" {
		t.Fatalf("storage name = %q", got)
	}
}

func TestBuildZipRoundTrip(t *testing.T) {
	builder, cfg := newBuilder(t)
	src := t.TempDir()

	entries := []Entry{
		{ID: 1, Source: "scan.jpg", Filepath: writeSource(t, src, "a.jpg", "jpeg one"),
			MediaType: "image/jpeg", MainType: "image"},
		{ID: 2, Source: "scan.jpg", Filepath: writeSource(t, src, "b.jpg", "jpeg two"),
			MediaType: "image/jpeg", MainType: "image"},
		{ID: 3, Source: "scan.jpg", Filepath: writeSource(t, src, "c.jpg", "jpeg three"),
			MediaType: "image/jpeg", MainType: "image"},
		{ID: 4, Source: "ocr.xml", Filepath: writeSource(t, src, "d.xml", strings.Repeat("<alto/>", 50)),
			MediaType: "application/alto+xml", MainType: "application"},
	}

	path, err := builder.Build(context.Background(), mustSpec(t, "zip"), 42, entries)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(cfg.Paths.BasePath, "zip", "42.zip"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	if _, err := os.Stat(TempPath(path)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("provisional file must be gone: %v", err)
	}

	reader, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	if want := "Test Library [https://library.example.org]"; reader.Comment != want {
		t.Errorf("comment = %q", reader.Comment)
	}
	if len(reader.File) != 4 {
		t.Fatalf("entry count = %d", len(reader.File))
	}

	names := make([]string, len(reader.File))
	for i, file := range reader.File {
		names[i] = file.Name
	}
	for i, want := range []string{"scan.jpg", "scan.1.jpg", "scan.2.jpg", "ocr.xml"} {
		if names[i] != want {
			t.Fatalf("names = %v", names)
		}
	}

	if reader.File[0].Method != zip.Store {
		t.Error("already-compressed sources must be stored")
	}
	if reader.File[3].Method != zip.Deflate {
		t.Error("xml sources must be deflated")
	}
}

func TestBuildZipRequiresEntries(t *testing.T) {
	builder, _ := newBuilder(t)
	if _, err := builder.Build(context.Background(), mustSpec(t, "zip"), 1, nil); !errors.Is(err, ErrNoEntries) {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildDetectsConcurrentBuild(t *testing.T) {
	builder, cfg := newBuilder(t)
	src := t.TempDir()
	entries := []Entry{{ID: 1, Source: "a.jpg",
		Filepath: writeSource(t, src, "a.jpg", "x"), MediaType: "image/jpeg", MainType: "image"}}

	spec := mustSpec(t, "zip")
	provisional := TempPath(ItemPath(cfg.Paths.BasePath, spec, 7))
	if err := os.MkdirAll(filepath.Dir(provisional), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(provisional, []byte("half an archive"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := builder.Build(context.Background(), spec, 7, entries); !errors.Is(err, ErrInProgress) {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildTextExtracted(t *testing.T) {
	builder, _ := newBuilder(t)
	entries := []Entry{
		{ID: 1, Content: "first page\nwith two lines"},
		{ID: 2, Content: "second page"},
	}

	path, err := builder.Build(context.Background(), mustSpec(t, "text"), 5, entries)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)

	if strings.Count(got, "==============\r\nPage ") != 2 {
		t.Fatalf("separator count wrong in %q", got)
	}
	if !strings.Contains(got, "Page 1/2") || !strings.Contains(got, "Page 2/2") {
		t.Fatalf("page numbering wrong in %q", got)
	}
	if strings.Contains(strings.ReplaceAll(got, "\r\n", ""), "\n") {
		t.Fatal("all line endings must be CRLF")
	}
	if strings.HasSuffix(got, "\r\n") {
		t.Fatal("output must be trimmed")
	}
}

func TestBuildTextFromFiles(t *testing.T) {
	builder, _ := newBuilder(t)
	src := t.TempDir()
	entries := []Entry{
		{ID: 1, Source: "p1.txt", Filepath: writeSource(t, src, "p1.txt", "windows line\r\nendings\r\n"),
			MediaType: "text/plain", MainType: "text"},
		{ID: 2, Source: "p2.txt", Filepath: writeSource(t, src, "p2.txt", "unix line\nendings\n"),
			MediaType: "text/plain", MainType: "text"},
	}

	path, err := builder.Build(context.Background(), mustSpec(t, "txt"), 6, entries)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if !strings.Contains(got, "windows line\r\nendings") || !strings.Contains(got, "unix line\r\nendings") {
		t.Fatalf("content not normalized: %q", got)
	}
}

type recordingExecutor struct {
	calls  [][]string
	output []byte
	err    error
}

func (r *recordingExecutor) Run(_ context.Context, binary string, args []string) (string, error) {
	r.calls = append(r.calls, append([]string{binary}, args...))
	if r.err != nil {
		return "convert: no decode delegate", r.err
	}
	return "", os.WriteFile(args[len(args)-1], r.output, 0o644)
}

func TestBuildPDFInvokesConverter(t *testing.T) {
	exec := &recordingExecutor{output: []byte("%PDF-1.7")}
	builder, cfg := newBuilder(t, WithExecutor(exec))
	src := t.TempDir()
	entries := []Entry{
		{ID: 1, Source: "p1.jpg", Filepath: writeSource(t, src, "p1.jpg", "x"), MainType: "image", MediaType: "image/jpeg"},
		{ID: 2, Source: "p2.jpg", Filepath: writeSource(t, src, "p2.jpg", "y"), MainType: "image", MediaType: "image/jpeg"},
	}

	path, err := builder.Build(context.Background(), mustSpec(t, "pdf"), 9, entries)
	if err != nil {
		t.Fatal(err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("calls = %v", exec.calls)
	}
	call := exec.calls[0]
	if call[0] != cfg.Tools.Convert {
		t.Errorf("binary = %q", call[0])
	}
	if call[1] != entries[0].Filepath || call[2] != entries[1].Filepath {
		t.Errorf("source order wrong: %v", call)
	}
	if call[3] != "-quality" || call[4] != "100" {
		t.Errorf("quality args wrong: %v", call)
	}
	if call[5] != TempPath(path) {
		t.Errorf("converter must write to the provisional path, got %q", call[5])
	}
}

func TestBuildPDFFailureLeavesNoFile(t *testing.T) {
	exec := &recordingExecutor{err: errors.New("exit status 1")}
	builder, cfg := newBuilder(t, WithExecutor(exec))
	src := t.TempDir()
	entries := []Entry{{ID: 1, Source: "p.jpg",
		Filepath: writeSource(t, src, "p.jpg", "x"), MainType: "image", MediaType: "image/jpeg"}}

	spec := mustSpec(t, "pdf")
	if _, err := builder.Build(context.Background(), spec, 9, entries); err == nil {
		t.Fatal("expected failure")
	}
	final := ItemPath(cfg.Paths.BasePath, spec, 9)
	if _, err := os.Stat(final); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("final path must not exist: %v", err)
	}
	if _, err := os.Stat(TempPath(final)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("provisional path must be cleaned up: %v", err)
	}
}

type fakeMerger struct{ content string }

func (m fakeMerger) Merge(_ context.Context, outPath string, _ []Entry) error {
	return os.WriteFile(outPath, []byte(m.content), 0o644)
}

func TestBuildAlto(t *testing.T) {
	builder, _ := newBuilder(t, WithAltoMerger(fakeMerger{content: "<alto>merged</alto>"}))
	src := t.TempDir()
	entries := []Entry{{ID: 1, Source: "p.xml",
		Filepath: writeSource(t, src, "p.xml", "<alto/>"), MediaType: "application/alto+xml", MainType: "application"}}

	path, err := builder.Build(context.Background(), mustSpec(t, "alto"), 3, entries)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "<alto>merged</alto>" {
		t.Fatalf("content = %q", data)
	}
}

func TestBuildAltoWithoutMerger(t *testing.T) {
	builder, _ := newBuilder(t)
	entries := []Entry{{ID: 1, Source: "p.xml", MediaType: "application/alto+xml"}}
	if _, err := builder.Build(context.Background(), mustSpec(t, "alto"), 3, entries); !errors.Is(err, ErrAltoUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildForceReplacesExistingFile(t *testing.T) {
	builder, cfg := newBuilder(t)
	src := t.TempDir()
	entries := []Entry{{ID: 1, Source: "a.jpg",
		Filepath: writeSource(t, src, "a.jpg", "x"), MediaType: "image/jpeg", MainType: "image"}}

	spec := mustSpec(t, "zip")
	stale := ItemPath(cfg.Paths.BasePath, spec, 11)
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("stale archive"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, err := builder.Build(context.Background(), spec, 11, entries)
	if err != nil {
		t.Fatal(err)
	}
	reader, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("rebuilt file is not a zip: %v", err)
	}
	defer reader.Close()
	if len(reader.File) != 1 {
		t.Fatalf("entry count = %d", len(reader.File))
	}
}
