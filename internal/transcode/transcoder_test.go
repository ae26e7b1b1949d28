package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"derivate/internal/config"
	"derivate/internal/filestore"
	"derivate/internal/logging"
	"derivate/internal/store"
	"derivate/internal/testsupport"
)

// fakeExecutor writes canned bytes to the rule's output path (the last
// argument) and records each invocation.
type fakeExecutor struct {
	calls  [][]string
	output []byte
	err    error
}

func (f *fakeExecutor) Run(_ context.Context, binary string, args []string) (string, error) {
	call := append([]string{binary}, args...)
	f.calls = append(f.calls, call)
	if f.err != nil {
		return "encoder noise", f.err
	}
	out := args[len(args)-1]
	if err := os.WriteFile(out, f.output, 0o644); err != nil {
		return "", err
	}
	return "", nil
}

type fixture struct {
	cfg   *config.Config
	store *store.Store
	files *filestore.Local
	media *store.Media
}

func newFixture(t *testing.T, rules []config.ConverterRule) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Converters.Audio = rules
	cfg.Tools.FFmpeg = "ffmpeg"
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.BasePath, "original", "track1.flac"), 10)

	st := testsupport.MustOpenStore(t, cfg)

	files, err := filestore.NewLocal(cfg.Paths.BasePath)
	if err != nil {
		t.Fatal(err)
	}

	item := testsupport.NewItem(t, st, "Recording")
	media, err := st.AddMedia(context.Background(), &store.Media{
		ItemID:      item.ID,
		Source:      "track1.flac",
		StorageID:   "track1",
		Extension:   "flac",
		MediaType:   "audio/flac",
		Size:        10,
		HasOriginal: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	return &fixture{cfg: cfg, store: st, files: files, media: media}
}

func audioProber(string) (string, error) { return "audio/mpeg", nil }

func (f *fixture) reload(t *testing.T) *store.Media {
	t.Helper()
	media, err := f.store.GetMedia(context.Background(), f.media.ID)
	if err != nil {
		t.Fatal(err)
	}
	return media
}

func TestRunCreatesDerivativePerRule(t *testing.T) {
	fx := newFixture(t, []config.ConverterRule{
		{Pattern: "mp3/{filename}.mp3", Args: "-c copy"},
		{Pattern: "ogg/{filename}.ogg", Args: "-c:a libopus"},
	})
	exec := &fakeExecutor{output: []byte("encoded")}
	tr := New(fx.cfg, fx.store, fx.files, logging.NewNop(), WithExecutor(exec), WithProber(audioProber))

	if err := tr.Run(context.Background(), fx.media); err != nil {
		t.Fatal(err)
	}

	if len(exec.calls) != 2 {
		t.Fatalf("encoder calls = %d", len(exec.calls))
	}
	first := exec.calls[0]
	if first[0] != "ffmpeg" || first[1] != "-i" {
		t.Fatalf("call shape = %v", first)
	}
	if first[3] != "-c" || first[4] != "copy" {
		t.Fatalf("rule args not split into the vector: %v", first)
	}

	for _, name := range []string{"mp3/track1.mp3", "ogg/track1.ogg"} {
		path, err := fx.files.LocalPath(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing derivative %s: %v", name, err)
		}
	}

	media := fx.reload(t)
	if len(media.Derivatives) != 2 {
		t.Fatalf("derivatives = %v", media.Derivatives)
	}
	if got := media.Derivatives["mp3"]; got.Filename != "track1.mp3" || got.MediaType != "audio/mpeg" {
		t.Fatalf("mp3 entry = %+v", got)
	}
}

func TestRunSkipsFailingRuleAndContinues(t *testing.T) {
	fx := newFixture(t, []config.ConverterRule{
		{Pattern: "mp3/{filename}.mp3", Args: "-c copy"},
		{Pattern: "ogg/{filename}.ogg", Args: "-c:a libopus"},
	})
	boom := errors.New("exit status 1")
	failFirst := &fakeExecutor{output: []byte("encoded")}
	failFirst.err = boom
	tr := New(fx.cfg, fx.store, fx.files, logging.NewNop(),
		WithExecutor(failingThenOK{failFirst, &fakeExecutor{output: []byte("encoded")}}),
		WithProber(audioProber))

	if err := tr.Run(context.Background(), fx.media); err != nil {
		t.Fatalf("partial failure must not fail the run: %v", err)
	}

	media := fx.reload(t)
	if _, ok := media.Derivatives["mp3"]; ok {
		t.Fatal("failed rule must not be recorded")
	}
	if _, ok := media.Derivatives["ogg"]; !ok {
		t.Fatalf("later rule should have run, derivatives = %v", media.Derivatives)
	}
}

// failingThenOK delegates the first call to one executor and the rest to
// another.
type failingThenOK struct {
	first *fakeExecutor
	rest  *fakeExecutor
}

func (f failingThenOK) Run(ctx context.Context, binary string, args []string) (string, error) {
	if len(f.first.calls) == 0 {
		return f.first.Run(ctx, binary, args)
	}
	return f.rest.Run(ctx, binary, args)
}

func TestRunRejectsForbiddenArgsBeforeAnyWork(t *testing.T) {
	fx := newFixture(t, []config.ConverterRule{
		{Pattern: "mp3/{filename}.mp3", Args: "-c copy"},
		{Pattern: "ogg/{filename}.ogg", Args: "-c copy; rm -rf /"},
	})
	exec := &fakeExecutor{output: []byte("encoded")}
	tr := New(fx.cfg, fx.store, fx.files, logging.NewNop(), WithExecutor(exec), WithProber(audioProber))

	if err := tr.Run(context.Background(), fx.media); err == nil {
		t.Fatal("forbidden token must abort the run")
	}
	if len(exec.calls) != 0 {
		t.Fatalf("no encoder may start, calls = %v", exec.calls)
	}
}

func TestRunReplacesExistingDerivative(t *testing.T) {
	fx := newFixture(t, []config.ConverterRule{
		{Pattern: "mp3/{filename}.mp3", Args: "-c copy"},
	})
	ctx := context.Background()

	stale := filepath.Join(fx.files.Base(), "mp3", "track1.mp3")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("stale output"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := fx.store.UpdateMediaDerivatives(ctx, fx.media.ID, map[string]store.DerivativeFile{
		"mp3": {Filename: "track1.mp3", MediaType: "audio/mpeg"},
	}); err != nil {
		t.Fatal(err)
	}

	exec := &fakeExecutor{output: []byte("fresh output")}
	tr := New(fx.cfg, fx.store, fx.files, logging.NewNop(), WithExecutor(exec), WithProber(audioProber))
	if err := tr.Run(ctx, fx.reload(t)); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(stale)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "fresh output" {
		t.Fatalf("derivative content = %q", data)
	}
	if _, ok := fx.reload(t).Derivatives["mp3"]; !ok {
		t.Fatal("replacement must be recorded")
	}
}

func TestRunDiscardsNonAVOutput(t *testing.T) {
	fx := newFixture(t, []config.ConverterRule{
		{Pattern: "mp3/{filename}.mp3", Args: "-c copy"},
	})
	exec := &fakeExecutor{output: []byte("not media")}
	tr := New(fx.cfg, fx.store, fx.files, logging.NewNop(),
		WithExecutor(exec),
		WithProber(func(string) (string, error) { return "text/plain", nil }))

	if err := tr.Run(context.Background(), fx.media); err != nil {
		t.Fatal(err)
	}
	if len(fx.reload(t).Derivatives) != 0 {
		t.Fatal("non-audio/video output must not be recorded")
	}
	if _, err := fx.files.LocalPath("mp3/track1.mp3"); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(fx.files.Base(), "mp3", "track1.mp3")
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("rejected output must not be stored: %v", err)
	}
}

func TestRunIgnoresUnmanagedMedia(t *testing.T) {
	fx := newFixture(t, []config.ConverterRule{
		{Pattern: "mp3/{filename}.mp3", Args: "-c copy"},
	})
	ctx := context.Background()
	image, err := fx.store.AddMedia(ctx, &store.Media{
		ItemID:      fx.media.ItemID,
		StorageID:   "scan1",
		Extension:   "tiff",
		MediaType:   "image/tiff",
		Size:        5,
		HasOriginal: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	exec := &fakeExecutor{output: []byte("encoded")}
	tr := New(fx.cfg, fx.store, fx.files, logging.NewNop(), WithExecutor(exec), WithProber(audioProber))
	if err := tr.Run(ctx, image); err != nil {
		t.Fatal(err)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("image media must be ignored, calls = %v", exec.calls)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	fx := newFixture(t, []config.ConverterRule{
		{Pattern: "mp3/{filename}.mp3", Args: "-c copy"},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExecutor{output: []byte("encoded")}
	tr := New(fx.cfg, fx.store, fx.files, logging.NewNop(), WithExecutor(exec), WithProber(audioProber))
	if err := tr.Run(ctx, fx.media); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(exec.calls) != 0 {
		t.Fatal("no encoder may start after cancellation")
	}
}
