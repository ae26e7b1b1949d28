package store

import (
	"context"
	"testing"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestItemAndMediaRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	item, err := s.CreateItem(ctx, "Manuscript 42")
	if err != nil {
		t.Fatal(err)
	}

	first, err := s.AddMedia(ctx, &Media{
		ItemID:      item.ID,
		Source:      "page-1.tiff",
		StorageID:   "a1b2c3",
		Extension:   "tiff",
		MediaType:   "image/tiff",
		Size:        1024,
		HasOriginal: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.AddMedia(ctx, &Media{
		ItemID:      item.ID,
		Source:      "page-2.tiff",
		StorageID:   "d4e5f6",
		Extension:   "tiff",
		MediaType:   "image/tiff",
		Size:        2048,
		HasOriginal: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	medias, err := s.ListMedia(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(medias) != 2 {
		t.Fatalf("media count = %d", len(medias))
	}
	if medias[0].ID != first.ID || medias[1].ID != second.ID {
		t.Fatal("media order does not match insertion order")
	}
	if medias[0].Position >= medias[1].Position {
		t.Fatalf("positions not increasing: %d, %d", medias[0].Position, medias[1].Position)
	}
	if medias[0].Renderer != "file" {
		t.Errorf("default renderer = %q", medias[0].Renderer)
	}
	if got := medias[0].Filename(); got != "a1b2c3.tiff" {
		t.Errorf("filename = %q", got)
	}
	if got := medias[0].OriginalStorageName(); got != "original/a1b2c3.tiff" {
		t.Errorf("storage name = %q", got)
	}
}

func TestGetItemNotFound(t *testing.T) {
	s := openStore(t)
	if _, err := s.GetItem(context.Background(), 999); err == nil {
		t.Fatal("expected ErrNotFound")
	}
}

func TestUpdateMediaDerivatives(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	item, err := s.CreateItem(ctx, "AV item")
	if err != nil {
		t.Fatal(err)
	}
	media, err := s.AddMedia(ctx, &Media{
		ItemID:      item.ID,
		StorageID:   "vid01",
		Extension:   "mov",
		MediaType:   "video/quicktime",
		Size:        5000,
		HasOriginal: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(media.Derivatives) != 0 {
		t.Fatalf("new media should have no derivatives, got %v", media.Derivatives)
	}
	if !media.Managed() {
		t.Fatal("video media with original should be managed")
	}

	derivatives := map[string]DerivativeFile{
		"mp4": {Filename: "vid01.mp4", MediaType: "video/mp4"},
	}
	if err := s.UpdateMediaDerivatives(ctx, media.ID, derivatives); err != nil {
		t.Fatal(err)
	}

	reloaded, err := s.GetMedia(ctx, media.ID)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := reloaded.Derivatives["mp4"]
	if !ok || got.Filename != "vid01.mp4" || got.MediaType != "video/mp4" {
		t.Fatalf("derivatives = %v", reloaded.Derivatives)
	}
}

func TestJobLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if job, err := s.ClaimNextJob(ctx); err != nil || job != nil {
		t.Fatalf("empty queue: job = %v, err = %v", job, err)
	}

	queued, err := s.EnqueueJob(ctx, Job{Kind: JobBuildItem, ItemID: 7, TypeKey: "zip"})
	if err != nil {
		t.Fatal(err)
	}
	if queued.Status != JobPending {
		t.Fatalf("status = %q", queued.Status)
	}

	exists, err := s.PendingBuildExists(ctx, 7, "zip")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("expected pending build to be visible")
	}

	claimed, err := s.ClaimNextJob(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if claimed == nil || claimed.ID != queued.ID {
		t.Fatalf("claimed = %v", claimed)
	}
	if claimed.Status != JobRunning || claimed.StartedAt == nil {
		t.Fatalf("claimed job not running: %+v", claimed)
	}

	// Running jobs still count for the debounce.
	exists, err = s.PendingBuildExists(ctx, 7, "zip")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("running build should still be visible")
	}

	if err := s.FinishJob(ctx, claimed.ID, ""); err != nil {
		t.Fatal(err)
	}
	done, err := s.GetJob(ctx, claimed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != JobCompleted || done.FinishedAt == nil {
		t.Fatalf("finished job = %+v", done)
	}

	exists, err = s.PendingBuildExists(ctx, 7, "zip")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("completed build should not block new enqueues")
	}
}

func TestFinishJobRecordsFailure(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	queued, err := s.EnqueueJob(ctx, Job{Kind: JobTranscodeMedia, MediaID: 3})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ClaimNextJob(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.FinishJob(ctx, queued.ID, "encoder exited 1"); err != nil {
		t.Fatal(err)
	}
	job, err := s.GetJob(ctx, queued.ID)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != JobFailed || job.Error != "encoder exited 1" {
		t.Fatalf("job = %+v", job)
	}
}

func TestClaimOrderIsFIFO(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first, err := s.EnqueueJob(ctx, Job{Kind: JobBuildItem, ItemID: 1, TypeKey: "zip"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.EnqueueJob(ctx, Job{Kind: JobBuildItem, ItemID: 2, TypeKey: "pdf"}); err != nil {
		t.Fatal(err)
	}

	claimed, err := s.ClaimNextJob(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if claimed.ID != first.ID {
		t.Fatalf("claimed %s, want %s", claimed.ID, first.ID)
	}
}
