// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/clubcms/internal/model"
	"github.com/olegiv/clubcms/internal/objstore"
	"github.com/olegiv/clubcms/internal/store"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// syncBuffer collects log output from concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	svc   *Service
	store *store.Store
	media *objstore.Memory
	logs  *syncBuffer
}

func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := store.NewDB(filepath.Join(t.TempDir(), "club-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db))

	st := store.New(db, store.WithClock(stepClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))))
	media := objstore.NewMemory("https://media.club.test")
	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	svc := New(st, media, Config{
		Buckets:        map[model.ContentType]string{model.TypeLeadership: "club-leaders"},
		StorageTimeout: time.Second,
	}, logger)
	return &fixture{svc: svc, store: st, media: media, logs: logs}
}

func pngUpload() *Upload {
	return &Upload{Filename: "photo.png", Body: bytes.NewReader(pngBytes)}
}

func ptr[T any](v T) *T { return &v }

// assertNoDanglingMedia checks that every stored media reference resolves
// to an existing blob.
func assertNoDanglingMedia(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	for _, typ := range model.ContentTypes {
		paths, err := f.store.MediaPaths(ctx, typ)
		require.NoError(t, err)
		for _, p := range paths {
			ok, err := f.media.Exists(ctx, f.svc.Bucket(typ), p)
			require.NoError(t, err)
			assert.True(t, ok, "%s record points at missing blob %s", typ, p)
		}
	}
}

func TestCreate_WithImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.News.Create(ctx, model.NewsDraft{Title: "Course update", Body: "Greens are open."}, pngUpload())
	require.NoError(t, err)

	item, err := f.svc.News.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(item.Image, "news/"))
	assert.True(t, strings.HasSuffix(item.Image, ".png"))
	assert.Equal(t, "https://media.club.test/news/"+item.Image, f.svc.News.PublicURL(item.Image))

	data, ok := f.media.Read("news", item.Image)
	require.True(t, ok)
	assert.Equal(t, pngBytes, data, "blob bytes must be stored unchanged")
	assertNoDanglingMedia(t, f)
}

func TestCreate_UploadFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.media.FailPuts(errors.New("connection reset"))

	_, err := f.svc.Events.Create(ctx, model.EventDraft{
		Title:     "Club Championship",
		EventType: "Tournament",
		StartsAt:  time.Date(2024, 7, 6, 8, 0, 0, 0, time.UTC),
	}, pngUpload())
	require.ErrorIs(t, err, ErrStorageUnavailable)

	n, err := f.store.Count(ctx, model.TypeEvents)
	require.NoError(t, err)
	assert.Zero(t, n, "no record may be created when the upload fails")
}

func TestCreate_ValidationBeforeSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.News.Create(ctx, model.NewsDraft{Title: "  <b></b> ", Body: ""}, pngUpload())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")
	assert.Contains(t, verr.Fields, "body")
	assert.Empty(t, f.media.Keys("news"), "nothing uploaded for an invalid draft")

	_, err = f.svc.News.Create(ctx, model.NewsDraft{Title: "Notice", Body: "Text"},
		&Upload{Filename: "notes.txt", Body: strings.NewReader("plain text, not an image")})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "image")

	_, err = f.svc.Gallery.Create(ctx, model.GalleryDraft{Category: "Course"}, nil)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["image"])
}

func TestCreate_InsertFailureDiscardsUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := model.LeadershipDraft{Committee: model.CommitteeSports, Role: "Captain", FullName: "A. Golfer"}

	_, err := f.svc.Leadership.Create(ctx, draft, pngUpload())
	require.NoError(t, err)
	require.Len(t, f.media.Keys("club-leaders"), 1)

	_, err = f.svc.Leadership.Create(ctx, draft, pngUpload())
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Len(t, f.media.Keys("club-leaders"), 1, "blob of the rejected insert must be deleted")
	assertNoDanglingMedia(t, f)
}

func TestUpdate_NewMediaNeverOverwrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.News.Create(ctx, model.NewsDraft{Title: "Fixtures", Body: "List"}, nil)
	require.NoError(t, err)

	first, err := f.svc.News.Update(ctx, id, model.NewsPatch{}, pngUpload())
	require.NoError(t, err)
	second, err := f.svc.News.Update(ctx, id, model.NewsPatch{}, pngUpload())
	require.NoError(t, err)

	assert.Equal(t, OutcomeSaved, second.Outcome)
	assert.NotEqual(t, first.Image, second.Image)

	item, err := f.svc.News.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, second.Image, item.Image, "record holds exactly the latest reference")

	_, ok := f.media.Read("news", first.Image)
	assert.True(t, ok, "the superseded blob stays retrievable")
	assertNoDanglingMedia(t, f)
}

func TestUpdate_UploadFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.News.Create(ctx, model.NewsDraft{Title: "Draw", Body: "Pairings"}, pngUpload())
	require.NoError(t, err)
	before, err := f.svc.News.Get(ctx, id)
	require.NoError(t, err)

	f.media.FailPuts(context.DeadlineExceeded)

	res, err := f.svc.News.Update(ctx, id, model.NewsPatch{Title: ptr("Draw (updated)")}, pngUpload())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSavedWithoutMedia, res.Outcome)
	assert.ErrorIs(t, res.MediaErr, ErrStorageUnavailable)
	assert.Equal(t, before.Image, res.Image)

	after, err := f.svc.News.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Draw (updated)", after.Title)
	assert.Equal(t, before.Image, after.Image)

	// Nothing but media was requested, so nothing could be saved.
	_, err = f.svc.News.Update(ctx, id, model.NewsPatch{}, pngUpload())
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assertNoDanglingMedia(t, f)
}

func TestUpdate_NotFoundAndEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Events.Update(ctx, 999, model.EventPatch{Title: ptr("Ghost")}, pngUpload())
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.media.Keys("events"), "no upload for a missing record")

	var verr *ValidationError
	_, err = f.svc.Events.Update(ctx, 1, model.EventPatch{}, nil)
	require.ErrorAs(t, err, &verr)
}

func TestUpdate_ConflictIsLoggedNotReturned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.Gallery.Create(ctx, model.GalleryDraft{Category: "Course"}, pngUpload())
	require.NoError(t, err)
	item, err := f.svc.Gallery.Get(ctx, id)
	require.NoError(t, err)

	stale := item.UpdatedAt.Add(-time.Minute)
	res, err := f.svc.Gallery.Update(ctx, id, model.GalleryPatch{Category: ptr("Clubhouse"), IfUnmodifiedSince: &stale}, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSaved, res.Outcome)
	assert.Contains(t, f.logs.String(), "conflict ignored")
	assert.Contains(t, f.logs.String(), "category=conflict")

	item, err = f.svc.Gallery.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Clubhouse", item.Category, "last write wins")
}

func TestDelete_ReclaimMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	keep, err := f.svc.News.Create(ctx, model.NewsDraft{Title: "Keep blob", Body: "x"}, pngUpload())
	require.NoError(t, err)
	drop, err := f.svc.News.Create(ctx, model.NewsDraft{Title: "Drop blob", Body: "x"}, pngUpload())
	require.NoError(t, err)

	kept, err := f.svc.News.Delete(ctx, keep, false)
	require.NoError(t, err)
	assert.False(t, kept.Reclaimed)
	_, ok := f.media.Read("news", kept.Image)
	assert.True(t, ok, "blob remains retrievable by direct path")

	dropped, err := f.svc.News.Delete(ctx, drop, true)
	require.NoError(t, err)
	assert.True(t, dropped.Reclaimed)
	_, ok = f.media.Read("news", dropped.Image)
	assert.False(t, ok, "no blob remains at the old path")

	_, err = f.svc.News.Delete(ctx, drop, true)
	assert.ErrorIs(t, err, ErrNotFound)
	assertNoDanglingMedia(t, f)
}

func TestDelete_MediaFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.Events.Create(ctx, model.EventDraft{
		Title: "Mixed Foursomes", EventType: "Social", StartsAt: time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC),
	}, pngUpload())
	require.NoError(t, err)

	f.media.FailDeletes(errors.New("permission denied"))
	res, err := f.svc.Events.Delete(ctx, id, true)
	require.NoError(t, err)
	assert.False(t, res.Reclaimed)
	assert.ErrorIs(t, res.MediaErr, objstore.ErrUnavailable)

	_, err = f.svc.Events.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTogglePublish_TwiceRestoresState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.News.Create(ctx, model.NewsDraft{Title: "Visible", Body: "x"}, nil)
	require.NoError(t, err)

	state, err := f.svc.News.TogglePublish(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StateUnpublished, state)

	items, _, err := f.svc.News.List(ctx, store.ListFilter{PublishedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, items)

	state, err = f.svc.News.TogglePublish(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatePublished, state)

	items, total, err := f.svc.News.List(ctx, store.ListFilter{PublishedOnly: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, id, items[0].ID)

	_, err = f.svc.News.TogglePublish(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetPublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.Gallery.Create(ctx, model.GalleryDraft{Category: "Events", Published: ptr(false)}, pngUpload())
	require.NoError(t, err)

	state, changed, err := f.svc.Gallery.SetPublished(ctx, id, false)
	require.NoError(t, err)
	assert.False(t, changed, "a draft is already hidden")
	assert.Equal(t, model.StateDraft, state)
	assert.Contains(t, f.logs.String(), "publish state already set")

	state, changed, err = f.svc.Gallery.SetPublished(ctx, id, true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.StatePublished, state)

	_, _, err = f.svc.Leadership.SetPublished(ctx, 1, true)
	assert.ErrorIs(t, err, ErrNotPublishable)
	_, err = f.svc.Publisher(model.TypeLeadership)
	assert.ErrorIs(t, err, ErrNotPublishable)
}

func TestAGM2024Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older, err := f.svc.News.Create(ctx, model.NewsDraft{Title: "Winter League", Body: "Results"}, nil)
	require.NoError(t, err)

	id, err := f.svc.News.Create(ctx, model.NewsDraft{Title: "AGM 2024", Body: "Annual general meeting.", Category: "Meetings"}, nil)
	require.NoError(t, err)

	items, _, err := f.svc.News.List(ctx, store.ListFilter{PublishedOnly: true})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, id, items[0].ID, "newest first")
	assert.Equal(t, older, items[1].ID)

	res, err := f.svc.News.Update(ctx, id, model.NewsPatch{Title: ptr("AGM 2024 (Rescheduled)")}, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSaved, res.Outcome)
	assert.Empty(t, res.Image)

	item, err := f.svc.News.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "AGM 2024 (Rescheduled)", item.Title)
	assert.Empty(t, item.Image, "media reference unchanged")

	del, err := f.svc.News.Delete(ctx, id, true)
	require.NoError(t, err)
	assert.False(t, del.Reclaimed, "nothing to reclaim")

	items, _, err = f.svc.News.List(ctx, store.ListFilter{PublishedOnly: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, older, items[0].ID)
	assert.Empty(t, f.media.Keys("news"))
}

func TestLeadership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var verr *ValidationError
	_, err := f.svc.Leadership.Create(ctx, model.LeadershipDraft{Committee: "board", Role: "Captain", FullName: "X"}, nil)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "committee")

	_, err = f.svc.Leadership.Create(ctx, model.LeadershipDraft{Committee: model.CommitteeManagement, Role: "Captain", FullName: "X"}, nil)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "role")

	_, err = f.svc.Leadership.Create(ctx, model.LeadershipDraft{
		Committee: model.CommitteeManagement, Role: "Chairperson", FullName: "J. Smith", Email: "not-an-email",
	}, nil)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")

	chair, err := f.svc.Leadership.Create(ctx, model.LeadershipDraft{
		Committee: model.CommitteeManagement, Role: "Chairperson", FullName: "J. Smith", Email: "chair@club.test",
	}, nil)
	require.NoError(t, err)
	_, err = f.svc.Leadership.Create(ctx, model.LeadershipDraft{
		Committee: model.CommitteeSports, Role: "Captain", FullName: "A. Golfer",
	}, nil)
	require.NoError(t, err)

	_, err = f.svc.Leadership.Update(ctx, chair, model.LeadershipPatch{Role: ptr("Green Keeper")}, nil)
	require.ErrorAs(t, err, &verr, "Green Keeper is a sports position")

	roster, err := f.svc.Roster(ctx, "")
	require.NoError(t, err)
	require.Len(t, roster, len(model.RoleCatalog[model.CommitteeManagement])+len(model.RoleCatalog[model.CommitteeSports]))
	assert.Equal(t, "Chairperson", roster[0].Role)
	require.NotNil(t, roster[0].Holder)
	assert.Equal(t, "J. Smith", roster[0].Holder.FullName)
	assert.True(t, roster[1].Vacant())

	sports, err := f.svc.Roster(ctx, model.CommitteeSports)
	require.NoError(t, err)
	require.Len(t, sports, len(model.RoleCatalog[model.CommitteeSports]))
	assert.Equal(t, "A. Golfer", sports[0].Holder.FullName)
}

func TestCreateGalleryBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	results, err := f.svc.CreateGalleryBatch(ctx, model.GalleryDraft{Category: "Prize Giving"}, []Upload{
		{Filename: "one.png", Body: bytes.NewReader(pngBytes)},
		{Filename: "notes.txt", Body: strings.NewReader("not an image")},
		{Filename: "two.png", Body: bytes.NewReader(pngBytes)},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.NotZero(t, results[2].ID)

	n, err := f.store.Count(ctx, model.TypeGallery)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = f.svc.CreateGalleryBatch(ctx, model.GalleryDraft{Category: "x"}, nil)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestReclaimerSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	f.media.SetClock(func() time.Time { return old })
	id, err := f.svc.News.Create(ctx, model.NewsDraft{Title: "Old", Body: "x"}, pngUpload())
	require.NoError(t, err)
	res, err := f.svc.News.Update(ctx, id, model.NewsPatch{}, pngUpload())
	require.NoError(t, err)
	orphan, err := f.media.Put(ctx, "news", "news", bytes.NewReader(pngBytes), objstore.MimeTypePNG)
	require.NoError(t, err)

	f.media.SetClock(func() time.Time { return old.Add(47 * time.Hour) })
	fresh, err := f.media.Put(ctx, "news", "news", bytes.NewReader(pngBytes), objstore.MimeTypePNG)
	require.NoError(t, err)

	r := f.svc.NewReclaimer(24 * time.Hour)
	r.now = func() time.Time { return old.Add(48 * time.Hour) }

	report, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 2, report.Deleted, "superseded and orphaned blobs")
	assert.Equal(t, 2, report.Retained, "referenced and recent blobs")

	keys := f.media.Keys("news")
	assert.ElementsMatch(t, []string{res.Image, fresh}, keys)
	assert.NotContains(t, keys, orphan)
	assertNoDanglingMedia(t, f)

	f.media.FailLists(errors.New("bucket offline"))
	report, err = r.Sweep(ctx)
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Len(t, report.Errors, len(model.ContentTypes))
}

func TestReclaimerSweep_KeepsMediaOfDeleteWithoutReclaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	f.media.SetClock(func() time.Time { return old })
	id, err := f.svc.Gallery.Create(ctx, model.GalleryDraft{Category: "Presentation Night"}, pngUpload())
	require.NoError(t, err)
	kept, err := f.svc.Gallery.Delete(ctx, id, false)
	require.NoError(t, err)
	require.NotEmpty(t, kept.Image)

	r := f.svc.NewReclaimer(time.Hour)
	r.now = func() time.Time { return old.Add(72 * time.Hour) }

	report, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Deleted)
	assert.Equal(t, 1, report.Retained)
	_, ok := f.media.Read(f.svc.Bucket(model.TypeGallery), kept.Image)
	assert.True(t, ok, "blob kept on delete survives the sweep")
}

func TestSanitizer(t *testing.T) {
	s := NewSanitizer()

	assert.Equal(t, "Tom & Jerry Cup", s.Line("  <b>Tom</b> &amp;  Jerry <script>x</script>Cup "))

	out, err := s.RenderHTML("**Bold** <script>alert(1)</script>\n\n[link](javascript:alert(1))")
	require.NoError(t, err)
	assert.Contains(t, out, "<strong>Bold</strong>")
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "javascript:")
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(store.ErrNotFound), ErrNotFound)
	assert.ErrorIs(t, classify(store.ErrDuplicate), ErrDuplicate)
	assert.ErrorIs(t, classify(io.ErrUnexpectedEOF), ErrStorageUnavailable)
	assert.NoError(t, classify(nil))
}
