package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/equiptrack/internal/models"
)

func newAttachmentService(t *testing.T, f *fixture, maxBytes int64) (*AttachmentService, *LocalBlobStore) {
	t.Helper()
	blobs, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)
	svc := NewAttachmentService(f.db, blobs, f.locks, maxBytes)
	svc.now = f.clock.Now
	return svc, blobs
}

func blobCount(t *testing.T, blobs *LocalBlobStore) int {
	t.Helper()
	entries, err := os.ReadDir(blobs.Dir())
	require.NoError(t, err)
	return len(entries)
}

func TestAttachmentService_UploadKeepsLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc, blobs := newAttachmentService(t, f, 1<<20)

	_, err := f.locks.Acquire(ctx, actorOf(f.alice), "TRUCK-01")
	require.NoError(t, err)

	body := "dielectric test certificate"
	att, err := svc.Upload(ctx, actorOf(f.alice), UploadInput{
		Number:   "TRUCK-01",
		AreaCode: "DIELECTRIC",
		FileName: "../../cert 2024.txt",
		Body:     strings.NewReader(body),
	})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(body))
	assert.Equal(t, hex.EncodeToString(sum[:]), att.FileHash)
	assert.Equal(t, int64(len(body)), att.SizeBytes)
	assert.Equal(t, "text/plain; charset=utf-8", att.FileType)
	assert.Equal(t, "../../cert 2024.txt", att.FileName)
	assert.True(t, strings.HasSuffix(att.StorageKey, "_cert_2024.txt"), att.StorageKey)
	assert.Equal(t, FilesURLPrefix+att.StorageKey, att.FileURL)
	require.NotNil(t, att.AreaID)
	assert.NotEmpty(t, att.UUID)
	assert.Equal(t, 1, blobCount(t, blobs))

	// Uploading leaves the edit session open.
	lock := loadLockRow(t, f, "TRUCK-01")
	assert.Equal(t, models.LockActive, lock.Status)
	assert.Equal(t, f.alice.ID, lock.LockedBy)

	second, err := svc.Upload(ctx, actorOf(f.alice), UploadInput{
		Number:      "TRUCK-01",
		AreaCode:    "NO_SUCH_AREA",
		FileName:    "photo.jpg",
		ContentType: "image/jpeg",
		Body:        strings.NewReader("not really a jpeg"),
	})
	require.NoError(t, err)
	assert.Nil(t, second.AreaID)
	assert.Equal(t, "image/jpeg", second.FileType)

	var uploads int64
	f.db.Model(&models.AuditEvent{}).Where("action = ? AND entity = ?", models.AuditUpload, models.EntityAttachment).Count(&uploads)
	assert.Equal(t, int64(2), uploads)

	listed, err := svc.List(ctx, actorOf(f.bob), "TRUCK-01")
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestAttachmentService_UploadPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc, blobs := newAttachmentService(t, f, 1<<20)

	_, err := svc.Upload(ctx, actorOf(f.alice), UploadInput{Number: "MISSING", FileName: "a.txt", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.locks.Acquire(ctx, actorOf(f.alice), "TRUCK-01")
	require.NoError(t, err)

	_, err = svc.Upload(ctx, actorOf(f.bob), UploadInput{Number: "TRUCK-01", FileName: "a.txt", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrLockRequired)

	_, err = svc.Upload(ctx, actorOf(f.alice), UploadInput{Number: "TRUCK-01", FileName: "a.txt"})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, blobCount(t, blobs))
}

func TestAttachmentService_UploadTooLarge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc, blobs := newAttachmentService(t, f, 8)

	_, err := f.locks.Acquire(ctx, actorOf(f.alice), "TRUCK-01")
	require.NoError(t, err)

	_, err = svc.Upload(ctx, actorOf(f.alice), UploadInput{Number: "TRUCK-01", FileName: "big.bin", Body: strings.NewReader("0123456789")})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, blobCount(t, blobs))

	var count int64
	f.db.Model(&models.Attachment{}).Count(&count)
	assert.Zero(t, count)
}

// overridingBlobStore lets a supervisor take the lock while the body is being stored.
type overridingBlobStore struct {
	BlobStore
	during func()
}

func (s *overridingBlobStore) Put(name string, r io.Reader) (int64, error) {
	n, err := s.BlobStore.Put(name, r)
	s.during()
	return n, err
}

func TestAttachmentService_LockLostDuringUploadRemovesBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	local, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)

	blobs := &overridingBlobStore{BlobStore: local, during: func() {
		_, err := f.locks.Override(ctx, actorOf(f.supervisor), "TRUCK-01", "pulled")
		require.NoError(t, err)
	}}
	svc := NewAttachmentService(f.db, blobs, f.locks, 1<<20)

	_, err = f.locks.Acquire(ctx, actorOf(f.alice), "TRUCK-01")
	require.NoError(t, err)

	_, err = svc.Upload(ctx, actorOf(f.alice), UploadInput{Number: "TRUCK-01", FileName: "a.txt", Body: strings.NewReader("hello")})
	assert.ErrorIs(t, err, ErrLockRequired)
	assert.Zero(t, blobCount(t, local))
}

func TestAttachmentService_FetchIsCompanyScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc, _ := newAttachmentService(t, f, 1<<20)

	_, err := f.locks.Acquire(ctx, actorOf(f.alice), "TRUCK-01")
	require.NoError(t, err)
	att, err := svc.Upload(ctx, actorOf(f.alice), UploadInput{Number: "TRUCK-01", FileName: "a.txt", Body: strings.NewReader("hello")})
	require.NoError(t, err)

	got, rc, err := svc.Fetch(ctx, actorOf(f.bob), att.FileURL)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, att.ID, got.ID)

	other := createTestCompany(t, f.db, "Other Co")
	carol := createTestUser(t, f.db, other.ID, "carol@other.example", "Carol", models.RoleAdmin)
	_, _, err = svc.Fetch(ctx, actorOf(carol), att.StorageKey)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.Fetch(ctx, actorOf(f.bob), "1_2_missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}
