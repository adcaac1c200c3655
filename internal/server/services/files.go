package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/doctree/internal/common"
	"github.com/dmitrijs2005/doctree/internal/filex"
	"github.com/dmitrijs2005/doctree/internal/logging"
	"github.com/dmitrijs2005/doctree/internal/server/access"
	"github.com/dmitrijs2005/doctree/internal/server/blobstore"
	"github.com/dmitrijs2005/doctree/internal/server/keylock"
	"github.com/dmitrijs2005/doctree/internal/server/metrics"
	"github.com/dmitrijs2005/doctree/internal/server/models"
	"github.com/dmitrijs2005/doctree/internal/server/notify"
	"github.com/dmitrijs2005/doctree/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// FileService keeps file records and their blobs consistent. Mutations of a
// logical file (directory, filename) are serialized on a key lock; reads
// take no locks.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blobstore.Store
	locks       *keylock.Table
	notifier    notify.Notifier
	logger      logging.Logger
	presignTTL  time.Duration
	now         func() time.Time
}

func NewFileService(db *sql.DB, repomanager repomanager.RepositoryManager, blobs blobstore.Store,
	locks *keylock.Table, notifier notify.Notifier, logger logging.Logger, presignTTL time.Duration) *FileService {
	if locks == nil {
		locks = keylock.New()
	}
	return &FileService{
		db:          db,
		repomanager: repomanager,
		blobs:       blobs,
		locks:       locks,
		notifier:    notifier,
		logger:      logger.With("module", "files"),
		presignTTL:  presignTTL,
		now:         time.Now,
	}
}

// UploadRequest describes an upload coming from a client.
type UploadRequest struct {
	DirectoryID string
	CategoryID  string
	Filename    string
	ContentType string
	PublicMode  bool
	GroupMode   bool
}

func (s *FileService) Resolve(ctx context.Context, directoryID, filename string) (*models.FileRecord, error) {
	return s.repomanager.Files(s.db).FindByDirectoryAndName(ctx, directoryID, filename)
}

func (s *FileService) Get(ctx context.Context, fileID string) (*models.FileRecord, error) {
	return s.repomanager.Files(s.db).GetByID(ctx, fileID)
}

func (s *FileService) GetByStoredID(ctx context.Context, storedID string) (*models.FileRecord, error) {
	return s.repomanager.Files(s.db).GetByStoredID(ctx, storedID)
}

func (s *FileService) List(ctx context.Context, directoryID string) ([]*models.FileRecord, error) {
	return s.repomanager.Files(s.db).FindByDirectory(ctx, directoryID)
}

// ListByCategory fails with Invalid when categoryID is unknown.
func (s *FileService) ListByCategory(ctx context.Context, directoryID, categoryID string) ([]*models.FileRecord, error) {
	if err := knownCategory(ctx, s.repomanager.Categories(s.db), categoryID); err != nil {
		return nil, err
	}
	return s.repomanager.Files(s.db).FindByDirectoryAndCategory(ctx, directoryID, categoryID)
}

// Store writes the content of candidate and persists its record. An existing
// record with the same (directory, filename) is replaced in place: the new
// blob is written first, the record updated, and only then the previous blob
// removed. If the previous blob cannot be removed it is logged as an orphan
// and the call still succeeds.
func (s *FileService) Store(ctx context.Context, candidate *models.FileRecord, r io.Reader) (*models.FileRecord, error) {
	return s.store(ctx, candidate, r, nil)
}

// recordCheck vets the current record while its key lock is held.
type recordCheck func(rec *models.FileRecord) error

// requireFile denies the operation unless p holds priv on the record.
func requireFile(p models.Principal, priv models.Privilege, verb string) recordCheck {
	return func(rec *models.FileRecord) error {
		if !access.File(rec, p, priv) {
			return common.Unauthorized("no %s access to %s", verb, rec.Filename)
		}
		return nil
	}
}

func (s *FileService) store(ctx context.Context, candidate *models.FileRecord, r io.Reader, check recordCheck) (rec *models.FileRecord, err error) {
	defer func() { metrics.ObserveFileOperation("store", err) }()

	unlock := s.locks.Lock(keylock.FileKey(candidate.DirectoryID, candidate.Filename))
	defer unlock()

	repo := s.repomanager.Files(s.db)

	existing, err := repo.FindByDirectoryAndName(ctx, candidate.DirectoryID, candidate.Filename)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if existing != nil && check != nil {
		if err := check(existing); err != nil {
			return nil, err
		}
	}

	obj, err := s.blobs.Put(ctx, r, candidate.Filename, candidate.ContentType)
	if err != nil {
		return nil, err
	}

	next := *candidate
	next.StoredID = obj.ID
	next.SizeBytes = obj.Size
	next.Checksum = obj.Checksum
	if next.Extension == "" {
		next.Extension = filex.Extension(next.Filename)
	}
	if next.ContentType == "" {
		next.ContentType = filex.ContentType(next.Filename)
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = s.now().UTC()
	}

	if existing != nil {
		next.ID = existing.ID
		err = repo.Update(ctx, &next)
	} else {
		if next.ID == "" {
			next.ID = uuid.NewString()
		}
		err = repo.Create(ctx, &next)
	}
	if err != nil {
		s.discardBlob(ctx, obj.ID)
		return nil, err
	}

	if existing != nil {
		s.discardBlob(ctx, existing.StoredID)
	}

	s.logger.Debug(ctx, "file stored", "file_id", next.ID, "stored_id", next.StoredID, "size", next.SizeBytes)
	return &next, nil
}

// discardBlob removes a blob no record points to any more.
func (s *FileService) discardBlob(ctx context.Context, storedID string) {
	err := s.blobs.Delete(context.WithoutCancel(ctx), storedID)
	if err == nil || errors.Is(err, common.ErrorNotFound) {
		return
	}
	metrics.OrphanBlobs.Inc()
	s.logger.Warn(ctx, "orphaned blob", "stored_id", storedID, "error", err)
}

// Delete removes the blob and then the record. A blob that is already gone
// does not stop the record from being removed; any other blob failure keeps
// the record.
func (s *FileService) Delete(ctx context.Context, fileID string) error {
	_, err := s.delete(ctx, fileID, nil)
	return err
}

func (s *FileService) delete(ctx context.Context, fileID string, check recordCheck) (*models.FileRecord, error) {
	rec, err := s.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(keylock.FileKey(rec.DirectoryID, rec.Filename))
	defer unlock()

	// re-read under the lock, the record may have been replaced meanwhile
	rec, err = s.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return rec, s.deleteLocked(ctx, rec, check)
}

func (s *FileService) DeleteByName(ctx context.Context, directoryID, filename string) error {
	_, err := s.deleteByName(ctx, directoryID, filename, nil)
	return err
}

func (s *FileService) deleteByName(ctx context.Context, directoryID, filename string, check recordCheck) (*models.FileRecord, error) {
	unlock := s.locks.Lock(keylock.FileKey(directoryID, filename))
	defer unlock()

	rec, err := s.Resolve(ctx, directoryID, filename)
	if err != nil {
		return nil, err
	}
	return rec, s.deleteLocked(ctx, rec, check)
}

func (s *FileService) deleteLocked(ctx context.Context, rec *models.FileRecord, check recordCheck) (err error) {
	defer func() { metrics.ObserveFileOperation("delete", err) }()

	if check != nil {
		if err := check(rec); err != nil {
			return err
		}
	}

	if err := s.blobs.Delete(ctx, rec.StoredID); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	return s.repomanager.Files(s.db).Delete(ctx, rec.ID)
}

// Upload stores r as req.Filename in a directory the principal may write to.
func (s *FileService) Upload(ctx context.Context, p models.Principal, req UploadRequest, r io.Reader) (*models.FileRecord, error) {
	filename := filex.BaseName(req.Filename)
	if filename == "" || filename == "." || filename == ".." {
		return nil, common.Invalid("invalid filename %q", req.Filename)
	}

	dir, err := s.repomanager.Directories(s.db).GetByID(ctx, req.DirectoryID)
	if err != nil {
		return nil, err
	}
	if !access.Directory(dir, p, models.Write) {
		return nil, common.Unauthorized("no write access to directory %s", dir.Path)
	}

	if req.CategoryID != "" {
		if err := knownCategory(ctx, s.repomanager.Categories(s.db), req.CategoryID); err != nil {
			return nil, err
		}
	}

	canWrite := requireFile(p, models.Write, "write")

	// fail early before the body is consumed; store repeats the check under the lock
	existing, err := s.Resolve(ctx, dir.ID, filename)
	switch {
	case err == nil:
		if err := canWrite(existing); err != nil {
			return nil, err
		}
	case !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}

	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = filex.ContentType(filename)
	}

	candidate := &models.FileRecord{
		Filename:    filename,
		Extension:   filex.Extension(filename),
		ContentType: contentType,
		CategoryID:  req.CategoryID,
		DirectoryID: dir.ID,
		OpenVisible: req.PublicMode,
		Owners:      uploadOwners(p, req.GroupMode),
	}

	rec, err := s.store(ctx, candidate, r, canWrite)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "file uploaded", "user", p.Name, "file", rec.Filename, "directory", dir.Path)
	s.notifier.Notify(ctx, notify.UploadMessage(s.now(), p.Name, rec.Filename, dir.Path))
	return rec, nil
}

func uploadOwners(p models.Principal, groupMode bool) models.Grants {
	owners := models.Grants{{Principal: p.Name, Kind: models.GrantPrivate, Mask: models.AllPrivileges}}
	if groupMode {
		for _, g := range p.Groups {
			owners = append(owners, models.Grant{Principal: g, Kind: models.GrantGroup, Mask: models.Read | models.Write})
		}
	}
	return owners
}

func (s *FileService) Remove(ctx context.Context, p models.Principal, fileID string) error {
	rec, err := s.delete(ctx, fileID, requireFile(p, models.Delete, "delete"))
	if err != nil {
		return err
	}
	s.removed(ctx, p, rec)
	return nil
}

func (s *FileService) RemoveByName(ctx context.Context, p models.Principal, directoryID, filename string) error {
	rec, err := s.deleteByName(ctx, directoryID, filename, requireFile(p, models.Delete, "delete"))
	if err != nil {
		return err
	}
	s.removed(ctx, p, rec)
	return nil
}

func (s *FileService) removed(ctx context.Context, p models.Principal, rec *models.FileRecord) {
	s.logger.Info(ctx, "file deleted", "user", p.Name, "file", rec.Filename, "directory_id", rec.DirectoryID)
	s.notifier.Notify(ctx, notify.DeleteMessage(s.now(), p.Name, rec.Filename, rec.DirectoryID))
}

// Open returns the record and a reader over its content. The caller closes
// the reader.
func (s *FileService) Open(ctx context.Context, p models.Principal, storedID string) (*models.FileRecord, io.ReadCloser, error) {
	rec, err := s.GetByStoredID(ctx, storedID)
	if err != nil {
		return nil, nil, err
	}
	if !access.File(rec, p, models.Read) {
		return nil, nil, common.Unauthorized("no read access to %s", rec.Filename)
	}

	rc, err := s.blobs.Open(ctx, rec.StoredID)
	if err != nil {
		return nil, nil, err
	}
	return rec, rc, nil
}

// Rename changes the filename of a record, keeping its blob.
func (s *FileService) Rename(ctx context.Context, p models.Principal, fileID, newName string) (rec *models.FileRecord, err error) {
	defer func() { metrics.ObserveFileOperation("rename", err) }()

	name := filex.BaseName(newName)
	if name == "" || name == "." || name == ".." {
		return nil, common.Invalid("invalid filename %q", newName)
	}

	canWrite := requireFile(p, models.Write, "write")

	rec, err = s.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := canWrite(rec); err != nil {
		return nil, err
	}
	if rec.Filename == name {
		return rec, nil
	}

	unlock := s.lockPair(keylock.FileKey(rec.DirectoryID, rec.Filename), keylock.FileKey(rec.DirectoryID, name))
	defer unlock()

	repo := s.repomanager.Files(s.db)

	rec, err = repo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := canWrite(rec); err != nil {
		return nil, err
	}
	if _, err := repo.FindByDirectoryAndName(ctx, rec.DirectoryID, name); err == nil {
		return nil, common.Conflict("file %q already exists", name)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	rec.Filename = name
	rec.Extension = filex.Extension(name)
	if err := repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// lockPair takes two key locks in a fixed order.
func (s *FileService) lockPair(a, b string) func() {
	if b < a {
		a, b = b, a
	}
	ua := s.locks.Lock(a)
	ub := s.locks.Lock(b)
	return func() {
		ub()
		ua()
	}
}

// VisibleFiles lists the files of a readable directory that p may read.
func (s *FileService) VisibleFiles(ctx context.Context, p models.Principal, directoryID, categoryID string) ([]*models.FileRecord, error) {
	dir, err := s.repomanager.Directories(s.db).GetByID(ctx, directoryID)
	if err != nil {
		return nil, err
	}
	if !access.Directory(dir, p, models.Read) {
		return nil, common.Unauthorized("no read access to directory %s", dir.Path)
	}

	var recs []*models.FileRecord
	if categoryID != "" {
		recs, err = s.ListByCategory(ctx, directoryID, categoryID)
	} else {
		recs, err = s.List(ctx, directoryID)
	}
	if err != nil {
		return nil, err
	}
	return access.VisibleFiles(recs, p), nil
}

func (s *FileService) Search(ctx context.Context, p models.Principal, fragment string) ([]*models.FileRecord, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, common.Invalid("empty search")
	}
	recs, err := s.repomanager.Files(s.db).SearchByName(ctx, fragment)
	if err != nil {
		return nil, err
	}
	return access.VisibleFiles(recs, p), nil
}

// DownloadURL returns a time-limited direct link to the content of a file.
func (s *FileService) DownloadURL(ctx context.Context, p models.Principal, fileID string) (string, error) {
	rec, err := s.Get(ctx, fileID)
	if err != nil {
		return "", err
	}
	if !access.File(rec, p, models.Read) {
		return "", common.Unauthorized("no read access to %s", rec.Filename)
	}

	presigner, ok := s.blobs.(blobstore.Presigner)
	if !ok {
		return "", common.Invalid("direct links are not supported by the blob store")
	}
	return presigner.PresignGet(ctx, rec.StoredID, rec.Filename, s.presignTTL)
}
