package services

import (
	"context"
	"database/sql"
	"errors"
	"io"

	"github.com/dmitrijs2005/doctree/internal/common"
	"github.com/dmitrijs2005/doctree/internal/logging"
	"github.com/dmitrijs2005/doctree/internal/server/access"
	"github.com/dmitrijs2005/doctree/internal/server/blobstore"
	"github.com/dmitrijs2005/doctree/internal/server/metrics"
	"github.com/dmitrijs2005/doctree/internal/server/models"
	"github.com/dmitrijs2005/doctree/internal/server/repositories/repomanager"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

const archiveBufferSize = 32 * 1024

// ArchiveStats summarizes a built archive.
type ArchiveStats struct {
	Entries int
	Bytes   int64
}

// ArchiveBuilder streams a directory subtree as a zip archive.
type ArchiveBuilder struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blobstore.Store
	maxDepth    int
	level       int
	logger      logging.Logger
}

// NewArchiveBuilder returns a builder compressing at the given flate level
// (flate.DefaultCompression when out of range).
func NewArchiveBuilder(db *sql.DB, repomanager repomanager.RepositoryManager, blobs blobstore.Store,
	maxDepth, level int, logger logging.Logger) *ArchiveBuilder {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxTreeDepth
	}
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		level = flate.DefaultCompression
	}
	return &ArchiveBuilder{
		db:          db,
		repomanager: repomanager,
		blobs:       blobs,
		maxDepth:    maxDepth,
		level:       level,
		logger:      logger.With("module", "archive"),
	}
}

type archiveFrame struct {
	dir       *models.Directory
	prefix    string
	depth     int
	filesOnly bool
}

// Build writes the subtree rooted at rootID to w. Every readable child
// subtree comes before the files of its parent directory; unreadable
// directories are skipped with all their descendants. When categoryID is set
// only files of that category are written.
//
// The archive is finalized only after a complete traversal. On error the
// central directory is never written and buffered output is dropped, so
// whatever already reached w cannot be read back as a valid archive.
func (b *ArchiveBuilder) Build(ctx context.Context, rootID, categoryID string, p models.Principal, w io.Writer) (*ArchiveStats, error) {
	root, err := b.repomanager.Directories(b.db).GetByID(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if categoryID != "" {
		if err := knownCategory(ctx, b.repomanager.Categories(b.db), categoryID); err != nil {
			return nil, err
		}
	}

	stats := &ArchiveStats{}
	defer func() {
		metrics.ArchiveEntries.Add(float64(stats.Entries))
		metrics.ArchiveBytes.Add(float64(stats.Bytes))
	}()

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, b.level)
	})

	if err := b.walk(ctx, zw, root, categoryID, p, stats); err != nil {
		return stats, err
	}
	if err := zw.Close(); err != nil {
		return stats, err
	}

	b.logger.Info(ctx, "archive built", "directory", root.Path, "user", p.Name, "entries", stats.Entries, "bytes", stats.Bytes)
	return stats, nil
}

func (b *ArchiveBuilder) walk(ctx context.Context, zw *zip.Writer, root *models.Directory, categoryID string,
	p models.Principal, stats *ArchiveStats) error {
	buf := make([]byte, archiveBufferSize)
	stack := []archiveFrame{{dir: root, prefix: root.Path}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.filesOnly {
			if err := b.writeFiles(ctx, zw, f, categoryID, p, buf, stats); err != nil {
				return err
			}
			continue
		}

		if f.depth > b.maxDepth {
			return common.Invalid("directory tree deeper than %d levels", b.maxDepth)
		}

		children, err := b.repomanager.Directories(b.db).FindChildren(ctx, f.dir.ID)
		if err != nil {
			return err
		}

		f.filesOnly = true
		stack = append(stack, f)

		visible := access.VisibleDirectories(children, p)
		for i := len(visible) - 1; i >= 0; i-- {
			c := visible[i]
			stack = append(stack, archiveFrame{dir: c, prefix: f.prefix + "/" + c.Path, depth: f.depth + 1})
		}
	}
	return nil
}

func (b *ArchiveBuilder) writeFiles(ctx context.Context, zw *zip.Writer, f archiveFrame, categoryID string,
	p models.Principal, buf []byte, stats *ArchiveStats) error {
	repo := b.repomanager.Files(b.db)

	var (
		recs []*models.FileRecord
		err  error
	)
	if categoryID != "" {
		recs, err = repo.FindByDirectoryAndCategory(ctx, f.dir.ID, categoryID)
	} else {
		recs, err = repo.FindByDirectory(ctx, f.dir.ID)
	}
	if err != nil {
		return err
	}

	for _, rec := range access.VisibleFiles(recs, p) {
		if err := ctx.Err(); err != nil {
			return err
		}

		rc, err := b.blobs.Open(ctx, rec.StoredID)
		if errors.Is(err, common.ErrorNotFound) {
			b.logger.Warn(ctx, "blob missing, entry skipped", "file_id", rec.ID, "stored_id", rec.StoredID)
			continue
		}
		if err != nil {
			return err
		}

		n, err := writeEntry(ctx, zw, f.prefix+"/"+rec.Filename, rec, rc, buf)
		rc.Close()
		if err != nil {
			return err
		}
		stats.Entries++
		stats.Bytes += n
	}
	return nil
}

func writeEntry(ctx context.Context, zw *zip.Writer, name string, rec *models.FileRecord, r io.Reader, buf []byte) (int64, error) {
	ew, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: rec.CreatedAt,
	})
	if err != nil {
		return 0, err
	}
	return io.CopyBuffer(ew, cancelReader{ctx: ctx, r: r}, buf)
}

// cancelReader stops reading once ctx is done.
type cancelReader struct {
	ctx context.Context
	r   io.Reader
}

func (c cancelReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
