package services

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/doctree/internal/common"
	"github.com/dmitrijs2005/doctree/internal/dbx"
	"github.com/dmitrijs2005/doctree/internal/logging"
	"github.com/dmitrijs2005/doctree/internal/server/access"
	"github.com/dmitrijs2005/doctree/internal/server/metrics"
	"github.com/dmitrijs2005/doctree/internal/server/models"
	"github.com/dmitrijs2005/doctree/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const DefaultMaxTreeDepth = 64

// DirectoryService manages the directory tree. Directory lookups go through
// an expiring LRU cache that is invalidated on every change.
type DirectoryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       *expirable.LRU[string, *models.Directory]
	maxDepth    int
	logger      logging.Logger
}

func NewDirectoryService(db *sql.DB, repomanager repomanager.RepositoryManager, cacheSize int, cacheTTL time.Duration,
	maxDepth int, logger logging.Logger) *DirectoryService {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxTreeDepth
	}
	return &DirectoryService{
		db:          db,
		repomanager: repomanager,
		cache:       expirable.NewLRU[string, *models.Directory](cacheSize, nil, cacheTTL),
		maxDepth:    maxDepth,
		logger:      logger.With("module", "directories"),
	}
}

type CreateDirectoryRequest struct {
	Path          string
	ParentID      string
	Owners        models.Grants
	PublicVisible bool
}

func copyDirectory(d *models.Directory) *models.Directory {
	c := *d
	c.Owners = slices.Clone(d.Owners)
	return &c
}

func (s *DirectoryService) lookup(ctx context.Context, id string) (*models.Directory, error) {
	if d, ok := s.cache.Get(id); ok {
		metrics.DirectoryCacheHits.Inc()
		return copyDirectory(d), nil
	}
	metrics.DirectoryCacheMisses.Inc()

	d, err := s.repomanager.Directories(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, copyDirectory(d))
	return d, nil
}

// Lookup returns a directory without checking access.
func (s *DirectoryService) Lookup(ctx context.Context, id string) (*models.Directory, error) {
	return s.lookup(ctx, id)
}

// Get returns a directory the principal may read.
func (s *DirectoryService) Get(ctx context.Context, p models.Principal, id string) (*models.Directory, error) {
	d, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.Directory(d, p, models.Read) {
		return nil, common.Unauthorized("no read access to directory %s", d.Path)
	}
	return d, nil
}

// Children lists the readable direct children of a readable directory.
func (s *DirectoryService) Children(ctx context.Context, p models.Principal, id string) ([]*models.Directory, error) {
	if _, err := s.Get(ctx, p, id); err != nil {
		return nil, err
	}
	children, err := s.repomanager.Directories(s.db).FindChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	return access.VisibleDirectories(children, p), nil
}

// Tree returns the readable subtree under id. Unreadable directories are
// pruned together with their descendants.
func (s *DirectoryService) Tree(ctx context.Context, p models.Principal, id string) (*models.TreeNode, error) {
	root, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}

	type frame struct {
		node  *models.TreeNode
		depth int
	}

	repo := s.repomanager.Directories(s.db)
	top := &models.TreeNode{Directory: root}
	stack := []frame{{node: top}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.depth > s.maxDepth {
			return nil, common.Invalid("directory tree deeper than %d levels", s.maxDepth)
		}

		children, err := repo.FindChildren(ctx, f.node.Directory.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range access.VisibleDirectories(children, p) {
			n := &models.TreeNode{Directory: c}
			f.node.Children = append(f.node.Children, n)
			stack = append(stack, frame{node: n, depth: f.depth + 1})
		}
	}
	return top, nil
}

func requireAdmin(p models.Principal) error {
	if !p.Admin {
		return common.Unauthorized("administrator privileges required")
	}
	return nil
}

func validatePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "." || path == ".." || strings.ContainsAny(path, `/\`) {
		return "", common.Invalid("invalid directory name %q", path)
	}
	return path, nil
}

func validateGrants(owners models.Grants) error {
	for _, g := range owners {
		if !g.Kind.Valid() {
			return common.Invalid("unknown grant kind %q", g.Kind)
		}
		if g.Mask < 0 || g.Mask > models.AllPrivileges {
			return common.Invalid("invalid privilege mask %d", g.Mask)
		}
		if g.Kind != models.GrantPublic && g.Principal == "" {
			return common.Invalid("%s grant without principal", g.Kind)
		}
	}
	return nil
}

// Create adds a directory. Only administrators create directories.
func (s *DirectoryService) Create(ctx context.Context, p models.Principal, req CreateDirectoryRequest) (*models.Directory, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	path, err := validatePath(req.Path)
	if err != nil {
		return nil, err
	}
	if err := validateGrants(req.Owners); err != nil {
		return nil, err
	}

	parentID := req.ParentID
	if parentID == "" {
		parentID = models.RootParentID
	}
	if parentID != models.RootParentID {
		if _, err := s.lookup(ctx, parentID); err != nil {
			return nil, err
		}
	}

	d := &models.Directory{
		ID:            uuid.NewString(),
		Path:          path,
		ParentID:      parentID,
		Owners:        req.Owners,
		PublicVisible: req.PublicVisible,
	}
	if d.Owners == nil {
		d.Owners = models.Grants{}
	}
	if err := s.repomanager.Directories(s.db).Create(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "directory created", "user", p.Name, "directory_id", d.ID, "path", d.Path)
	return d, nil
}

func (s *DirectoryService) Rename(ctx context.Context, p models.Principal, id, newPath string) (*models.Directory, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	path, err := validatePath(newPath)
	if err != nil {
		return nil, err
	}

	d, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Path = path
	return d, s.update(ctx, d)
}

// Move reparents a directory. Moving a directory below itself or one of its
// descendants is rejected.
func (s *DirectoryService) Move(ctx context.Context, p models.Principal, id, newParentID string) (*models.Directory, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if newParentID == "" {
		newParentID = models.RootParentID
	}

	d, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	if newParentID != models.RootParentID {
		ancestor := newParentID
		for depth := 0; ancestor != models.RootParentID; depth++ {
			if ancestor == id {
				return nil, common.Invalid("cannot move directory %s below itself", d.Path)
			}
			if depth > s.maxDepth {
				return nil, common.Invalid("directory tree deeper than %d levels", s.maxDepth)
			}
			a, err := s.lookup(ctx, ancestor)
			if err != nil {
				return nil, err
			}
			ancestor = a.ParentID
		}
	}

	d.ParentID = newParentID
	return d, s.update(ctx, d)
}

func (s *DirectoryService) update(ctx context.Context, d *models.Directory) error {
	defer s.cache.Remove(d.ID)
	if err := s.repomanager.Directories(s.db).Update(ctx, d); err != nil {
		return err
	}
	s.logger.Info(ctx, "directory updated", "directory_id", d.ID, "path", d.Path, "parent_id", d.ParentID)
	return nil
}

// Delete removes an empty directory. The emptiness check and the delete run
// in one serializable transaction; losing a race against a concurrent upload
// or mkdir in the same directory is reported as Conflict.
func (s *DirectoryService) Delete(ctx context.Context, p models.Principal, id string) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	defer s.cache.Remove(id)

	err := dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		dirs := s.repomanager.Directories(tx)

		if _, err := dirs.GetByID(ctx, id); err != nil {
			return err
		}

		children, err := dirs.CountChildren(ctx, id)
		if err != nil {
			return err
		}
		files, err := s.repomanager.Files(tx).CountByDirectory(ctx, id)
		if err != nil {
			return err
		}
		if children > 0 || files > 0 {
			return common.ErrDirectoryNotEmpty
		}
		return dirs.Delete(ctx, id)
	}, dbx.Isolation(sql.LevelSerializable))
	if dbx.IsSerializationFailure(err) {
		return common.Conflict("directory %s changed concurrently", id)
	}
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "directory deleted", "user", p.Name, "directory_id", id)
	return nil
}
