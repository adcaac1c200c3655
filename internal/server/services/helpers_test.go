package services

import (
	"context"
	"sync"
	"testing"

	"github.com/dmitrijs2005/doctree/internal/logging"
	"github.com/dmitrijs2005/doctree/internal/server/blobstore"
	"github.com/dmitrijs2005/doctree/internal/server/keylock"
	"github.com/dmitrijs2005/doctree/internal/server/models"
	"github.com/dmitrijs2005/doctree/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type testEnv struct {
	repos *repomanager.InMemoryRepositoryManager
	blobs *blobstore.MemoryStore
	notes *recordingNotifier
	files *FileService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repos: repomanager.NewInMemoryRepositoryManager(),
		blobs: blobstore.NewMemoryStore(),
		notes: &recordingNotifier{},
	}
	env.files = NewFileService(nil, env.repos, env.blobs, keylock.New(), env.notes, nopLogger{}, 0)
	return env
}

func (e *testEnv) mkdir(t *testing.T, path, parentID string, public bool, owners ...models.Grant) *models.Directory {
	t.Helper()
	if parentID == "" {
		parentID = models.RootParentID
	}
	d := &models.Directory{
		ID:            uuid.NewString(),
		Path:          path,
		ParentID:      parentID,
		Owners:        models.Grants(owners),
		PublicVisible: public,
	}
	require.NoError(t, e.repos.Directories(nil).Create(context.Background(), d))
	return d
}

// put stores a file directly, bypassing authorization.
func (e *testEnv) put(t *testing.T, dir *models.Directory, name, content string, open bool, owners ...models.Grant) *models.FileRecord {
	t.Helper()
	rec, err := e.files.Store(context.Background(), &models.FileRecord{
		Filename:    name,
		DirectoryID: dir.ID,
		OpenVisible: open,
		Owners:      models.Grants(owners),
	}, stringsReader(content))
	require.NoError(t, err)
	return rec
}

func private(name string, mask models.Privilege) models.Grant {
	return models.Grant{Principal: name, Kind: models.GrantPrivate, Mask: mask}
}

var (
	admin = models.Principal{Name: "root", Admin: true}
	alice = models.Principal{Name: "alice", Groups: []string{"staff"}}
	bob   = models.Principal{Name: "bob"}
)
