// Package server initializes and runs the document store: it opens the
// metadata database, the blob store and the notification channel, wires the
// services, and runs the HTTP API and the gRPC health endpoint until a
// termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/doctree/internal/filex"
	"github.com/dmitrijs2005/doctree/internal/logging"
	"github.com/dmitrijs2005/doctree/internal/server/blobstore"
	"github.com/dmitrijs2005/doctree/internal/server/config"
	"github.com/dmitrijs2005/doctree/internal/server/httpapi"
	"github.com/dmitrijs2005/doctree/internal/server/keylock"
	"github.com/dmitrijs2005/doctree/internal/server/notify"
	"github.com/dmitrijs2005/doctree/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/doctree/internal/server/services"
	"github.com/dmitrijs2005/doctree/internal/server/session"

	gs "github.com/dmitrijs2005/doctree/internal/server/grpc"
)

const startupTimeout = 30 * time.Second

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	closers    []func() error
	httpServer *httpapi.HTTPServer
	grpcServer *gs.GRPCServer
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}
	app.closers = append(app.closers, db.Close)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	spool, err := filex.EnsureSubdDir(c.SpoolDir)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("spool dir error: %w", err)
	}

	blobs, err := blobstore.NewS3Store(ctx, blobstore.S3Options{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Bucket:       c.S3Bucket,
		BaseEndpoint: c.S3BaseEndpoint,
		SpoolDir:     spool,
	})
	if err != nil {
		app.close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	notifier, closeNotifier, err := newNotifier(c, logger)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("notifier init error: %w", err)
	}
	if closeNotifier != nil {
		app.closers = append(app.closers, closeNotifier)
	}

	handler := newHandler(c, db, rm, blobs, notifier, logger)

	app.httpServer = httpapi.NewHTTPServer(c.EndpointAddrHTTP, logger, handler)
	app.grpcServer = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, c.SecretKey)

	return app, nil
}

// newNotifier publishes to AMQP when a URL is configured and logs otherwise.
func newNotifier(c *config.Config, l logging.Logger) (notify.Notifier, func() error, error) {
	if c.AMQPURL == "" {
		return notify.NewLogNotifier(l), nil, nil
	}
	n, err := notify.NewAMQPNotifier(c.AMQPURL, c.AMQPExchange, l)
	if err != nil {
		return nil, nil, err
	}
	return n, n.Close, nil
}

func newHandler(c *config.Config, db *sql.DB, rm repomanager.RepositoryManager, blobs blobstore.Store,
	notifier notify.Notifier, l logging.Logger) *httpapi.Handler {
	files := services.NewFileService(db, rm, blobs, keylock.New(), notifier, l, c.PresignExpiry)
	dirs := services.NewDirectoryService(db, rm, c.DirectoryCacheSize, c.DirectoryCacheTTL, c.MaxTreeDepth, l)
	categories := services.NewCategoryService(db, rm, l)
	archives := services.NewArchiveBuilder(db, rm, blobs, c.MaxTreeDepth, c.ArchiveLevel, l)

	var pinger httpapi.Pinger
	if db != nil {
		pinger = db
	}
	return httpapi.NewHandler(files, dirs, categories, archives, session.NewRegistry(), notifier, pinger, c.SecretKey, l)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpcServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close()
	app.logger.Info(context.Background(), "App stopped")
}
