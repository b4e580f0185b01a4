// Package app builds the client engine from configuration: one entity cache,
// one remote source and one follow coordinator shared by every feed.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"feedsync/config"
	"feedsync/internal/feed"
	"feedsync/internal/infra/cache"
	"feedsync/internal/infra/db"
	"feedsync/internal/models"
	"feedsync/internal/remote"
	"feedsync/internal/repository"
	"feedsync/internal/session"
	"feedsync/internal/social"
	"feedsync/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Repo     *repository.Repository
	Social   *social.Coordinator
	Sessions *session.Store

	logger *zap.Logger
	source remote.Source
	local  *gorm.DB
	redis  *cache.RedisCache

	mu      sync.Mutex
	session models.Session
	feeds   map[*feed.Aggregator]func()
}

// New opens the local database, picks the cache backend named by
// CACHE_BACKEND and restores the saved session, if any.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = utils.OrGlobal(logger)
	src := remote.NewHTTPSource(cfg.APIBaseURL, cfg.APITimeout, logger)
	return build(ctx, cfg, logger, src)
}

func build(ctx context.Context, cfg *config.Config, logger *zap.Logger, src remote.Source) (*App, error) {
	local, err := db.OpenLocal(cfg.LocalDBPath, cfg.AppEnv)
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewStore(local)
	if err != nil {
		closeDB(local)
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Sessions: sessions,
		logger:   logger.Named("app"),
		source:   src,
		local:    local,
		feeds:    make(map[*feed.Aggregator]func()),
	}

	entities, err := a.entityCache(cfg)
	if err != nil {
		closeDB(local)
		return nil, err
	}

	opts := []repository.Option{repository.WithLogger(logger)}
	if cfg.CacheSingleFlight {
		opts = append(opts, repository.WithSingleFlight())
	}
	a.Repo = repository.New(entities, src, opts...)
	a.Social = social.NewCoordinator(a.Repo, src, 0, logger)

	sess, err := sessions.Load(ctx)
	switch {
	case errors.Is(err, session.ErrNoSession):
		a.logger.Info("no saved session")
	case err != nil:
		a.Close()
		return nil, err
	default:
		a.use(sess)
	}

	a.logger.Info("client ready",
		zap.String("cache", cfg.CacheBackend),
		zap.String("api", cfg.APIBaseURL),
		zap.Int64("identity", sess.IdentityID),
	)
	return a, nil
}

func (a *App) entityCache(cfg *config.Config) (cache.EntityCache, error) {
	switch cfg.CacheBackend {
	case "memory", "":
		return cache.NewMemory(cfg.CacheMaxEntries), nil
	case "redis":
		rc, err := cache.New(cfg)
		if err != nil {
			return nil, err
		}
		a.redis = rc
		return cache.NewRedisEntities(rc, "feedsync:", cfg.CacheTTL), nil
	case "sqlite":
		return cache.NewSQLite(a.local)
	}
	return nil, fmt.Errorf("unknown CACHE_BACKEND %q", cfg.CacheBackend)
}

func (a *App) Session() models.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// use installs sess everywhere the viewer's identity matters.
func (a *App) use(sess models.Session) {
	a.mu.Lock()
	a.session = sess
	feeds := make([]*feed.Aggregator, 0, len(a.feeds))
	for agg := range a.feeds {
		feeds = append(feeds, agg)
	}
	a.mu.Unlock()

	a.source.UseSession(sess)
	a.Social.SetViewer(sess.IdentityID)
	for _, agg := range feeds {
		agg.SetViewer(sess.IdentityID)
	}
}

// Register creates an account on the server and keeps its session.
func (a *App) Register(ctx context.Context, displayName, avatar string) (models.Session, error) {
	sess, err := a.Repo.Register(ctx, displayName, avatar)
	if err != nil {
		return models.Session{}, err
	}
	if err := a.Sessions.Save(ctx, sess); err != nil {
		return models.Session{}, err
	}
	a.use(sess)
	return sess, nil
}

// SignOut forgets the session and everything cached under it.
func (a *App) SignOut(ctx context.Context) error {
	if err := a.Sessions.Delete(ctx); err != nil {
		return err
	}
	a.use(models.Session{})
	return a.Repo.ClearCache(ctx)
}

func (a *App) NewGlobalFeed() *feed.Aggregator {
	return a.newFeed(remote.GlobalFeed())
}

func (a *App) NewAuthorFeed(authorID int64) *feed.Aggregator {
	return a.newFeed(remote.ByAuthor(authorID))
}

func (a *App) newFeed(scope remote.Scope) *feed.Aggregator {
	pager := feed.NewPaginator(a.source, scope, a.Config.FeedPageSize, a.logger)
	agg := feed.NewAggregator(pager, a.Repo, a.Session().IdentityID,
		feed.WithConcurrency(a.Config.ResolveConcurrency),
		feed.WithAggregatorLogger(a.logger),
	)
	unsubscribe := a.Social.Subscribe(func(social.FollowEvent) { agg.MarkStale() })

	a.mu.Lock()
	a.feeds[agg] = unsubscribe
	a.mu.Unlock()
	return agg
}

// ReleaseFeed stops agg from receiving follow updates.
func (a *App) ReleaseFeed(agg *feed.Aggregator) {
	a.mu.Lock()
	unsubscribe, ok := a.feeds[agg]
	delete(a.feeds, agg)
	a.mu.Unlock()
	if ok {
		unsubscribe()
	}
}

func (a *App) Close() error {
	a.mu.Lock()
	for agg, unsubscribe := range a.feeds {
		unsubscribe()
		delete(a.feeds, agg)
	}
	a.mu.Unlock()

	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, closeDB(a.local))
	return errors.Join(errs...)
}

func closeDB(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
