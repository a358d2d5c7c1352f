package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jcdickinson/rbxdocs/internal/api"
	"github.com/jcdickinson/rbxdocs/internal/catalog"
	"github.com/jcdickinson/rbxdocs/internal/config"
	"github.com/jcdickinson/rbxdocs/internal/db"
	"github.com/jcdickinson/rbxdocs/internal/icons"
	"github.com/jcdickinson/rbxdocs/internal/launcher"
	md "github.com/jcdickinson/rbxdocs/internal/markdown"
	"github.com/jcdickinson/rbxdocs/internal/rpc"
	"github.com/jcdickinson/rbxdocs/internal/search"
	"golang.org/x/sync/singleflight"
)

const (
	historyKeep     = 50
	versionCacheTTL = time.Minute
)

type versionCacheEntry struct {
	version string
	expiry  time.Time
}

type Server struct {
	catalog    *catalog.Catalog
	db         *db.DB
	api        *api.Client
	dumps      *api.DumpCache
	cfg        atomic.Pointer[config.Config]
	socketPath string
	httpServer *http.Server
	listener   net.Listener
	lock       *InstanceLock

	mu         sync.Mutex
	expTimer   *time.Timer
	expiration time.Duration

	versionGroup   singleflight.Group
	versionCache   versionCacheEntry
	versionCacheMu sync.RWMutex

	stopOnce sync.Once
	stopErr  error
}

// NewServer wires the fetch pipeline, catalog and build history from cfg.
// database may be nil, in which case builds are not recorded.
func NewServer(cfg *config.Config, database *db.DB, socketPath string) *Server {
	client := api.NewClient(&http.Client{Timeout: cfg.FetchTimeout()}, cfg.Fetch.UserAgent, api.Endpoints{
		VersionURL:      cfg.Sources.VersionURL,
		DumpURLTemplate: cfg.Sources.DumpURLTemplate,
		DocsURL:         cfg.Sources.DocsURL,
		IconListURL:     cfg.Sources.IconListURL,
	})

	var iconSource icons.Source
	switch {
	case cfg.Icons.Dir != "":
		iconSource = icons.Dir(cfg.Icons.Dir)
	case cfg.Sources.IconListURL != "" && cfg.Icons.URLTemplate != "":
		iconSource = icons.Remote{Lister: client, URLTemplate: cfg.Icons.URLTemplate}
	}

	dumps := api.NewDumpCache(config.DumpCacheDir())
	pipeline := &catalog.Pipeline{
		API:          client,
		Icons:        iconSource,
		Cache:        dumps,
		EnumItemIcon: cfg.Icons.EnumItemKey,
	}

	expSec := cfg.Daemon.ExpirationSeconds
	if expSec <= 0 {
		expSec = 600
	}

	s := &Server{
		db:         database,
		api:        client,
		dumps:      dumps,
		socketPath: socketPath,
		expiration: time.Duration(expSec) * time.Second,
	}
	s.cfg.Store(cfg)
	s.catalog = catalog.New(pipeline, catalog.WithOnBuild(s.recordBuild))
	return s
}

// SetConfig swaps in a new settings snapshot. Only the search settings take
// effect without a restart; sources and icons are read once by NewServer.
func (s *Server) SetConfig(cfg *config.Config) {
	s.cfg.Store(cfg)
}

// Config returns the current settings snapshot.
func (s *Server) Config() *config.Config {
	return s.cfg.Load()
}

func (s *Server) recordBuild(r catalog.BuildReport) {
	if s.db == nil {
		return
	}
	b := &db.Build{
		ID:         r.ID,
		Version:    r.Version,
		Active:     r.Active,
		Deprecated: r.Deprecated,
		DataTypes:  r.DataTypes,
		StartedAt:  r.Started,
		FinishedAt: r.Finished,
	}
	if r.Err != nil {
		b.Error = r.Err.Error()
	}
	if err := s.db.InsertBuild(b); err != nil {
		slog.Warn("daemon: recording build", "id", r.ID, "error", err)
		return
	}
	if _, err := s.db.PruneBuilds(historyKeep); err != nil {
		slog.Warn("daemon: pruning build history", "error", err)
	}
}

// Handler returns the daemon's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", s.withExpReset(s.handleSearch))
	mux.HandleFunc("POST /reload", s.withExpReset(s.handleReload))
	mux.HandleFunc("POST /get-doc", s.withExpReset(s.handleGetDoc))
	mux.HandleFunc("GET /status", s.withExpReset(s.handleStatus))
	mux.HandleFunc("GET /version", s.withExpReset(s.handleVersion))
	mux.HandleFunc("POST /clear-cache", s.withExpReset(s.handleClearCache))
	mux.HandleFunc("POST /shutdown", s.handleShutdown)
	return mux
}

// StartCatalog begins the initial build in the background.
func (s *Server) StartCatalog() {
	s.catalog.Start()
}

func (s *Server) Start(ctx context.Context) error {
	lock, err := AcquireLock(LockPath(s.socketPath))
	if err != nil {
		return err
	}
	listener, err := s.listen()
	if err != nil {
		lock.Release()
		return err
	}
	s.lock = lock
	s.listener = listener
	s.httpServer = &http.Server{Handler: s.Handler()}

	s.StartCatalog()

	s.mu.Lock()
	s.expTimer = time.AfterFunc(s.expiration, s.expire)
	s.mu.Unlock()

	log.Printf("daemon: listening on %s (expires after %s of inactivity)", s.socketPath, s.expiration)

	if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

// listen replaces any stale socket file and listens on the daemon socket.
func (s *Server) listen() (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return nil, fmt.Errorf("creating socket directory: %w", err)
	}
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return nil, fmt.Errorf("listening on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("setting socket permissions: %w", err)
	}
	return listener, nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.stopErr = s.stop(ctx)
	})
	return s.stopErr
}

func (s *Server) stop(ctx context.Context) error {
	var errs []error

	s.mu.Lock()
	if s.expTimer != nil {
		s.expTimer.Stop()
	}
	s.mu.Unlock()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("daemon: shutdown error: %v", err)
			errs = append(errs, err)
		}
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("daemon: listener close error: %v", err)
			errs = append(errs, err)
		}
		if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
			log.Printf("daemon: socket remove error: %v", err)
			errs = append(errs, err)
		}
	}
	s.catalog.Close()
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Printf("daemon: db close error: %v", err)
			errs = append(errs, err)
		}
	}
	if err := s.lock.Release(); err != nil {
		log.Printf("daemon: %v", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) expire() {
	log.Printf("daemon: expiring due to inactivity")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	os.Exit(0)
}

func (s *Server) resetExpiration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expTimer != nil {
		s.expTimer.Stop()
		s.expTimer.Reset(s.expiration)
	}
}

func (s *Server) withExpReset(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.resetExpiration()
		handler(w, r)
	}
}

// searchOptions merges the request's overrides into the configured defaults.
func searchOptions(cfg config.SearchConfig, req rpc.SearchRequest) search.Options {
	opts := search.Options{
		Limit:             cfg.MaxResults,
		Threshold:         cfg.ScoreThreshold,
		IncludeDeprecated: cfg.ShowDeprecated,
	}
	if req.MaxResults > 0 {
		opts.Limit = req.MaxResults
	}
	if req.ScoreThreshold != nil {
		opts.Threshold = *req.ScoreThreshold
	}
	if req.ShowDeprecated != nil {
		opts.IncludeDeprecated = *req.ShowDeprecated
	}
	return opts
}

// catalogErrorStatus maps catalog errors onto HTTP statuses.
func catalogErrorStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req rpc.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := searchOptions(s.Config().Search, req)
	hits, err := s.catalog.Search(r.Context(), req.Query, opts)
	if err != nil {
		writeError(w, catalogErrorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rpc.SearchResponse{
		Version: s.catalog.Version(),
		Results: launcher.Results(hits, opts.Limit),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Reload(r.Context()); err != nil {
		writeError(w, catalogErrorStatus(err), err.Error())
		return
	}
	st := s.catalog.Status()
	writeJSON(w, http.StatusOK, rpc.ReloadResponse{
		Version:    st.Version,
		Active:     st.Active,
		Deprecated: st.Deprecated,
	})
}

func (s *Server) handleGetDoc(w http.ResponseWriter, r *http.Request) {
	var req rpc.GetDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing name")
		return
	}

	rec, err := s.catalog.Lookup(r.Context(), req.Name)
	if err != nil {
		writeError(w, catalogErrorStatus(err), err.Error())
		return
	}

	text, err := md.RenderRecord(rec, s.catalog.Version())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rpc.GetDocResponse{Markdown: text})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.catalog.Status()
	resp := rpc.StatusResponse{
		Loaded:     st.Loaded,
		Building:   st.Building,
		Version:    st.Version,
		Active:     st.Active,
		Deprecated: st.Deprecated,
		DataTypes:  st.DataTypes,
	}
	if st.Loaded {
		builtAt := st.BuiltAt
		resp.BuiltAt = &builtAt
	}
	if st.LastError != nil {
		resp.LastError = st.LastError.Error()
	}

	if s.db != nil {
		builds, err := s.db.ListBuilds(5)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, b := range builds {
			resp.History = append(resp.History, buildInfo(&b))
		}

		last, err := s.db.LastSuccessfulBuild()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if last != nil {
			info := buildInfo(last)
			resp.LastSuccess = &info
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func buildInfo(b *db.Build) rpc.BuildInfo {
	return rpc.BuildInfo{
		ID:         b.ID,
		Version:    b.Version,
		Active:     b.Active,
		Deprecated: b.Deprecated,
		Started:    b.StartedAt,
		Finished:   b.FinishedAt,
		Error:      b.Error,
	}
}

func (s *Server) getCachedVersion() (string, bool) {
	s.versionCacheMu.RLock()
	defer s.versionCacheMu.RUnlock()
	e := s.versionCache
	if e.version == "" || time.Now().After(e.expiry) {
		return "", false
	}
	return e.version, true
}

func (s *Server) setCachedVersion(version string) {
	s.versionCacheMu.Lock()
	defer s.versionCacheMu.Unlock()
	s.versionCache = versionCacheEntry{version: version, expiry: time.Now().Add(versionCacheTTL)}
}

func (s *Server) clearVersionCache() {
	s.versionCacheMu.Lock()
	defer s.versionCacheMu.Unlock()
	s.versionCache = versionCacheEntry{}
}

// currentVersion asks upstream for the live client version. Concurrent
// callers share one request, and answers are reused for a minute.
func (s *Server) currentVersion(ctx context.Context) (string, error) {
	if v, ok := s.getCachedVersion(); ok {
		return v, nil
	}
	ch := s.versionGroup.DoChan("current", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		v, err := s.api.CurrentVersion(fetchCtx)
		if err != nil {
			return "", err
		}
		s.setCachedVersion(v)
		return v, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	loaded := s.catalog.Version()
	current, err := s.currentVersion(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rpc.VersionResponse{
		Loaded:  loaded,
		Current: current,
		Stale:   loaded != "" && loaded != current,
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	var req rpc.ClearCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.clearVersionCache()
	removed, err := s.dumps.Clear()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Printf("daemon: cleared %d cached dumps", removed)
	resp := rpc.ClearCacheResponse{Removed: removed}

	if req.History && s.db != nil {
		n, err := s.db.ClearBuilds()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		log.Printf("daemon: cleared %d build records", n)
		resp.BuildsRemoved = n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
		os.Exit(0)
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
