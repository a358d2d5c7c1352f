package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jcdickinson/rbxdocs/internal/config"
	"github.com/jcdickinson/rbxdocs/internal/db"
	"github.com/jcdickinson/rbxdocs/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const upstreamDump = `{
  "Classes": [
    {"Name": "Part", "Tags": [], "Members": [
      {"Name": "Anchored", "MemberType": "Property", "Tags": []},
      {"Name": "Resize", "MemberType": "Function", "Tags": ["Deprecated"]}
    ]}
  ],
  "Enums": [
    {"Name": "Material", "Tags": [], "Items": [{"Name": "Wood", "Value": 512, "Tags": []}]}
  ]
}`

const upstreamDocs = `{
  "@roblox/globaltype/Part": {"documentation": "A physical brick.", "learn_more_link": "https://docs.test/Part"},
  "@roblox/globaltype/Part.Anchored": {"documentation": "Anchors the [part](/docs/Part).", "learn_more_link": "https://docs.test/Part.Anchored"},
  "@roblox/globaltype/Part.Resize": {"documentation": "Resizes.", "learn_more_link": "https://docs.test/Part.Resize"},
  "@roblox/global/Material": {"documentation": "Materials.", "learn_more_link": "https://docs.test/Material"},
  "@roblox/enum/Material.Wood": {"documentation": "Wood.", "learn_more_link": "https://docs.test/Material.Wood"}
}`

type fixture struct {
	server       *Server
	http         *httptest.Server
	versionHits  atomic.Int32
	upstreamDown atomic.Bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	f := &fixture{}
	mux := http.NewServeMux()
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		f.versionHits.Add(1)
		if f.upstreamDown.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"clientVersionUpload": "version-abc"}`))
	})
	mux.HandleFunc("/dumps/version-abc-API-Dump.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(upstreamDump))
	})
	mux.HandleFunc("/docs.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(upstreamDocs))
	})
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	cfg := &config.Config{
		Search: config.SearchConfig{ScoreThreshold: 30, MaxResults: 25},
		Sources: config.SourcesConfig{
			VersionURL:      upstream.URL + "/version",
			DumpURLTemplate: upstream.URL + "/dumps/%s-API-Dump.json",
			DocsURL:         upstream.URL + "/docs.json",
		},
		Fetch: config.FetchConfig{UserAgent: "rbxdocs-test"},
	}

	database, err := db.New(filepath.Join(t.TempDir(), "builds.db"))
	require.NoError(t, err)

	f.server = NewServer(cfg, database, filepath.Join(t.TempDir(), "daemon.sock"))
	f.http = httptest.NewServer(f.server.Handler())
	t.Cleanup(func() {
		f.http.Close()
		f.server.Stop(context.Background())
	})
	return f
}

func (f *fixture) call(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.http.URL+path, reader)
	require.NoError(t, err)
	resp, err := f.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f *fixture) reload(t *testing.T) {
	t.Helper()
	var resp rpc.ReloadResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/reload", nil, &resp))
	require.Equal(t, "version-abc", resp.Version)
}

func TestSearch_BeforeLoad(t *testing.T) {
	f := newFixture(t)
	var resp map[string]string
	status := f.call(t, http.MethodPost, "/search", rpc.SearchRequest{Query: "part"}, &resp)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, resp["error"], "no record set loaded")
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	var resp rpc.SearchResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/search", rpc.SearchRequest{Query: "anchored"}, &resp))
	assert.Equal(t, "version-abc", resp.Version)
	require.NotEmpty(t, resp.Results)

	top := resp.Results[0]
	assert.Equal(t, "Part.Anchored", top.Title)
	assert.Equal(t, "↪ (Score: 100%)", top.Subtitle)
	assert.Equal(t, "https://docs.test/Part.Anchored", top.URL)
	assert.Equal(t, top.URL, top.CopyText)
	assert.Equal(t, 25, top.Rank)
	for _, r := range resp.Results {
		assert.NotEqual(t, "Part.Resize", r.Title)
	}
}

func TestSearch_RequestOverrides(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	show := true
	threshold := 90
	var resp rpc.SearchResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/search", rpc.SearchRequest{
		Query:          "resize",
		MaxResults:     5,
		ScoreThreshold: &threshold,
		ShowDeprecated: &show,
	}, &resp))

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Part.Resize", resp.Results[0].Title)
	assert.Equal(t, "↪ [Deprecated] ⋮ (Score: 100%)", resp.Results[0].Subtitle)
	assert.Equal(t, 5, resp.Results[0].Rank)
}

func TestSearch_ConfigSnapshotSwap(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	cfg := *f.server.Config()
	cfg.Search.MaxResults = 1
	cfg.Search.ScoreThreshold = 0
	f.server.SetConfig(&cfg)

	var resp rpc.SearchResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/search", rpc.SearchRequest{Query: "part"}, &resp))
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, 1, resp.Results[0].Rank)
}

func TestSearch_EmptyQuery(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	var resp rpc.SearchResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/search", rpc.SearchRequest{Query: "  "}, &resp))
	assert.Empty(t, resp.Results)
}

func TestSearch_BadRequest(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest(http.MethodPost, f.http.URL+"/search", strings.NewReader("{"))
	require.NoError(t, err)
	resp, err := f.http.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetDoc(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	var resp rpc.GetDocResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/get-doc", rpc.GetDocRequest{Name: "part.anchored"}, &resp))
	assert.Contains(t, resp.Markdown, "# Part.Anchored")
	assert.Contains(t, resp.Markdown, "(https://create.roblox.com/docs/Part)")
	assert.Contains(t, resp.Markdown, "version: version-abc")

	assert.Equal(t, http.StatusNotFound, f.call(t, http.MethodPost, "/get-doc", rpc.GetDocRequest{Name: "Part.Nope"}, nil))
	assert.Equal(t, http.StatusBadRequest, f.call(t, http.MethodPost, "/get-doc", rpc.GetDocRequest{}, nil))
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	var before rpc.StatusResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/status", nil, &before))
	assert.False(t, before.Loaded)
	assert.Nil(t, before.BuiltAt)
	assert.Nil(t, before.LastSuccess)

	f.reload(t)

	var after rpc.StatusResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/status", nil, &after))
	assert.True(t, after.Loaded)
	assert.Equal(t, "version-abc", after.Version)
	assert.Equal(t, 4, after.Active)
	assert.Equal(t, 1, after.Deprecated)
	assert.NotNil(t, after.BuiltAt)
	require.Len(t, after.History, 1)
	assert.Equal(t, "version-abc", after.History[0].Version)
	assert.Empty(t, after.History[0].Error)
	require.NotNil(t, after.LastSuccess)
	assert.Equal(t, after.History[0].ID, after.LastSuccess.ID)
}

func TestReload_FailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	f.upstreamDown.Store(true)
	assert.Equal(t, http.StatusInternalServerError, f.call(t, http.MethodPost, "/reload", nil, nil))

	var st rpc.StatusResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/status", nil, &st))
	assert.True(t, st.Loaded)
	assert.NotEmpty(t, st.LastError)
	require.Len(t, st.History, 2)
	assert.NotEmpty(t, st.History[0].Error)
	require.NotNil(t, st.LastSuccess, "the earlier successful build is still reported")
	assert.Equal(t, st.History[1].ID, st.LastSuccess.ID)
	assert.Empty(t, st.LastSuccess.Error)

	var resp rpc.SearchResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/search", rpc.SearchRequest{Query: "anchored"}, &resp))
	assert.NotEmpty(t, resp.Results)
}

func TestVersion(t *testing.T) {
	f := newFixture(t)
	f.reload(t)
	hits := f.versionHits.Load()

	for range 3 {
		var resp rpc.VersionResponse
		require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/version", nil, &resp))
		assert.Equal(t, "version-abc", resp.Loaded)
		assert.Equal(t, "version-abc", resp.Current)
		assert.False(t, resp.Stale)
	}
	assert.Equal(t, hits+1, f.versionHits.Load())
}

func TestVersion_UpstreamDown(t *testing.T) {
	f := newFixture(t)
	f.upstreamDown.Store(true)
	assert.Equal(t, http.StatusBadGateway, f.call(t, http.MethodGet, "/version", nil, nil))
}

func TestClearCache(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	var resp rpc.ClearCacheResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/clear-cache", nil, &resp))
	assert.Equal(t, 1, resp.Removed)

	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/clear-cache", nil, &resp))
	assert.Equal(t, 0, resp.Removed)

	var st rpc.StatusResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/status", nil, &st))
	assert.Len(t, st.History, 1, "dump cache clearing keeps build history")
}

func TestClearCache_History(t *testing.T) {
	f := newFixture(t)
	f.reload(t)

	var resp rpc.ClearCacheResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/clear-cache", rpc.ClearCacheRequest{History: true}, &resp))
	assert.Equal(t, 1, resp.Removed)
	assert.EqualValues(t, 1, resp.BuildsRemoved)

	var st rpc.StatusResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/status", nil, &st))
	assert.Empty(t, st.History)
	assert.Nil(t, st.LastSuccess)
}

func TestClearCache_BadRequest(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest(http.MethodPost, f.http.URL+"/clear-cache", strings.NewReader("{"))
	require.NoError(t, err)
	resp, err := f.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClient_OverUnixSocket(t *testing.T) {
	f := newFixture(t)

	sock := filepath.Join(t.TempDir(), "d.sock")
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)
	srv := &http.Server{Handler: f.server.Handler()}
	go srv.Serve(l)
	t.Cleanup(func() { srv.Close() })

	c := NewClient(sock)
	assert.True(t, c.IsAvailable())
	ctx := context.Background()

	_, err = c.Search(ctx, rpc.SearchRequest{Query: "part"})
	var re *ResponseError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusServiceUnavailable, re.Status)

	reloaded, err := c.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, "version-abc", reloaded.Version)

	res, err := c.Search(ctx, rpc.SearchRequest{Query: "material"})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Results), 2)
	assert.Equal(t, "Enum.Material", res.Results[0].Title)
	assert.Equal(t, "Material.Wood", res.Results[1].Title)

	doc, err := c.GetDoc(ctx, rpc.GetDocRequest{Name: "Material.Wood"})
	require.NoError(t, err)
	assert.Contains(t, doc.Markdown, "# Material.Wood")

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Loaded)

	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "version-abc", v.Current)

	cleared, err := c.ClearCache(ctx, rpc.ClearCacheRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, cleared.Removed)
}

func TestClient_Unavailable(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	assert.False(t, c.IsAvailable())
}

func TestStart_ListenFailureReleasesLock(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	// Longer than the sockaddr_un path limit, so listening fails after the lock is taken.
	socketPath := filepath.Join(t.TempDir(), strings.Repeat("s", 120)+".sock")
	srv := NewServer(&config.Config{}, nil, socketPath)

	err := srv.Start(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyRunning)

	lock, err := AcquireLock(LockPath(socketPath))
	require.NoError(t, err, "a failed start must not keep the instance lock")
	assert.NoError(t, lock.Release())
	assert.NoError(t, srv.Stop(context.Background()))
}
