package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jcdickinson/rbxdocs/internal/api"
	"github.com/jcdickinson/rbxdocs/internal/icons"
	"github.com/jcdickinson/rbxdocs/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineDump = `{
  "Classes": [
    {"Name": "Part", "Tags": [], "Members": [
      {"Name": "Anchored", "MemberType": "Property", "Tags": []},
      {"Name": "Resize", "MemberType": "Function", "Tags": ["Deprecated"],
       "Parameters": [{"Name": "normalId", "Type": {"Name": "NormalId", "Category": "Enum"}}]}
    ]}
  ],
  "Enums": [
    {"Name": "Material", "Tags": [], "Items": [{"Name": "Wood", "Value": 512, "Tags": []}]}
  ]
}`

const pipelineDocs = `{
  "@roblox/globaltype/Part": {"documentation": "A physical brick.", "learn_more_link": "https://docs.test/Part"},
  "@roblox/globaltype/Part.Anchored": {"documentation": "Anchors the part.", "learn_more_link": "https://docs.test/Part.Anchored"},
  "@roblox/globaltype/Part.Resize": {"documentation": "Resizes.", "learn_more_link": "https://docs.test/Part.Resize"},
  "@roblox/global/Material": {"documentation": "Materials.", "learn_more_link": "https://docs.test/Material"},
  "@roblox/enum/Material.Wood": {"documentation": "Wood.", "learn_more_link": "https://docs.test/Material.Wood"},
  "@roblox/global/NormalId": {"documentation": "Faces.", "learn_more_link": "https://docs.test/NormalId"}
}`

type upstream struct {
	server    *httptest.Server
	dumpHits  atomic.Int32
	docsFails atomic.Bool
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	mux := http.NewServeMux()
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"clientVersionUpload": "version-abc"}`))
	})
	mux.HandleFunc("/dumps/version-abc-API-Dump.json", func(w http.ResponseWriter, r *http.Request) {
		u.dumpHits.Add(1)
		w.Write([]byte(pipelineDump))
	})
	mux.HandleFunc("/docs.json", func(w http.ResponseWriter, r *http.Request) {
		if u.docsFails.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(pipelineDocs))
	})
	mux.HandleFunc("/icons", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name": "Part.png"}, {"name": "Enum.png"}, {"name": "EnumMember.png"}]`))
	})
	u.server = httptest.NewServer(mux)
	t.Cleanup(u.server.Close)
	return u
}

func (u *upstream) client() *api.Client {
	return api.NewClient(u.server.Client(), "test-agent", api.Endpoints{
		VersionURL:      u.server.URL + "/version",
		DumpURLTemplate: u.server.URL + "/dumps/%s-API-Dump.json",
		DocsURL:         u.server.URL + "/docs.json",
		IconListURL:     u.server.URL + "/icons",
	})
}

func TestPipeline_Build(t *testing.T) {
	u := newUpstream(t)
	client := u.client()
	p := &Pipeline{
		API:   client,
		Icons: icons.Remote{Lister: client, URLTemplate: "https://icons.test/%s.png"},
		Cache: api.NewDumpCache(t.TempDir()),
	}

	set, err := p.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "version-abc", set.Version)

	names := make(map[string]records.Record)
	for _, r := range append(append([]records.Record{}, set.Active...), set.Deprecated...) {
		names[r.FullName()] = r
	}
	assert.Contains(t, names, "Part")
	assert.Contains(t, names, "Part.Anchored")
	assert.Contains(t, names, "Enum.Material")
	assert.Contains(t, names, "Material.Wood")
	assert.Contains(t, names, "NormalId")
	assert.Len(t, set.Deprecated, 1)

	assert.Equal(t, "https://icons.test/Part.png", names["Part.Anchored"].Icon)
	assert.Equal(t, "https://icons.test/Enum.png", names["Enum.Material"].Icon)
	assert.Equal(t, "https://icons.test/EnumMember.png", names["Material.Wood"].Icon)
	assert.Equal(t, "https://icons.test/Placeholder.png", names["NormalId"].Icon)
}

func TestPipeline_DumpCacheFirst(t *testing.T) {
	u := newUpstream(t)
	p := &Pipeline{API: u.client(), Cache: api.NewDumpCache(t.TempDir())}

	_, err := p.Build(context.Background())
	require.NoError(t, err)
	_, err = p.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), u.dumpHits.Load())
	assert.True(t, p.Cache.Has("version-abc"))
}

func TestPipeline_CorruptCacheRefetches(t *testing.T) {
	u := newUpstream(t)
	cache := api.NewDumpCache(t.TempDir())
	require.NoError(t, cache.Save("version-abc", []byte("not json")))

	p := &Pipeline{API: u.client(), Cache: cache}
	set, err := p.Build(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, set.Len())
	assert.Equal(t, int32(1), u.dumpHits.Load())
}

func TestPipeline_FetchFailureFailsBuild(t *testing.T) {
	u := newUpstream(t)
	u.docsFails.Store(true)
	p := &Pipeline{API: u.client()}

	_, err := p.Build(context.Background())
	require.Error(t, err)
	var se *api.StatusError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
}

func TestPipeline_WithCatalog(t *testing.T) {
	u := newUpstream(t)
	c := New(&Pipeline{API: u.client()})
	defer c.Close()

	require.NoError(t, c.Reload(context.Background()))
	r, err := c.Lookup(context.Background(), "material.wood")
	require.NoError(t, err)
	assert.Equal(t, "https://docs.test/Material.Wood", r.URL)

	u.docsFails.Store(true)
	assert.Error(t, c.Reload(context.Background()))
	assert.Equal(t, "version-abc", c.Version())
}
