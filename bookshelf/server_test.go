package bookshelf

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	testlogr "github.com/go-logr/logr/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvakame/bookshelf/internal/config"
	"github.com/vvakame/bookshelf/internal/gqlfun"
	"github.com/vvakame/bookshelf/internal/log"
)

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string        `json:"message"`
		Path    []interface{} `json:"path"`
	} `json:"errors"`
}

func testContext(t *testing.T) context.Context {
	return log.WithLogger(context.Background(), testlogr.NewTestLogger(t))
}

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	ctx := testContext(t)
	srv, err := NewServer(ctx, cfg)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler(ctx))
	t.Cleanup(ts.Close)
	return ts
}

func postQuery(t *testing.T, url, query string, variables map[string]interface{}) *graphqlResponse {
	t.Helper()

	body, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	require.NoError(t, err)

	resp, err := http.Post(url+"/query", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	gqlResp := &graphqlResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(gqlResp))
	return gqlResp
}

func TestServer_queries(t *testing.T) {
	ts := newTestServer(t, config.Default())

	t.Run("books", func(t *testing.T) {
		resp := postQuery(t, ts.URL, `{ books { title } }`, nil)
		assert.Empty(t, resp.Errors)
		assert.JSONEq(t, `{"books": [{"title": "The Awakening"}, {"title": "City of Glass"}, {"title": "The Eagle Has Landed"}]}`, string(resp.Data))
	})

	t.Run("bookById with variables", func(t *testing.T) {
		resp := postQuery(t, ts.URL, `query ($id: Int!) { bookById(bookID: $id) { id author } }`, map[string]interface{}{"id": 1})
		assert.Empty(t, resp.Errors)
		assert.JSONEq(t, `{"bookById": [{"id": 1, "author": "Kate Chopin"}]}`, string(resp.Data))
	})

	t.Run("bookByFormat with variables", func(t *testing.T) {
		resp := postQuery(t, ts.URL, `query ($f: Format!) { bookByFormat(bookFormat: $f) { title } }`, map[string]interface{}{"f": "KINDLE"})
		assert.Empty(t, resp.Errors)
		assert.JSONEq(t, `{"bookByFormat": []}`, string(resp.Data))
	})

	t.Run("bookByName without match", func(t *testing.T) {
		resp := postQuery(t, ts.URL, `{ bookByName(bookName: "Nonexistent Title") { title } }`, nil)
		assert.Equal(t, "null", string(resp.Data))
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "cannot return null for non-nullable field Query.bookByName", resp.Errors[0].Message)
		assert.Equal(t, []interface{}{"bookByName"}, resp.Errors[0].Path)
	})

	t.Run("introspection", func(t *testing.T) {
		resp := postQuery(t, ts.URL, `{ __schema { queryType { name } } }`, nil)
		assert.Empty(t, resp.Errors)
		assert.JSONEq(t, `{"__schema": {"queryType": {"name": "Query"}}}`, string(resp.Data))
	})
}

func TestServer_endpoints(t *testing.T) {
	ts := newTestServer(t, config.Default())

	postQuery(t, ts.URL, `{ books { id } }`, nil)

	tests := []struct {
		path        string
		contentType string
		contains    string
	}{
		{"/health", "application/json", `{"status":"ok"}`},
		{"/metrics", "text/plain", `bookshelf_graphql_operations_total{operation="anonymous",status="ok"} 1`},
		{"/", "text/html", "bookshelf"},
	}
	for _, tt := range tests {
		resp, err := http.Get(ts.URL + tt.path)
		require.NoError(t, err, tt.path)
		b, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err, tt.path)

		assert.Equal(t, http.StatusOK, resp.StatusCode, tt.path)
		assert.Contains(t, resp.Header.Get("Content-Type"), tt.contentType, tt.path)
		assert.Contains(t, string(b), tt.contains, tt.path)
	}
}

func TestServer_config(t *testing.T) {
	t.Run("introspection disabled", func(t *testing.T) {
		cfg := config.Default()
		cfg.Introspection = false
		ts := newTestServer(t, cfg)

		resp := postQuery(t, ts.URL, `{ __schema { queryType { name } } }`, nil)
		require.NotEmpty(t, resp.Errors)
		assert.Equal(t, "introspection disabled", resp.Errors[0].Message)
	})

	t.Run("complexity limit", func(t *testing.T) {
		cfg := config.Default()
		cfg.ComplexityLimit = 2
		ts := newTestServer(t, cfg)

		resp := postQuery(t, ts.URL, `{ books { id title } }`, nil)
		require.NotEmpty(t, resp.Errors)
		assert.Contains(t, resp.Errors[0].Message, "complexity")

		resp = postQuery(t, ts.URL, `{ bookByName(bookName: "City of Glass") { id } }`, nil)
		assert.Empty(t, resp.Errors)
	})

	t.Run("playground disabled", func(t *testing.T) {
		cfg := config.Default()
		cfg.Playground = false
		ts := newTestServer(t, cfg)

		resp, err := http.Get(ts.URL + "/")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := config.Default()
		cfg.QueryPath = "query"
		_, err := NewServer(testContext(t), cfg)
		assert.Error(t, err)
	})
}

func TestServer_ExecutableSchema(t *testing.T) {
	ctx := testContext(t)
	srv, err := NewServer(ctx, config.Default())
	require.NoError(t, err)

	resp := gqlfun.Execute(ctx, srv.ExecutableSchema(), &gqlfun.Request{
		Query: `{ bookByName(bookName: "City of Glass") { author format } }`,
	})
	assert.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"bookByName": {"author": "Paul Auster", "format": "HARDCOVER"}}`, string(resp.Data))
}

func TestServer_Serve(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()

	srv, err := NewServer(ctx, config.Default())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, ln)
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	assert.Equal(t, "http://localhost:"+strconv.Itoa(port)+"/", srv.URL(ln.Addr()))

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
