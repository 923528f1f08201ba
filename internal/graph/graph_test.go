package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/99designs/gqlgen/graphql"
	testlogr "github.com/go-logr/logr/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvakame/bookshelf/internal/gqlfun"
	"github.com/vvakame/bookshelf/internal/log"
	"github.com/vvakame/bookshelf/internal/testutils"
)

func newTestExecutableSchema(t *testing.T) graphql.ExecutableSchema {
	t.Helper()

	es, err := NewExecutableSchema(Config{Resolvers: NewResolver()})
	require.NoError(t, err)
	return es
}

func TestQueries(t *testing.T) {
	const testFileDir = "./_testdata/assets"
	const expectFileDir = "./_testdata/expected"

	es := newTestExecutableSchema(t)

	files, err := os.ReadDir(testFileDir)
	require.NoError(t, err)

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".graphql") {
			continue
		}
		file := file

		t.Run(file.Name(), func(t *testing.T) {
			ctx := context.Background()
			ctx = log.WithLogger(ctx, testlogr.NewTestLogger(t))

			b, err := os.ReadFile(path.Join(testFileDir, file.Name()))
			require.NoError(t, err)
			query := string(b)

			variables := map[string]interface{}{}
			if variablesFile := testutils.FindOptionString(t, "variables", query); variablesFile != "" {
				vb, err := os.ReadFile(path.Join(testFileDir, variablesFile))
				require.NoError(t, err)

				// gqlgen's transports decode numbers as json.Number.
				dec := json.NewDecoder(bytes.NewReader(vb))
				dec.UseNumber()
				require.NoError(t, dec.Decode(&variables))
			}

			resp := gqlfun.Execute(ctx, es, &gqlfun.Request{
				Query:         query,
				OperationName:        testutils.FindOptionString(t, "operationName", query),
				Variables:            variables,
				DisableIntrospection: testutils.FindOptionBool(t, "disableIntrospection", query),
			})

			actual, err := json.MarshalIndent(resp, "", "  ")
			require.NoError(t, err)

			fileName := strings.TrimSuffix(file.Name(), ".graphql")
			testutils.CheckGoldenFile(t, actual, path.Join(expectFileDir, fileName+".response.json"))
		})
	}
}

func TestQueries_validation(t *testing.T) {
	es := newTestExecutableSchema(t)
	ctx := log.WithLogger(context.Background(), testlogr.NewTestLogger(t))

	tests := []struct {
		name    string
		query   string
		message string
	}{
		{
			name:    "unknown enum value",
			query:   `{ bookByFormat(bookFormat: EBOOK) { title } }`,
			message: "EBOOK",
		},
		{
			name:    "wrong argument type",
			query:   `{ bookById(bookID: "one") { title } }`,
			message: "Int",
		},
		{
			name:    "missing required argument",
			query:   `{ bookByName { title } }`,
			message: "bookName",
		},
		{
			name:    "unknown field",
			query:   `{ books { isbn } }`,
			message: "isbn",
		},
		{
			name:    "mutation is not declared",
			query:   `mutation { books { id } }`,
			message: "mutation",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := gqlfun.Execute(ctx, es, &gqlfun.Request{Query: tt.query})

			assert.Nil(t, resp.Data)
			require.NotEmpty(t, resp.Errors)
			assert.Contains(t, resp.Errors.Error(), tt.message)
		})
	}
}

func TestQueries_intOutOfRange(t *testing.T) {
	es := newTestExecutableSchema(t)
	ctx := log.WithLogger(context.Background(), testlogr.NewTestLogger(t))

	resp := gqlfun.Execute(ctx, es, &gqlfun.Request{
		Query:     `query ($id: Int!) { bookById(bookID: $id) { id } }`,
		Variables: map[string]interface{}{"id": json.Number("99999999999")},
	})

	require.NotEmpty(t, resp.Errors)
	assert.Contains(t, resp.Errors.Error(), "Int")
	assert.NotContains(t, string(resp.Data), "bookById")
}

func TestQueries_idempotent(t *testing.T) {
	es := newTestExecutableSchema(t)
	ctx := log.WithLogger(context.Background(), testlogr.NewTestLogger(t))

	req := &gqlfun.Request{Query: `{ books { id title author format } bookByFormat(bookFormat: HARDCOVER) { id } }`}
	first := gqlfun.Execute(ctx, es, req)
	require.Empty(t, first.Errors)

	for i := 0; i < 10; i++ {
		resp := gqlfun.Execute(ctx, es, req)
		assert.Empty(t, resp.Errors)
		assert.JSONEq(t, string(first.Data), string(resp.Data))
	}
}

func TestLoadSchema(t *testing.T) {
	schema, err := LoadSchema()
	require.NoError(t, err)

	format := schema.Types["Format"]
	require.NotNil(t, format)
	var values []string
	for _, v := range format.EnumValues {
		values = append(values, v.Name)
	}
	assert.Equal(t, []string{"KINDLE", "AUDIOBOOK", "PAPERBACK", "HARDCOVER"}, values)

	book := schema.Types["Book"]
	require.NotNil(t, book)
	for name, typ := range map[string]string{"id": "Int!", "title": "String!", "author": "String!", "format": "Format!"} {
		field := book.Fields.ForName(name)
		require.NotNil(t, field, name)
		assert.Equal(t, typ, field.Type.String(), name)
	}

	for name, typ := range map[string]string{
		"books":        "[Book!]!",
		"bookById":     "[Book!]!",
		"bookByName":   "Book!",
		"bookByFormat": "[Book!]!",
	} {
		field := schema.Query.Fields.ForName(name)
		require.NotNil(t, field, name)
		assert.Equal(t, typ, field.Type.String(), name)
	}
	assert.Nil(t, schema.Mutation)
	assert.Nil(t, schema.Subscription)

	assert.Contains(t, SDL(), "bookByName(bookName: String!): Book!")
}

func TestComplexity(t *testing.T) {
	es := newTestExecutableSchema(t)

	c, ok := es.Complexity("Query", "books", 4, nil)
	assert.True(t, ok)
	assert.Equal(t, 13, c)

	_, ok = es.Complexity("Book", "title", 0, nil)
	assert.False(t, ok)
}
