package graph

import (
	"context"
	_ "embed"
	"sync"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vvakame/bookshelf/internal/execute"
	igraphql "github.com/vvakame/bookshelf/internal/graphql"
	"github.com/vvakame/bookshelf/internal/graph/model"
)

//go:embed schema.graphqls
var sourceSchema string

var _ graphql.ExecutableSchema = (*executableSchema)(nil)

type ResolverRoot interface {
	Query() QueryResolver
}

type QueryResolver interface {
	Books(ctx context.Context) ([]*model.Book, error)
	BookByID(ctx context.Context, bookID int) ([]*model.Book, error)
	BookByName(ctx context.Context, bookName string) (*model.Book, error)
	BookByFormat(ctx context.Context, bookFormat model.Format) ([]*model.Book, error)
}

type Config struct {
	Resolvers ResolverRoot
}

var (
	parsedSchema     *ast.Schema
	parsedSchemaErr  error
	parsedSchemaOnce sync.Once
)

// LoadSchema parses and validates the embedded SDL together with the built-in prelude.
func LoadSchema() (*ast.Schema, error) {
	parsedSchemaOnce.Do(func() {
		schema, gErr := gqlparser.LoadSchema(&ast.Source{
			Name:    "schema.graphqls",
			Input:   sourceSchema,
			BuiltIn: false,
		})
		if gErr != nil {
			parsedSchemaErr = gErr
			return
		}
		parsedSchema = schema
	})

	return parsedSchema, parsedSchemaErr
}

// SDL returns the schema source text.
func SDL() string {
	return sourceSchema
}

type executableSchema struct {
	schema    *ast.Schema
	resolvers execute.Resolvers
}

func NewExecutableSchema(cfg Config) (graphql.ExecutableSchema, error) {
	schema, err := LoadSchema()
	if err != nil {
		return nil, err
	}

	return &executableSchema{
		schema:    schema,
		resolvers: bindResolvers(cfg.Resolvers),
	}, nil
}

func (es *executableSchema) Schema() *ast.Schema {
	return es.schema
}

func (es *executableSchema) Complexity(typeName, fieldName string, childComplexity int, args map[string]interface{}) (int, bool) {
	switch typeName + "." + fieldName {
	case "Query.books", "Query.bookById", "Query.bookByFormat":
		// at most every book in the catalog.
		return 1 + 3*childComplexity, true
	}
	return 0, false
}

func (es *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	oc := graphql.GetOperationContext(ctx)

	switch oc.Operation.Operation {
	case ast.Query:
		first := true
		return func(ctx context.Context) *graphql.Response {
			if !first {
				return nil
			}
			first = false

			return execute.Execute(ctx, &execute.ExecutionArgs{
				Schema:    es.schema,
				Resolvers: es.resolvers,
			})
		}

	default:
		return graphql.OneShot(graphql.ErrorResponse(ctx, "unsupported GraphQL operation: %s", oc.Operation.Operation))
	}
}

// bindResolvers adapts the typed resolvers to the executor, unmarshaling arguments
// into their Go types first.
func bindResolvers(root ResolverRoot) execute.Resolvers {
	query := root.Query()

	return execute.Resolvers{
		"Query": {
			"books": func(ctx context.Context, source interface{}, args map[string]interface{}) (interface{}, error) {
				return query.Books(ctx)
			},
			"bookById": func(ctx context.Context, source interface{}, args map[string]interface{}) (interface{}, error) {
				bookID, err := igraphql.CoerceInt(args["bookID"])
				if err != nil {
					return nil, argumentError(ctx, "bookID", err)
				}
				return query.BookByID(ctx, bookID)
			},
			"bookByName": func(ctx context.Context, source interface{}, args map[string]interface{}) (interface{}, error) {
				bookName, err := graphql.UnmarshalString(args["bookName"])
				if err != nil {
					return nil, argumentError(ctx, "bookName", err)
				}
				return query.BookByName(ctx, bookName)
			},
			"bookByFormat": func(ctx context.Context, source interface{}, args map[string]interface{}) (interface{}, error) {
				var bookFormat model.Format
				if err := bookFormat.UnmarshalGQL(args["bookFormat"]); err != nil {
					return nil, argumentError(ctx, "bookFormat", err)
				}
				return query.BookByFormat(ctx, bookFormat)
			},
		},
	}
}

func argumentError(ctx context.Context, name string, err error) *gqlerror.Error {
	fc := graphql.GetFieldContext(ctx)
	gErr := gqlerror.WrapPath(fc.Path(), err)
	gErr.Message = "invalid argument " + name + ": " + err.Error()
	return gErr
}
