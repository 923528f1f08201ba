package gqlfun

import (
	"context"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// Request is one GraphQL request processed without the HTTP handler.
type Request struct {
	Query         string
	OperationName string
	Variables     map[string]interface{}
	// DisableIntrospection rejects __schema and __type.
	DisableIntrospection bool
}

// CreateOperationContext parses, validates and coerces variables the same way
// gqlgen's executor does before handing the request to an ExecutableSchema.
func CreateOperationContext(ctx context.Context, schema *ast.Schema, req *Request) (*graphql.OperationContext, gqlerror.List) {
	queryDoc, err := parser.ParseQuery(&ast.Source{
		Input:   req.Query,
		BuiltIn: false,
	})
	if err != nil {
		return nil, gqlerror.List{gqlerror.WrapIfUnwrapped(err)}
	}
	gErrs := validator.Validate(schema, queryDoc)
	if len(gErrs) != 0 {
		return nil, gErrs
	}

	operation := queryDoc.Operations.ForName(req.OperationName)
	if operation == nil {
		if req.OperationName != "" {
			return nil, gqlerror.List{gqlerror.Errorf(`unknown operation named "%s"`, req.OperationName)}
		}
		return nil, gqlerror.List{gqlerror.Errorf("must provide an operation")}
	}

	variables, err := validator.VariableValues(schema, operation, req.Variables)
	if err != nil {
		return nil, gqlerror.List{gqlerror.WrapIfUnwrapped(err)}
	}

	oc := &graphql.OperationContext{
		RawQuery:             req.Query,
		Variables:            variables,
		OperationName:        req.OperationName,
		Doc:                  queryDoc,
		Operation:            operation,
		DisableIntrospection: req.DisableIntrospection,
		RecoverFunc:          graphql.DefaultRecover,
		ResolverMiddleware: func(ctx context.Context, next graphql.Resolver) (res interface{}, err error) {
			return next(ctx)
		},
		RootResolverMiddleware: func(ctx context.Context, next graphql.RootResolver) graphql.Marshaler {
			return next(ctx)
		},
		Stats: graphql.Stats{},
	}

	return oc, nil
}

// Execute runs req against es and returns the response including data and field errors.
func Execute(ctx context.Context, es graphql.ExecutableSchema, req *Request) *graphql.Response {
	oc, gErrs := CreateOperationContext(ctx, es.Schema(), req)
	if len(gErrs) != 0 {
		return &graphql.Response{Errors: gErrs}
	}
	ctx = graphql.WithOperationContext(ctx, oc)
	ctx = graphql.WithResponseContext(ctx, graphql.DefaultErrorPresenter, graphql.DefaultRecover)

	rh := es.Exec(ctx)
	resp := rh(ctx)
	if resp == nil {
		resp = &graphql.Response{}
	}
	resp.Errors = append(resp.Errors, graphql.GetErrors(ctx)...)

	return resp
}
