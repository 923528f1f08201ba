package execute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/introspection"
	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	igraphql "github.com/vvakame/bookshelf/internal/graphql"
	"github.com/vvakame/bookshelf/internal/log"
	"github.com/vvakame/bookshelf/internal/utils"
)

// Executes a query document against a schema whose fields are backed by a resolver map,
// in the manner of graphql-js execute.
// The OperationContext (document, operation, coerced variables) must already be in ctx,
// and so must a response context, because field errors are reported with graphql.AddError.

type ExecutionContext struct {
	Schema         *ast.Schema
	RootValue      interface{}
	Operation      *ast.OperationDefinition
	VariableValues map[string]interface{}
	Resolvers      Resolvers
	FieldResolver  FieldResolver
	TypeResolver   TypeResolver

	implementorsMu    sync.Mutex
	implementorsCache map[string][]string
}

type ExecutionArgs struct {
	Schema        *ast.Schema
	RootValue     interface{}   // optional
	Resolvers     Resolvers     // optional
	FieldResolver FieldResolver // optional
	TypeResolver  TypeResolver  // optional
}

// FieldResolver produces the value of one field. A returned error becomes a field error.
type FieldResolver func(ctx context.Context, source interface{}, args map[string]interface{}) (interface{}, error)

// TypeResolver names the object type of a value returned for an interface or union field.
type TypeResolver func(ctx context.Context, value interface{}, schema *ast.Schema, abstractType *ast.Definition) string

// Resolvers maps type name -> field name -> resolver.
type Resolvers map[string]map[string]FieldResolver

var _ FieldResolver = DefaultFieldResolver
var _ TypeResolver = DefaultTypeResolver

// Implements the "Executing requests" section of the GraphQL specification.
//
// If errors are encountered while executing a GraphQL field, only that
// field and its descendants will be omitted, and sibling fields will still
// be executed.
func Execute(ctx context.Context, args *ExecutionArgs) *graphql.Response {
	if !graphql.HasOperationContext(ctx) {
		panic("ctx doesn't have OperationContext")
	}
	oc := graphql.GetOperationContext(ctx)

	if args.Schema == nil {
		graphql.AddError(ctx, gqlerror.Errorf("must provide schema"))
		return &graphql.Response{}
	}
	if oc.Operation == nil {
		if oc.OperationName != "" {
			graphql.AddError(ctx, gqlerror.Errorf(`unknown operation named "%s"`, oc.OperationName))
		} else {
			graphql.AddError(ctx, gqlerror.Errorf("must provide an operation"))
		}
		return &graphql.Response{}
	}

	exeContext := &ExecutionContext{
		Schema:         args.Schema,
		RootValue:      args.RootValue,
		Operation:      oc.Operation,
		VariableValues: oc.Variables,
		Resolvers:      args.Resolvers,
		FieldResolver:  args.FieldResolver,
		TypeResolver:   args.TypeResolver,
	}
	if exeContext.FieldResolver == nil {
		exeContext.FieldResolver = DefaultFieldResolver
	}
	if exeContext.TypeResolver == nil {
		exeContext.TypeResolver = DefaultTypeResolver
	}

	data, gErr := executeOperation(ctx, exeContext, oc)
	if gErr != nil {
		graphql.AddError(ctx, gErr)
		return &graphql.Response{}
	}

	var buf bytes.Buffer
	data.MarshalGQL(&buf)

	return &graphql.Response{
		Data: buf.Bytes(),
	}
}

// Implements the "Executing operations" section of the GraphQL spec.
func executeOperation(ctx context.Context, exeContext *ExecutionContext, oc *graphql.OperationContext) (graphql.Marshaler, *gqlerror.Error) {
	operation := exeContext.Operation

	var typ *ast.Definition
	switch operation.Operation {
	case ast.Query:
		typ = exeContext.Schema.Query
		if typ == nil {
			return nil, gqlerror.ErrorPosf(operation.Position, "schema does not define the required query root type")
		}
	case ast.Mutation:
		typ = exeContext.Schema.Mutation
		if typ == nil {
			return nil, gqlerror.ErrorPosf(operation.Position, "schema is not configured for mutations")
		}
	case ast.Subscription:
		return nil, gqlerror.ErrorPosf(operation.Position, "subscriptions are not supported")
	default:
		return nil, gqlerror.ErrorPosf(operation.Position, "can only have query, mutation and subscription operations")
	}

	log.FromContext(ctx).V(1).Info("execute operation", "type", operation.Operation, "name", operation.Name)

	fields := collectFields(exeContext, oc, typ, operation.SelectionSet)

	// Errors from sub-fields of a NonNull type may propagate to the top level,
	// at which point we still log the error and null the parent field, which
	// in this case is the entire response.
	var result graphql.Marshaler
	var ok bool
	if operation.Operation == ast.Mutation {
		result, ok = executeFieldsSerially(ctx, exeContext, typ, exeContext.RootValue, fields)
	} else {
		result, ok = executeFields(ctx, exeContext, typ, exeContext.RootValue, fields)
	}
	if !ok {
		return graphql.Null, nil
	}

	return result, nil
}

// Implements the "Executing selection sets" section of the GraphQL spec
// for fields that must be executed serially.
// The second return value is false when a non-null field failed, making the whole object null.
func executeFieldsSerially(ctx context.Context, exeContext *ExecutionContext, parentType *ast.Definition, sourceValue interface{}, fields []graphql.CollectedField) (graphql.Marshaler, bool) {
	out := graphql.NewFieldSet(fields)
	failed := make([]bool, len(fields))
	for i, field := range fields {
		out.Values[i], failed[i] = executeRootAwareField(ctx, exeContext, parentType, sourceValue, field)
	}

	if lo.Contains(failed, true) {
		return graphql.Null, false
	}
	return out, true
}

// Implements the "Executing selection sets" section of the GraphQL spec
// for fields that may be executed in parallel.
func executeFields(ctx context.Context, exeContext *ExecutionContext, parentType *ast.Definition, sourceValue interface{}, fields []graphql.CollectedField) (graphql.Marshaler, bool) {
	out := graphql.NewFieldSet(fields)
	failed := make([]bool, len(fields))

	var wg sync.WaitGroup
	wg.Add(len(fields))
	for i, field := range fields {
		i, field := i, field
		go func() {
			defer wg.Done()
			out.Values[i], failed[i] = executeRootAwareField(ctx, exeContext, parentType, sourceValue, field)
		}()
	}
	wg.Wait()

	if lo.Contains(failed, true) {
		return graphql.Null, false
	}
	return out, true
}

func executeRootAwareField(ctx context.Context, exeContext *ExecutionContext, parentType *ast.Definition, sourceValue interface{}, field graphql.CollectedField) (graphql.Marshaler, bool) {
	oc := graphql.GetOperationContext(ctx)
	if !isRootType(exeContext.Schema, parentType) || oc.RootResolverMiddleware == nil {
		return executeField(ctx, exeContext, parentType, sourceValue, field)
	}

	ctx = graphql.WithRootFieldContext(ctx, &graphql.RootFieldContext{
		Object: parentType.Name,
		Field:  field,
	})

	var failed bool
	data := oc.RootResolverMiddleware(ctx, func(ctx context.Context) graphql.Marshaler {
		var data graphql.Marshaler
		data, failed = executeField(ctx, exeContext, parentType, sourceValue, field)
		return data
	})

	return data, failed
}

// Implements the "Executing field" section of the GraphQL spec
// In particular, this function figures out the value that the field returns by
// calling its resolve function, then calls completeValue to serialize scalars,
// or execute the sub-selection-set for objects.
// The second return value reports a null in a non-null position.
func executeField(ctx context.Context, exeContext *ExecutionContext, parentType *ast.Definition, source interface{}, field graphql.CollectedField) (graphql.Marshaler, bool) {
	fieldDef := field.Definition
	if fieldDef == nil {
		graphql.AddError(ctx, gqlerror.Errorf(`cannot query field "%s" on type "%s"`, field.Name, parentType.Name))
		return graphql.Null, false
	}

	resolveFn, isResolver := exeContext.resolverFor(parentType, field)

	fc := &graphql.FieldContext{
		Object:     parentType.Name,
		Field:      field,
		Args:       field.ArgumentMap(exeContext.VariableValues),
		IsMethod:   !isResolver,
		IsResolver: isResolver,
	}
	ctx = graphql.WithFieldContext(ctx, fc)

	result := resolveField(ctx, resolveFn, source, fc.Args)
	fc.Result = result

	return completeValue(ctx, exeContext, fieldDef.Type, field, result)
}

func resolveField(ctx context.Context, resolveFn FieldResolver, source interface{}, args map[string]interface{}) (res interface{}) {
	defer func() {
		if r := recover(); r != nil {
			res = graphql.Recover(ctx, r)
		}
	}()

	next := func(ctx context.Context) (interface{}, error) {
		return resolveFn(ctx, source, args)
	}

	var err error
	oc := graphql.GetOperationContext(ctx)
	if oc.ResolverMiddleware != nil {
		res, err = oc.ResolverMiddleware(ctx, next)
	} else {
		res, err = next(ctx)
	}
	if err != nil {
		return err
	}

	return res
}

func (exeContext *ExecutionContext) resolverFor(parentType *ast.Definition, field graphql.CollectedField) (FieldResolver, bool) {
	switch field.Name {
	case "__typename":
		return typenameResolver, false
	case "__schema":
		if parentType == exeContext.Schema.Query {
			return schemaResolver(exeContext.Schema), false
		}
	case "__type":
		if parentType == exeContext.Schema.Query {
			return typeResolver(exeContext.Schema), false
		}
	}

	if fieldResolvers, ok := exeContext.Resolvers[parentType.Name]; ok {
		if resolveFn, ok := fieldResolvers[field.Name]; ok {
			return resolveFn, true
		}
	}

	return exeContext.FieldResolver, false
}

// Implements the instructions for completeValue as defined in the
// "Field entries" section of the GraphQL spec.
//
// If the field type is Non-Null, then this recursively completes the value
// for the inner type. It reports a field error if that completion returns null,
// as per the "Nullability" section of the GraphQL spec.
// The second return value is true when a non-null position ended up null;
// the caller then nulls its own position.
func completeValue(ctx context.Context, exeContext *ExecutionContext, returnType *ast.Type, fieldNode graphql.CollectedField, result interface{}) (graphql.Marshaler, bool) {
	if !returnType.NonNull {
		completed, _ := completeNullableValue(ctx, exeContext, returnType, fieldNode, result)
		return completed, false
	}

	copied := *returnType
	copied.NonNull = false
	completed, ok := completeNullableValue(ctx, exeContext, &copied, fieldNode, result)
	if !ok {
		// the error has already been reported below this position.
		return graphql.Null, true
	}
	if completed == graphql.Null {
		fc := graphql.GetFieldContext(ctx)
		graphql.AddError(ctx, gqlerror.ErrorPathf(fc.Path(), "cannot return null for non-nullable field %s.%s", fc.Object, fc.Field.Name))
		return graphql.Null, true
	}

	return completed, false
}

// completeNullableValue returns false when the value could not be completed and an error was reported.
//
// If the field type is a List, then this recursively completes the value
// for the inner type on each item in the list.
//
// If the field type is a Scalar or Enum, ensures the completed value is a legal
// value of the type.
//
// If the field is an abstract type, determine the runtime type of the value
// and then complete based on that type.
//
// Otherwise, the field type expects a sub-selection set, and will complete the
// value by executing all sub-selections.
func completeNullableValue(ctx context.Context, exeContext *ExecutionContext, returnType *ast.Type, fieldNode graphql.CollectedField, result interface{}) (graphql.Marshaler, bool) {
	fc := graphql.GetFieldContext(ctx)

	// If result is an Error, report a located error.
	if err, ok := result.(error); ok {
		graphql.AddError(ctx, err)
		return graphql.Null, false
	}

	// If result value is null or undefined then return null.
	if utils.IsNil(result) {
		return graphql.Null, true
	}

	// If field type is List, complete each item in the list with the inner type
	if returnType.Elem != nil {
		return completeListValue(ctx, exeContext, returnType, fieldNode, result)
	}

	def := exeContext.Schema.Types[returnType.NamedType]

	// If field type is a leaf type, Scalar or Enum, serialize to a valid value,
	// returning null if serialization is not possible.
	if utils.IsLeafType(def) {
		completed, err := completeLeafValue(def, result)
		if err != nil {
			graphql.AddError(ctx, gqlerror.WrapPath(fc.Path(), err))
			return graphql.Null, false
		}
		return completed, true
	}

	// If field type is an abstract type, Interface or Union, determine the
	// runtime Object type and complete for that type.
	if utils.IsAbstractType(def) {
		return completeAbstractValue(ctx, exeContext, def, fieldNode, result)
	}

	// If field type is Object, execute and complete all sub-selections.
	if utils.IsObjectType(def) {
		return completeObjectValue(ctx, exeContext, def, fieldNode, result)
	}

	graphql.AddError(ctx, gqlerror.ErrorPathf(fc.Path(), "cannot complete value of unexpected output type: %s", returnType.String()))
	return graphql.Null, false
}

// Complete a list value by completing each item in the list with the
// inner type
func completeListValue(ctx context.Context, exeContext *ExecutionContext, returnType *ast.Type, fieldNode graphql.CollectedField, result interface{}) (graphql.Marshaler, bool) {
	fc := graphql.GetFieldContext(ctx)

	resultRV := reflect.Indirect(reflect.ValueOf(result))
	if resultRV.Kind() != reflect.Slice && resultRV.Kind() != reflect.Array {
		graphql.AddError(ctx, gqlerror.ErrorPathf(fc.Path(), `expected slice, but did not find one for field "%s.%s"`, fc.Object, fc.Field.Name))
		return graphql.Null, false
	}

	itemType := returnType.Elem

	ret := make(graphql.Array, resultRV.Len())
	failed := make([]bool, resultRV.Len())
	var wg sync.WaitGroup
	wg.Add(resultRV.Len())
	for index := 0; index < resultRV.Len(); index++ {
		index := index
		item := resultRV.Index(index).Interface()

		go func() {
			defer wg.Done()

			ctx := graphql.WithFieldContext(ctx, &graphql.FieldContext{
				Object: fc.Object,
				Field:  fc.Field,
				Index:  &index,
				Result: item,
			})
			ret[index], failed[index] = completeValue(ctx, exeContext, itemType, fieldNode, item)
		}()
	}
	wg.Wait()

	if lo.Contains(failed, true) {
		return graphql.Null, false
	}

	return ret, true
}

// Complete a Scalar or Enum by serializing to a valid value.
func completeLeafValue(def *ast.Definition, result interface{}) (graphql.Marshaler, error) {
	rv := reflect.ValueOf(result)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	value := rv.Interface()

	if def.Kind == ast.Enum {
		var name string
		switch v := value.(type) {
		case fmt.Stringer:
			name = v.String()
		default:
			if rv.Kind() != reflect.String {
				return nil, fmt.Errorf(`enum "%s" cannot represent non-string value: %v`, def.Name, value)
			}
			name = rv.String()
		}
		if def.EnumValues.ForName(name) == nil {
			return nil, fmt.Errorf(`enum "%s" cannot represent value: "%s"`, def.Name, name)
		}
		return graphql.MarshalString(name), nil
	}

	if igraphql.IsSpecifiedScalarType(def.Name) {
		return igraphql.SerializerFor(def.Name)(value)
	}

	// custom scalars bring their own marshaler.
	if m, ok := result.(graphql.Marshaler); ok {
		return m, nil
	}
	if m, ok := value.(graphql.Marshaler); ok {
		return m, nil
	}

	return nil, fmt.Errorf(`scalar "%s" cannot represent value of type %T`, def.Name, value)
}

// Complete a value of an abstract type by determining the runtime object type
// of that value, then complete the value for that type.
func completeAbstractValue(ctx context.Context, exeContext *ExecutionContext, returnType *ast.Definition, fieldNode graphql.CollectedField, result interface{}) (graphql.Marshaler, bool) {
	runtimeTypeName := exeContext.TypeResolver(ctx, result, exeContext.Schema, returnType)

	runtimeType, gErr := ensureValidRuntimeType(ctx, runtimeTypeName, exeContext, returnType)
	if gErr != nil {
		graphql.AddError(ctx, gErr)
		return graphql.Null, false
	}

	return completeObjectValue(ctx, exeContext, runtimeType, fieldNode, result)
}

func ensureValidRuntimeType(ctx context.Context, runtimeTypeName string, exeContext *ExecutionContext, returnType *ast.Definition) (*ast.Definition, *gqlerror.Error) {
	fc := graphql.GetFieldContext(ctx)

	if runtimeTypeName == "" {
		return nil, gqlerror.ErrorPathf(
			fc.Path(),
			`abstract type "%s" must resolve to an Object type at runtime for field "%s.%s"`,
			returnType.Name,
			fc.Object,
			fc.Field.Name,
		)
	}

	runtimeType := exeContext.Schema.Types[runtimeTypeName]
	if runtimeType == nil {
		return nil, gqlerror.ErrorPathf(
			fc.Path(),
			`abstract type "%s" was resolved to a type "%s" that does not exist inside the schema`,
			returnType.Name,
			runtimeTypeName,
		)
	}

	if runtimeType.Kind != ast.Object {
		return nil, gqlerror.ErrorPathf(
			fc.Path(),
			`abstract type "%s" was resolved to a non-object type "%s"`,
			returnType.Name,
			runtimeTypeName,
		)
	}

	if !utils.IsTypeDefSubTypeOf(exeContext.Schema, runtimeType, returnType) {
		return nil, gqlerror.ErrorPathf(
			fc.Path(),
			`runtime Object type "%s" is not a possible type for "%s"`,
			runtimeType.Name,
			returnType.Name,
		)
	}

	return runtimeType, nil
}

// Complete an Object value by executing all sub-selections.
func completeObjectValue(ctx context.Context, exeContext *ExecutionContext, returnType *ast.Definition, fieldNode graphql.CollectedField, result interface{}) (graphql.Marshaler, bool) {
	// Collect sub-fields to execute to complete this value.
	subFieldNodes := collectFields(exeContext, graphql.GetOperationContext(ctx), returnType, fieldNode.Selections)

	return executeFields(ctx, exeContext, returnType, result, subFieldNodes)
}

func isRootType(schema *ast.Schema, def *ast.Definition) bool {
	return def == schema.Query || (schema.Mutation != nil && def == schema.Mutation)
}

func typenameResolver(ctx context.Context, source interface{}, args map[string]interface{}) (interface{}, error) {
	return graphql.GetFieldContext(ctx).Object, nil
}

var errIntrospectionDisabled = errors.New("introspection disabled")

func schemaResolver(schema *ast.Schema) FieldResolver {
	return func(ctx context.Context, source interface{}, args map[string]interface{}) (interface{}, error) {
		if graphql.GetOperationContext(ctx).DisableIntrospection {
			return nil, errIntrospectionDisabled
		}
		return introspection.WrapSchema(schema), nil
	}
}

func typeResolver(schema *ast.Schema) FieldResolver {
	return func(ctx context.Context, source interface{}, args map[string]interface{}) (interface{}, error) {
		if graphql.GetOperationContext(ctx).DisableIntrospection {
			return nil, errIntrospectionDisabled
		}
		name, err := graphql.UnmarshalString(args["name"])
		if err != nil {
			return nil, err
		}
		def := schema.Types[name]
		if def == nil {
			return nil, nil
		}
		return introspection.WrapTypeFromDef(schema, def), nil
	}
}
