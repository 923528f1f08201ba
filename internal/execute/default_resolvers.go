package execute

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vvakame/bookshelf/internal/utils"
)

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
var errorType = reflect.TypeOf((*error)(nil)).Elem()

// DefaultFieldResolver is used for fields that have no entry in Resolvers.
//
// It takes the property of the source object of the same name as the field.
// For maps that is the key, for structs a method or exported field whose name
// (or json tag) matches. Methods receive an optional context.Context followed by
// the field arguments in declaration order.
func DefaultFieldResolver(ctx context.Context, source interface{}, args map[string]interface{}) (interface{}, error) {
	fc := graphql.GetFieldContext(ctx)
	if fc == nil {
		panic("ctx doesn't have FieldContext")
	}
	name := fc.Field.Name

	if utils.IsNil(source) {
		return nil, nil
	}
	if m, ok := source.(map[string]interface{}); ok {
		return m[name], nil
	}

	rv := reflect.ValueOf(source)
	if rv.Kind() == reflect.Struct {
		// pointer receivers are only reachable through an addressable value.
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		rv = p
	}

	if method := findMethod(rv, name); method.IsValid() {
		return callMethod(ctx, method, fc.Field.Definition.Arguments, args)
	}

	if sv := reflect.Indirect(rv); sv.Kind() == reflect.Struct {
		if f, ok := findStructField(sv.Type(), name); ok {
			return sv.FieldByIndex(f.Index).Interface(), nil
		}
	}

	return nil, fmt.Errorf("no resolver for field %s.%s on %T", fc.Object, name, source)
}

// DefaultTypeResolver looks for a `__typename` key first, then falls back to the Go
// type name of the value.
func DefaultTypeResolver(ctx context.Context, value interface{}, schema *ast.Schema, abstractType *ast.Definition) string {
	if m, ok := value.(map[string]interface{}); ok {
		typename, _ := m["__typename"].(string)
		return typename
	}

	rt := reflect.TypeOf(value)
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == nil {
		return ""
	}
	for _, def := range schema.GetPossibleTypes(abstractType) {
		if def.Name == rt.Name() {
			return def.Name
		}
	}

	return ""
}

func findMethod(rv reflect.Value, name string) reflect.Value {
	if name == "" {
		return reflect.Value{}
	}
	exported := strings.ToUpper(name[:1]) + name[1:]
	if method := rv.MethodByName(exported); method.IsValid() {
		return method
	}

	rt := rv.Type()
	for i := 0; i < rt.NumMethod(); i++ {
		if strings.EqualFold(rt.Method(i).Name, name) {
			return rv.Method(i)
		}
	}

	return reflect.Value{}
}

func findStructField(rt reflect.Type, name string) (reflect.StructField, bool) {
	for _, f := range reflect.VisibleFields(rt) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if tag := strings.Split(f.Tag.Get("json"), ",")[0]; tag != "" {
			if tag == name {
				return f, true
			}
			continue
		}
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}

	return reflect.StructField{}, false
}

func callMethod(ctx context.Context, method reflect.Value, argDefs ast.ArgumentDefinitionList, args map[string]interface{}) (interface{}, error) {
	mt := method.Type()

	in := make([]reflect.Value, 0, mt.NumIn())
	argIndex := 0
	for i := 0; i < mt.NumIn(); i++ {
		pt := mt.In(i)
		if pt == contextType {
			in = append(in, reflect.ValueOf(ctx))
			continue
		}
		if argIndex >= len(argDefs) {
			return nil, fmt.Errorf("method %s takes more parameters than the field has arguments", mt.String())
		}
		arg := args[argDefs[argIndex].Name]
		argIndex++

		if arg == nil {
			in = append(in, reflect.Zero(pt))
			continue
		}
		av := reflect.ValueOf(arg)
		if !av.Type().ConvertibleTo(pt) {
			return nil, fmt.Errorf("argument %s: cannot use %T as %s", argDefs[argIndex-1].Name, arg, pt.String())
		}
		in = append(in, av.Convert(pt))
	}

	out := method.Call(in)
	switch {
	case len(out) == 1:
		return out[0].Interface(), nil
	case len(out) == 2 && mt.Out(1) == errorType:
		if err, _ := out[1].Interface().(error); err != nil {
			return nil, err
		}
		return out[0].Interface(), nil
	default:
		return nil, fmt.Errorf("method %s must return a value and an optional error", mt.String())
	}
}
