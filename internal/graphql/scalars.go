package graphql

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/99designs/gqlgen/graphql"
)

// ScalarSerializer turns a resolved Go value into the wire value of a built-in scalar.
type ScalarSerializer func(v interface{}) (graphql.Marshaler, error)

var specifiedScalarSerializers = map[string]ScalarSerializer{
	"Int":     SerializeInt,
	"Float":   SerializeFloat,
	"String":  SerializeString,
	"Boolean": SerializeBoolean,
	"ID":      SerializeID,
}

func IsSpecifiedScalarType(typeName string) bool {
	_, ok := specifiedScalarSerializers[typeName]
	return ok
}

// SerializerFor returns nil for custom scalars and enums.
func SerializerFor(typeName string) ScalarSerializer {
	return specifiedScalarSerializers[typeName]
}

func SerializeInt(v interface{}) (graphql.Marshaler, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i > math.MaxInt32 || i < math.MinInt32 {
			return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %d", i)
		}
		return graphql.MarshalInt64(i), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt32 {
			return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %d", u)
		}
		return graphql.MarshalInt64(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("Int cannot represent non-integer value: %v", f)
		}
		if f > math.MaxInt32 || f < math.MinInt32 {
			return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %v", f)
		}
		return graphql.MarshalInt64(int64(f)), nil
	case reflect.Bool:
		if rv.Bool() {
			return graphql.MarshalInt(1), nil
		}
		return graphql.MarshalInt(0), nil
	case reflect.String:
		i, err := strconv.ParseInt(rv.String(), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("Int cannot represent non-integer value: %q", rv.String())
		}
		return graphql.MarshalInt64(i), nil
	default:
		return nil, fmt.Errorf("Int cannot represent non-integer value: %v", v)
	}
}

// CoerceInt reads an Int argument, rejecting values outside the 32-bit range.
func CoerceInt(v interface{}) (int, error) {
	i, err := graphql.UnmarshalInt64(v)
	if err != nil {
		return 0, err
	}
	if i > math.MaxInt32 || i < math.MinInt32 {
		return 0, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %d", i)
	}
	return int(i), nil
}

func SerializeFloat(v interface{}) (graphql.Marshaler, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return graphql.MarshalFloat(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return graphql.MarshalFloat(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("Float cannot represent non numeric value: %v", f)
		}
		return graphql.MarshalFloat(f), nil
	case reflect.Bool:
		if rv.Bool() {
			return graphql.MarshalFloat(1), nil
		}
		return graphql.MarshalFloat(0), nil
	case reflect.String:
		f, err := strconv.ParseFloat(rv.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("Float cannot represent non numeric value: %q", rv.String())
		}
		return graphql.MarshalFloat(f), nil
	default:
		return nil, fmt.Errorf("Float cannot represent non numeric value: %v", v)
	}
}

func SerializeString(v interface{}) (graphql.Marshaler, error) {
	if s, ok := v.(fmt.Stringer); ok {
		return graphql.MarshalString(s.String()), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return graphql.MarshalString(rv.String()), nil
	case reflect.Bool:
		return graphql.MarshalString(strconv.FormatBool(rv.Bool())), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return graphql.MarshalString(strconv.FormatInt(rv.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return graphql.MarshalString(strconv.FormatUint(rv.Uint(), 10)), nil
	case reflect.Float32, reflect.Float64:
		return graphql.MarshalString(strconv.FormatFloat(rv.Float(), 'g', -1, 64)), nil
	default:
		return nil, fmt.Errorf("String cannot represent value: %v", v)
	}
}

func SerializeBoolean(v interface{}) (graphql.Marshaler, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return graphql.MarshalBoolean(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return graphql.MarshalBoolean(rv.Int() != 0), nil
	case reflect.Float32, reflect.Float64:
		return graphql.MarshalBoolean(rv.Float() != 0), nil
	default:
		return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %v", v)
	}
}

func SerializeID(v interface{}) (graphql.Marshaler, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return graphql.MarshalString(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return graphql.MarshalString(strconv.FormatInt(rv.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return graphql.MarshalString(strconv.FormatUint(rv.Uint(), 10)), nil
	default:
		return nil, fmt.Errorf("ID cannot represent value: %v", v)
	}
}
