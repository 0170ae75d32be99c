package record

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/reflectx"
)

// mapper resolves db tags the same way sqlx does when scanning rows, so values
// read here line up with the columns a query returned.
var mapper = reflectx.NewMapperFunc("db", strings.ToLower)

func fieldIndex(rec Record, column string) (reflect.Value, []int, error) {
	v := reflect.ValueOf(rec)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return reflect.Value{}, nil, fmt.Errorf("record must be a non-nil pointer, got %T", rec)
	}
	v = v.Elem()
	fi := mapper.TypeMap(v.Type()).GetByPath(column)
	if fi == nil {
		return reflect.Value{}, nil, fmt.Errorf("%T has no column %q", rec, column)
	}
	return v, fi.Index, nil
}

// fieldValue walks to column without allocating. ok is false when an
// embedded pointer on the way is nil; a nil leaf pointer is returned as is.
func fieldValue(rec Record, column string) (fv reflect.Value, ok bool, err error) {
	v, index, err := fieldIndex(rec, column)
	if err != nil {
		return reflect.Value{}, false, err
	}
	for _, i := range index {
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}, false, nil
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v, true, nil
}

// settableField is fieldValue for writes: nil pointers on the way are allocated.
func settableField(rec Record, column string) (reflect.Value, error) {
	v, index, err := fieldIndex(rec, column)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflectx.FieldByIndexes(v, index), nil
}

// Get returns the value of column, dereferencing pointers and sql.Null types
// so that an unset value comes back as nil.
func Get(rec Record, column string) (any, error) {
	fv, ok, err := fieldValue(rec, column)
	if err != nil || !ok {
		return nil, err
	}
	return unwrap(fv), nil
}

func unwrap(fv reflect.Value) any {
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil
		}
		fv = fv.Elem()
	}
	switch x := fv.Interface().(type) {
	case sql.NullString:
		if !x.Valid {
			return nil
		}
		return x.String
	case sql.NullInt64:
		if !x.Valid {
			return nil
		}
		return x.Int64
	case sql.NullBool:
		if !x.Valid {
			return nil
		}
		return x.Bool
	case sql.NullFloat64:
		if !x.Valid {
			return nil
		}
		return x.Float64
	case sql.NullTime:
		if !x.Valid {
			return nil
		}
		return x.Time
	}
	return fv.Interface()
}

// Set assigns val (which may be nil) to column, converting between the
// plain, pointer and sql.Null forms of the same underlying type.
func Set(rec Record, column string, val any) error {
	fv, err := settableField(rec, column)
	if err != nil {
		return err
	}
	if !fv.CanSet() {
		return fmt.Errorf("column %q of %T is not settable", column, rec)
	}
	return assign(fv, val)
}

func assign(fv reflect.Value, val any) error {
	t := fv.Type()
	if val == nil {
		fv.Set(reflect.Zero(t))
		return nil
	}
	switch t {
	case reflect.TypeOf(sql.NullString{}):
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("cannot assign %T to %s", val, t)
		}
		fv.Set(reflect.ValueOf(sql.NullString{String: s, Valid: true}))
		return nil
	case reflect.TypeOf(sql.NullInt64{}):
		n, ok := toInt64(val)
		if !ok {
			return fmt.Errorf("cannot assign %T to %s", val, t)
		}
		fv.Set(reflect.ValueOf(sql.NullInt64{Int64: n, Valid: true}))
		return nil
	case reflect.TypeOf(sql.NullTime{}):
		tm, ok := val.(time.Time)
		if !ok {
			return fmt.Errorf("cannot assign %T to %s", val, t)
		}
		fv.Set(reflect.ValueOf(sql.NullTime{Time: tm, Valid: true}))
		return nil
	}
	if t.Kind() == reflect.Ptr {
		elem := reflect.New(t.Elem())
		if err := assign(elem.Elem(), val); err != nil {
			return err
		}
		fv.Set(elem)
		return nil
	}
	rv := reflect.ValueOf(val)
	if rv.Type().AssignableTo(t) {
		fv.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(t) && rv.Kind() != reflect.String && t.Kind() != reflect.String {
		fv.Set(rv.Convert(t))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", val, t)
}

func toInt64(val any) (int64, bool) {
	switch n := val.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}

// Values returns the values of cols in order, as driver-ready arguments.
func Values(rec Record, cols []string) ([]any, error) {
	out := make([]any, len(cols))
	for i, c := range cols {
		fv, ok, err := fieldValue(rec, c)
		if err != nil {
			return nil, err
		}
		if !ok || (fv.Kind() == reflect.Ptr && fv.IsNil()) {
			continue
		}
		out[i] = fv.Interface()
	}
	return out, nil
}
