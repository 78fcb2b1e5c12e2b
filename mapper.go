package simpledb

import (
	"database/sql"
	"fmt"
	"hash/fnv"
	"math"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"
)

// structMapper owns the struct index and plan caches used by SelectRowsOf.
// Every SimpleDB shares the process-wide instance from getMapper.
type structMapper struct {
	planCache        sync.Map // key: planKey -> *plan   (per (T, column-set))
	structIndexCache sync.Map // key: reflect.Type -> *fieldIndex (per T)
}

func newStructMapper() *structMapper { return &structMapper{} }

var (
	defaultMapper *structMapper
	mapperOnce    sync.Once
)

func getMapper() *structMapper {
	mapperOnce.Do(func() { defaultMapper = newStructMapper() })
	return defaultMapper
}

// ToFieldName derives a field name from a snake_case column label:
// "user_id" → "userId", "a_b_c" → "aBC". Labels without an underscore are
// returned unchanged.
func ToFieldName(column string) string {
	if !strings.Contains(column, "_") {
		return column
	}
	parts := strings.Split(column, "_")
	var b strings.Builder
	b.Grow(len(column))
	b.WriteString(strings.ToLower(parts[0]))
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		p = strings.ToLower(p)
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// mapRows builds one T per row. T must be a struct (see checkStruct).
func mapRows[T any](m *structMapper, rows []Row) ([]T, error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		pl := m.getPlan(rt, r.cols)
		rv := reflect.New(rt).Elem()
		for i, col := range r.cols {
			fp := pl.paths[i]
			if fp == nil {
				continue
			}
			dst := fieldByPathAlloc(rv, fp)
			if err := assignValue(dst, r.vals[col]); err != nil {
				return nil, err
			}
		}
		out = append(out, rv.Interface().(T))
	}
	return out, nil
}

// ---------------- Planning & caches ----------------

type planKey struct {
	rt    reflect.Type
	hash  uint64 // FNV-1a of column labels
	ncols int
}

// plan holds, per column, the index path of the destination field or nil
// when the column has no matching field.
type plan struct {
	paths [][]int
}

func (m *structMapper) getPlan(rt reflect.Type, cols []string) *plan {
	h := fnv.New64a()
	for _, c := range cols {
		_, _ = h.Write([]byte(c))
		_, _ = h.Write([]byte{0})
	}
	key := planKey{rt: rt, hash: h.Sum64(), ncols: len(cols)}
	if v, ok := m.planCache.Load(key); ok {
		return v.(*plan)
	}

	idx := m.structIndex(rt)
	p := &plan{paths: make([][]int, len(cols))}
	for i, c := range cols {
		p.paths[i] = idx.lookup(c)
	}
	m.planCache.Store(key, p)
	return p
}

type fieldIndex struct {
	byTag  map[string][]int // lower-case db tag -> index path
	byName map[string][]int // lower-case Go field name -> index path
}

// lookup resolves a column label: db tag first, then the derived field name.
func (fi *fieldIndex) lookup(col string) []int {
	if fp, ok := fi.byTag[strings.ToLower(col)]; ok {
		return fp
	}
	if fp, ok := fi.byName[strings.ToLower(ToFieldName(col))]; ok {
		return fp
	}
	return nil
}

func (m *structMapper) structIndex(rt reflect.Type) *fieldIndex {
	if v, ok := m.structIndexCache.Load(rt); ok {
		return v.(*fieldIndex)
	}
	fi := buildStructIndex(rt)
	m.structIndexCache.Store(rt, &fi)
	return &fi
}

// ---------------- Struct indexing & tags ----------------

func buildStructIndex(rt reflect.Type) fieldIndex {
	idx := fieldIndex{byTag: make(map[string][]int), byName: make(map[string][]int)}

	var walk func(t reflect.Type, base []int)
	walk = func(t reflect.Type, base []int) {
		t = derefPtr(t)
		if t.Kind() != reflect.Struct {
			return
		}
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			// Unexported fields cannot be set, except through a non-pointer embed.
			if sf.PkgPath != "" && (!sf.Anonymous || sf.Type.Kind() == reflect.Ptr) {
				continue
			}
			tag := sf.Tag.Get("db")
			name, inline, omit := parseTag(tag)
			if omit {
				continue
			}
			path := append(append([]int(nil), base...), i)

			if inline || (sf.Anonymous && tag == "") {
				if isStruct(sf.Type) && derefPtr(sf.Type) != timeType {
					walk(sf.Type, path)
					continue
				}
			}
			if sf.PkgPath != "" {
				continue
			}
			if name != "" {
				if _, ok := idx.byTag[strings.ToLower(name)]; !ok {
					idx.byTag[strings.ToLower(name)] = path
				}
			}
			if _, ok := idx.byName[strings.ToLower(sf.Name)]; !ok {
				idx.byName[strings.ToLower(sf.Name)] = path
			}
		}
	}
	walk(rt, nil)
	return idx
}

// parseTag supports: "-", "col", ",inline", "col,inline", "inline,col".
func parseTag(tag string) (name string, inline bool, omit bool) {
	if tag == "-" {
		return "", false, true
	}
	for _, part := range strings.Split(tag, ",") {
		if part == "inline" {
			inline = true
		} else if part != "" && name == "" {
			name = part
		}
	}
	return name, inline, false
}

// fieldByPathAlloc walks fpath, allocating nil embedded pointers on the way.
func fieldByPathAlloc(root reflect.Value, fpath []int) reflect.Value {
	v := root
	for _, i := range fpath {
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v
}

// ---------------- Value conversion ----------------

var (
	timeType    = reflect.TypeOf(time.Time{})
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

func isStruct(t reflect.Type) bool { return derefPtr(t).Kind() == reflect.Struct }

func derefPtr(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// assignValue stores raw into dst following the conversion order:
// nil, assignable, pointer, sql.Scanner, numeric, bool, string, time.
func assignValue(dst reflect.Value, raw any) error {
	dt := dst.Type()
	if raw == nil {
		dst.Set(reflect.Zero(dt))
		return nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(dt) {
		dst.Set(rv)
		return nil
	}
	if dt.Kind() == reflect.Ptr {
		elem := reflect.New(dt.Elem())
		if err := assignValue(elem.Elem(), raw); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}
	if reflect.PointerTo(dt).Implements(scannerType) && dst.CanAddr() {
		if err := dst.Addr().Interface().(sql.Scanner).Scan(raw); err != nil {
			return &ConversionError{Value: raw, Target: dt.String()}
		}
		return nil
	}

	fail := &ConversionError{Value: raw, Target: dt.String()}
	switch dt.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := toInt64(rv)
		if !ok || dst.OverflowInt(n) {
			return fail
		}
		dst.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if isUint(rv) {
			if dst.OverflowUint(rv.Uint()) {
				return fail
			}
			dst.SetUint(rv.Uint())
			return nil
		}
		n, ok := toInt64(rv)
		if !ok || n < 0 || dst.OverflowUint(uint64(n)) {
			return fail
		}
		dst.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		f, ok := toFloat64(rv)
		if !ok || dst.OverflowFloat(f) {
			return fail
		}
		dst.SetFloat(f)
		return nil
	case reflect.Bool:
		if rv.Kind() == reflect.Bool {
			dst.SetBool(rv.Bool())
			return nil
		}
		if f, ok := toFloat64(rv); ok {
			dst.SetBool(f != 0)
			return nil
		}
		return fail
	case reflect.String:
		dst.SetString(fmt.Sprint(raw))
		return nil
	}
	if rv.Type() == timeType && rv.Type().ConvertibleTo(dt) {
		dst.Set(rv.Convert(dt))
		return nil
	}
	return fail
}

func isUint(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

// toInt64 narrows any numeric value to int64. Floats are truncated.
func toInt64(v reflect.Value) (int64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		// float64(math.MaxInt64) rounds up to 2^63, one past the range.
		if math.IsNaN(f) || f >= 1<<63 || f < -(1<<63) {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

func toFloat64(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}
