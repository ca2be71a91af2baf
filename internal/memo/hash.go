// Package memo provides content-addressed memoization: a bounded-depth,
// order-insensitive structural hash and a store that remembers the last hash
// seen per cell.
package memo

import (
	"encoding/binary"
	"math"
	"reflect"
	"slices"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultDepth bounds how deep Hash descends into nested containers.
const DefaultDepth = 10

// Keyer lets a value choose what identifies it for hashing. The returned key
// is hashed instead of the value itself.
type Keyer interface {
	MemoKey() any
}

const (
	tagNil byte = iota
	tagBool
	tagNumber
	tagString
	tagList
	tagMap
	tagStruct
	tagFunc
	tagTime
	tagOther
)

var timeType = reflect.TypeOf(time.Time{})

// Hash returns a structural hash of v. Maps are hashed independently of
// iteration order; slices keep their order. Numbers hash by value regardless
// of their Go type, so 1 and 1.0 collide. Functions hash by code pointer.
// Containers nested deeper than depth contribute nothing.
func Hash(v any, depth int) uint64 {
	return Combine(depth, v)
}

// Combine hashes several values as one ordered tuple.
func Combine(depth int, vs ...any) uint64 {
	d := xxhash.New()
	for _, v := range vs {
		walk(d, reflect.ValueOf(v), depth)
	}
	return d.Sum64()
}

func walk(d *xxhash.Digest, rv reflect.Value, depth int) {
	if depth <= 0 {
		return
	}
	if !rv.IsValid() {
		d.Write([]byte{tagNil})
		return
	}
	if rv.CanInterface() {
		if k, ok := rv.Interface().(Keyer); ok {
			if rv.Kind() != reflect.Pointer || !rv.IsNil() {
				walk(d, reflect.ValueOf(k.MemoKey()), depth-1)
				return
			}
		}
	}
	if rv.Type() == timeType && rv.CanInterface() {
		d.Write([]byte{tagTime})
		writeUint(d, uint64(rv.Interface().(time.Time).UnixNano()))
		return
	}

	switch rv.Kind() {
	case reflect.Bool:
		d.Write([]byte{tagBool})
		if rv.Bool() {
			d.Write([]byte{1})
		} else {
			d.Write([]byte{0})
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		writeNumber(d, float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		writeNumber(d, float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		writeNumber(d, rv.Float())
	case reflect.String:
		d.Write([]byte{tagString})
		writeUint(d, uint64(rv.Len()))
		d.WriteString(rv.String())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			d.Write([]byte{tagNil})
			return
		}
		d.Write([]byte{tagList})
		writeUint(d, uint64(rv.Len()))
		for i := 0; i < rv.Len(); i++ {
			walk(d, rv.Index(i), depth-1)
		}
	case reflect.Map:
		if rv.IsNil() {
			d.Write([]byte{tagNil})
			return
		}
		d.Write([]byte{tagMap})
		writeUint(d, uint64(rv.Len()))
		entries := make([]uint64, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			e := xxhash.New()
			walk(e, iter.Key(), depth-1)
			walk(e, iter.Value(), depth-1)
			entries = append(entries, e.Sum64())
		}
		slices.Sort(entries)
		for _, e := range entries {
			writeUint(d, e)
		}
	case reflect.Struct:
		d.Write([]byte{tagStruct})
		d.WriteString(rv.Type().String())
		for i := 0; i < rv.NumField(); i++ {
			d.WriteString(rv.Type().Field(i).Name)
			walk(d, rv.Field(i), depth-1)
		}
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			d.Write([]byte{tagNil})
			return
		}
		walk(d, rv.Elem(), depth-1)
	case reflect.Func:
		d.Write([]byte{tagFunc})
		if rv.IsNil() {
			writeUint(d, 0)
			return
		}
		writeUint(d, uint64(rv.Pointer()))
	default:
		d.Write([]byte{tagOther})
		d.WriteString(rv.Type().String())
	}
}

func writeNumber(d *xxhash.Digest, f float64) {
	d.Write([]byte{tagNumber})
	writeUint(d, math.Float64bits(f))
}

func writeUint(d *xxhash.Digest, u uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], u)
	d.Write(buf[:])
}
