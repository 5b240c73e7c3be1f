package sealzip

import (
	"encoding/binary"
	"fmt"
)

// FieldType is the width of an unsigned little-endian record field
type FieldType uint8

const (
	U8 FieldType = iota + 1
	U16
	U32
	U64
)

// Size returns the width of the field type in bytes
func (t FieldType) Size() int {
	switch t {
	case U8:
		return 1
	case U16:
		return 2
	case U32:
		return 4
	case U64:
		return 8
	default:
		return 0
	}
}

// String returns the string representation of the field type
func (t FieldType) String() string {
	switch t {
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U32:
		return "u32"
	case U64:
		return "u64"
	default:
		return "unknown"
	}
}

// MagicField is the field name checked by Layout.Load
const MagicField = "magic"

// Field declares one field of a layout. Offsets are not declared: they are
// assigned in declaration order.
type Field struct {
	Name string
	Type FieldType
}

// FieldSpec is a field with its resolved byte offset
type FieldSpec struct {
	Name   string
	Type   FieldType
	Offset int
}

// Values maps field names to values for Pack
type Values map[string]uint64

// Layout is an immutable fixed-size record schema. Many records may share
// one layout.
type Layout struct {
	name     string
	fields   []FieldSpec
	index    map[string]int
	defaults Values
	size     int
}

// DefineLayout resolves field offsets and returns the layout. Field names
// must be unique and every default must name a declared field.
func DefineLayout(name string, fields []Field, defaults Values) (*Layout, error) {
	l := &Layout{
		name:     name,
		fields:   make([]FieldSpec, 0, len(fields)),
		index:    make(map[string]int, len(fields)),
		defaults: make(Values, len(defaults)),
	}

	for _, f := range fields {
		if f.Type.Size() == 0 {
			return nil, fmt.Errorf("layout %s: field %q has unknown type %d", name, f.Name, f.Type)
		}
		if _, dup := l.index[f.Name]; dup {
			return nil, fmt.Errorf("layout %s: duplicate field %q", name, f.Name)
		}
		l.index[f.Name] = len(l.fields)
		l.fields = append(l.fields, FieldSpec{Name: f.Name, Type: f.Type, Offset: l.size})
		l.size += f.Type.Size()
	}

	for k, v := range defaults {
		if _, ok := l.index[k]; !ok {
			return nil, fmt.Errorf("layout %s: default for undeclared field %q", name, k)
		}
		l.defaults[k] = v
	}

	return l, nil
}

// MustDefineLayout is like DefineLayout but panics on error. It is meant
// for package-level layouts.
func MustDefineLayout(name string, fields []Field, defaults Values) *Layout {
	l, err := DefineLayout(name, fields, defaults)
	if err != nil {
		panic(err)
	}
	return l
}

// Name returns the layout name used in error messages
func (l *Layout) Name() string { return l.name }

// Size returns the record length in bytes
func (l *Layout) Size() int { return l.size }

// Fields returns a copy of the resolved field table
func (l *Layout) Fields() []FieldSpec {
	out := make([]FieldSpec, len(l.fields))
	copy(out, l.fields)
	return out
}

// Default returns the default value for a field
func (l *Layout) Default(name string) (uint64, bool) {
	v, ok := l.defaults[name]
	return v, ok
}

// Pack allocates a zero-filled record, applies the layout defaults and then
// values, and returns the raw bytes.
func (l *Layout) Pack(values Values) []byte {
	buf := make([]byte, l.size)
	r := Record{layout: l, buf: buf}
	for k, v := range l.defaults {
		r.Set(k, v)
	}
	for k, v := range values {
		r.Set(k, v)
	}
	return buf
}

// Bind returns a live view of the record at off within buf. Writes through
// the record modify buf.
func (l *Layout) Bind(buf []byte, off int) (Record, error) {
	if off < 0 || len(buf)-off < l.size {
		return Record{}, NewFormatError(l.name, int64(off), ErrShortBuffer,
			fmt.Sprintf("need %d bytes, have %d", l.size, max(len(buf)-off, 0)))
	}
	return Record{layout: l, buf: buf[off : off+l.size : off+l.size]}, nil
}

// Load is Bind followed by a magic check: when the layout declares a magic
// field, the stored value must equal the layout default.
func (l *Layout) Load(buf []byte, off int) (Record, error) {
	r, err := l.Bind(buf, off)
	if err != nil {
		return Record{}, err
	}
	if want, ok := l.defaults[MagicField]; ok {
		if got := r.Get(MagicField); got != want {
			return Record{}, NewFormatError(l.name, int64(off), ErrInvalidMagic,
				fmt.Sprintf("invalid magic 0x%08X, want 0x%08X", got, want))
		}
	}
	return r, nil
}

// Record is a typed little-endian view over caller-owned memory. The zero
// Record is not usable.
type Record struct {
	layout *Layout
	buf    []byte
}

// Layout returns the record's layout
func (r Record) Layout() *Layout { return r.layout }

// Bytes returns the underlying bytes of the record
func (r Record) Bytes() []byte { return r.buf }

func (r Record) spec(name string) FieldSpec {
	i, ok := r.layout.index[name]
	if !ok {
		panic(fmt.Sprintf("sealzip: layout %s has no field %q", r.layout.name, name))
	}
	return r.layout.fields[i]
}

// Get reads a field. It panics if the layout has no such field.
func (r Record) Get(name string) uint64 {
	f := r.spec(name)
	b := r.buf[f.Offset:]
	switch f.Type {
	case U8:
		return uint64(b[0])
	case U16:
		return uint64(binary.LittleEndian.Uint16(b))
	case U32:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

// Set writes a field, truncating v to the field width. It panics if the
// layout has no such field.
func (r Record) Set(name string, v uint64) {
	f := r.spec(name)
	b := r.buf[f.Offset:]
	switch f.Type {
	case U8:
		b[0] = uint8(v)
	case U16:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case U32:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, v)
	}
}
