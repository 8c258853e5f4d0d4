// Package codec implements serialization for value.Value (§4.6): a
// variant-tagged, self-describing binary encoding whose round-trip law is
// decode(encode(v)) == v. Every decoded value is freshly allocated and
// uniquely owned — there is no sharing across the encode/decode boundary,
// matching the spec's COW model (a decoded Page or Table starts life with
// refcount one).
//
// The wire format hand-rolls its own framing rather than reaching for
// encoding/gob, following elsie's internal/encoding package, which does the
// same for its own small binary format.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/arcanum-run/arcanum/internal/function"
	"github.com/arcanum-run/arcanum/internal/mem"
	"github.com/arcanum-run/arcanum/internal/value"
)

// Failure modes (§4.6).
var (
	ErrUnknownTag        = errors.New("codec: unknown variant tag")
	ErrUnexpectedEndOfData = errors.New("codec: unexpected end of data")
	ErrTrailingBytes       = errors.New("codec: trailing bytes")
)

// Encode appends v's wire encoding to buf and returns the result.
func Encode(buf []byte, v value.Value) []byte {
	buf = append(buf, byte(v.Tag()))

	switch vv := v.(type) {
	case value.Null:
		return buf
	case value.Word:
		return appendU64(buf, uint64(vv))
	case value.Atom:
		return appendBytes(buf, vv.Bytes())
	case value.Blob:
		return appendBytes(buf, vv.Bytes())
	case value.Tuple:
		return encodeTuple(buf, vv)
	case value.Page:
		return encodePage(buf, vv)
	case *value.Table:
		return encodeTable(buf, vv)
	case value.Exception:
		return Encode(buf, vv.Inner)
	case *function.Function:
		return encodeFunction(buf, vv)
	default:
		panic(fmt.Sprintf("codec: %T is not a member of the closed Value set", v))
	}
}

func appendU64(buf []byte, n uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], n)

	return append(buf, b[:]...)
}

func appendU32(buf []byte, n uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], n)

	return append(buf, b[:]...)
}

func appendBytes(buf []byte, b []byte) []byte {
	buf = appendU32(buf, uint32(len(b)))
	return append(buf, b...)
}

func encodeTuple(buf []byte, t value.Tuple) []byte {
	items := t.Slice()
	buf = appendU32(buf, uint32(len(items)))

	for _, item := range items {
		buf = Encode(buf, item)
	}

	return buf
}

func encodePage(buf []byte, p value.Page) []byte {
	buf = appendU64(buf, uint64(p.Size()))
	return append(buf, p.Bytes()...)
}

// entry tags, distinct from value.Tag: serialized entries never distinguish
// RO from RW (decode always produces a uniquely-owned copy), so only the
// payload kind matters.
const (
	wireEntryPage  = 0
	wireEntryTable = 1
)

func encodeTable(buf []byte, t *value.Table) []byte {
	buf = appendU64(buf, t.Span()) // the "len" entry (§4.6)

	nonNull := 0
	for i := 0; i < value.Radix; i++ {
		if t.Get(i).Kind != value.EntryNull {
			nonNull++
		}
	}

	buf = appendU32(buf, uint32(nonNull))

	for i := 0; i < value.Radix; i++ {
		e := t.Get(i)
		if e.Kind == value.EntryNull {
			continue
		}

		buf = appendU32(buf, uint32(i))

		if p, ok := e.Page(); ok {
			buf = append(buf, wireEntryPage)
			buf = encodePage(buf, p)

			continue
		}

		sub, _ := e.Table()
		buf = append(buf, wireEntryTable)
		buf = encodeTable(buf, sub)
	}

	return buf
}

func encodeFunction(buf []byte, f *function.Function) []byte {
	if f.IsSymbolic() {
		buf = append(buf, 1)
		payload, _ := f.Payload()

		return encodeTuple(buf, payload)
	}

	buf = append(buf, 0)
	buf = appendRegisterFile(buf, f.Regs)
	buf = appendBytes(buf, f.Code.Bytes())
	buf = encodeTable(buf, f.Memory)

	f.Descriptors.Compact()
	buf = encodeDescriptors(buf, f.Descriptors)

	return buf
}

func appendRegisterFile(buf []byte, r function.RegisterFile) []byte {
	for _, g := range r.GPR {
		buf = appendU64(buf, g)
	}

	buf = appendU64(buf, r.IP)
	buf = appendU64(buf, r.SP)
	buf = append(buf, byte(r.Flags))

	return buf
}

func encodeDescriptors(buf []byte, d *function.Descriptors) []byte {
	n := d.Len()
	buf = appendU32(buf, uint32(n))

	for i := 0; i < n; i++ {
		v, err := d.Get(i)
		if err != nil {
			v = value.Null{}
		}

		buf = Encode(buf, v)
	}

	return buf
}

// decoder walks buf with a cursor, consuming bytes and reporting truncation
// as ErrUnexpectedEndOfData rather than panicking.
type decoder struct {
	buf []byte
	pos int
	mem *mem.Allocator // backs any Page values decoded; nil is fine if none are present
}

func (d *decoder) take(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, ErrUnexpectedEndOfData
	}

	b := d.buf[d.pos : d.pos+n]
	d.pos += n

	return b, nil
}

func (d *decoder) u64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b), nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b), nil
}

func (d *decoder) bytes() ([]byte, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}

	return d.take(int(n))
}

// Decode parses one Value from buf. It returns ErrTrailingBytes if buf
// contains extra bytes after the top-level value, and ErrUnexpectedEndOfData
// if buf is truncated. `pages`, if non-nil, backs any decoded Page values;
// a nil allocator is only safe when the caller knows buf carries no pages.
func Decode(buf []byte, pages *mem.Allocator) (value.Value, error) {
	d := &decoder{buf: buf, mem: pages}

	v, err := d.value()
	if err != nil {
		return nil, err
	}

	if d.pos != len(d.buf) {
		return nil, fmt.Errorf("%w: %d unread bytes", ErrTrailingBytes, len(d.buf)-d.pos)
	}

	return v, nil
}

func (d *decoder) value() (value.Value, error) {
	tagByte, err := d.take(1)
	if err != nil {
		return nil, err
	}

	switch value.Tag(tagByte[0]) {
	case value.TagNull:
		return value.Null{}, nil

	case value.TagWord:
		n, err := d.u64()
		if err != nil {
			return nil, err
		}

		return value.Word(n), nil

	case value.TagAtom:
		b, err := d.bytes()
		if err != nil {
			return nil, err
		}

		return value.NewAtom(b), nil

	case value.TagBlob:
		b, err := d.bytes()
		if err != nil {
			return nil, err
		}

		return value.NewBlob(b), nil

	case value.TagTuple:
		return d.tuple()

	case value.TagPage:
		return d.page()

	case value.TagTable:
		return d.table()

	case value.TagException:
		inner, err := d.value()
		if err != nil {
			return nil, err
		}

		return value.NewException(inner), nil

	case value.TagFunction:
		return d.function()

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tagByte[0])
	}
}

func (d *decoder) tuple() (value.Tuple, error) {
	n, err := d.u32()
	if err != nil {
		return value.Tuple{}, err
	}

	items := make([]value.Value, n)

	for i := range items {
		v, err := d.value()
		if err != nil {
			return value.Tuple{}, err
		}

		items[i] = v
	}

	return value.TupleOf(items...), nil
}

func (d *decoder) page() (value.Page, error) {
	size, err := d.u64()
	if err != nil {
		return value.Page{}, err
	}

	data, err := d.take(int(size))
	if err != nil {
		return value.Page{}, err
	}

	if d.mem == nil {
		return value.Page{}, fmt.Errorf("codec: page in stream but decoder has no allocator")
	}

	p, err := value.NewPage(d.mem, value.PageSize(size))
	if err != nil {
		return value.Page{}, err
	}

	if err := p.Write(0, data); err != nil {
		return value.Page{}, err
	}

	return p, nil
}

func (d *decoder) table() (*value.Table, error) {
	span, err := d.u64()
	if err != nil {
		return nil, err
	}

	count, err := d.u32()
	if err != nil {
		return nil, err
	}

	t := value.NewTable(span)

	for k := uint32(0); k < count; k++ {
		idx, err := d.u32()
		if err != nil {
			return nil, err
		}

		kind, err := d.take(1)
		if err != nil {
			return nil, err
		}

		var entry value.Entry

		switch kind[0] {
		case wireEntryPage:
			p, err := d.page()
			if err != nil {
				return nil, err
			}

			entry = value.RWPageEntry(p)

		case wireEntryTable:
			sub, err := d.table()
			if err != nil {
				return nil, err
			}

			entry = value.RWTableEntry(sub)

		default:
			return nil, fmt.Errorf("%w: entry kind %d", ErrUnknownTag, kind[0])
		}

		if _, err := t.Set(int(idx), entry); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func (d *decoder) function() (*function.Function, error) {
	kind, err := d.take(1)
	if err != nil {
		return nil, err
	}

	if kind[0] == 1 {
		payload, err := d.tuple()
		if err != nil {
			return nil, err
		}

		name, _ := payload.Get(1)
		nameBlob, _ := name.(value.Blob)

		argsVal, _ := payload.Get(2)
		args, _ := argsVal.(value.Tuple)

		if args.Len() == 0 {
			return nil, fmt.Errorf("codec: symbolic function payload missing continuation")
		}

		kVal, err := args.Get(args.Len() - 1)
		if err != nil {
			return nil, err
		}

		k, _ := kVal.(*function.Function)

		return function.NewSymbolic(string(nameBlob.Bytes()), args.Slice()[:args.Len()-1], k), nil
	}

	regs, err := d.registerFile()
	if err != nil {
		return nil, err
	}

	code, err := d.bytes()
	if err != nil {
		return nil, err
	}

	memory, err := d.table()
	if err != nil {
		return nil, err
	}

	descs, err := d.descriptors()
	if err != nil {
		return nil, err
	}

	f := function.NewArcane(value.NewBlob(code), memory)
	f.Regs = regs
	f.Descriptors = descs
	f.Pages = d.mem

	return f, nil
}

func (d *decoder) registerFile() (function.RegisterFile, error) {
	var r function.RegisterFile

	for i := range r.GPR {
		v, err := d.u64()
		if err != nil {
			return r, err
		}

		r.GPR[i] = v
	}

	ip, err := d.u64()
	if err != nil {
		return r, err
	}

	sp, err := d.u64()
	if err != nil {
		return r, err
	}

	flags, err := d.take(1)
	if err != nil {
		return r, err
	}

	r.IP = ip
	r.SP = sp
	r.Flags = function.Flags(flags[0])

	return r, nil
}

func (d *decoder) descriptors() (*function.Descriptors, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}

	descs := function.NewDescriptors()

	for i := uint32(0); i < n; i++ {
		v, err := d.value()
		if err != nil {
			return nil, err
		}

		descs.Insert(v)
	}

	return descs, nil
}
