package codec

import (
	"errors"
	"testing"

	"github.com/arcanum-run/arcanum/internal/function"
	"github.com/arcanum-run/arcanum/internal/mem"
	"github.com/arcanum-run/arcanum/internal/value"
)

func newAllocator(t *testing.T, size int) *mem.Allocator {
	t.Helper()

	a, err := mem.NewAllocator(size)
	if err != nil {
		t.Fatalf("mem.NewAllocator: %v", err)
	}

	t.Cleanup(func() { _ = a.Close() })

	return a
}

func roundTrip(t *testing.T, a *mem.Allocator, v value.Value) value.Value {
	t.Helper()

	buf := Encode(nil, v)

	got, err := Decode(buf, a)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	return got
}

func TestRoundTripScalars(t *testing.T) {
	t.Parallel()

	cases := []value.Value{
		value.Null{},
		value.Word(0),
		value.Word(0xdeadbeef),
		value.NewAtom([]byte("hello")),
		value.NewBlob([]byte("the quick brown fox")),
		value.TupleOf(value.Word(1), value.NewBlob([]byte("x")), value.Null{}),
		value.NewException(value.Word(7)),
	}

	for _, v := range cases {
		got := roundTrip(t, nil, v)
		if !value.Equal(got, v) {
			t.Errorf("round trip of %v produced %v", v, got)
		}
	}
}

func TestRoundTripPage(t *testing.T) {
	t.Parallel()

	a := newAllocator(t, 4*mem.FrameSize)

	p, err := value.NewPage(a, value.PageSize4K)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Write(0, []byte("hello page")); err != nil {
		t.Fatal(err)
	}

	got := roundTrip(t, a, p)

	gotPage, ok := got.(value.Page)
	if !ok {
		t.Fatalf("got %T, want value.Page", got)
	}
	if !gotPage.Equal(p) {
		t.Fatal("decoded page content mismatch")
	}
}

func TestRoundTripTable(t *testing.T) {
	t.Parallel()

	a := newAllocator(t, 8*mem.FrameSize)

	root := value.NewTable(value.MinTableSpan)

	p, err := value.NewPage(a, value.PageSize4K)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Write(0, []byte("page content")); err != nil {
		t.Fatal(err)
	}

	root, _, err = value.Map(root, 0, value.RWPageEntry(p))
	if err != nil {
		t.Fatal(err)
	}

	got := roundTrip(t, a, root)

	gotTable, ok := got.(*value.Table)
	if !ok {
		t.Fatalf("got %T, want *value.Table", got)
	}

	entry, ok, err := value.Unmap(gotTable, 0)
	if err != nil || !ok {
		t.Fatalf("Unmap on decoded table: ok=%v err=%v", ok, err)
	}

	gotPage, _ := entry.Page()
	if !gotPage.Equal(p) {
		t.Fatal("decoded table's page content mismatch")
	}
}

func TestRoundTripArcaneFunction(t *testing.T) {
	t.Parallel()

	f := function.NewArcane(value.NewBlob([]byte{1, 2, 3}), value.NewTable(0))
	f.Regs.SetReg(0, 42)
	f.Regs.IP = 11
	f.Descriptors.Insert(value.Word(99))

	got := roundTrip(t, nil, f)

	gotF, ok := got.(*function.Function)
	if !ok || !gotF.IsArcane() {
		t.Fatalf("got %v, want arcane function", got)
	}

	if gotF.Regs.Reg(0) != 42 || gotF.Regs.IP != 11 {
		t.Fatalf("register file mismatch: %+v", gotF.Regs)
	}

	v, err := gotF.Descriptors.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if v != value.Word(99) {
		t.Fatalf("descriptor 0 = %v, want 99", v)
	}
}

func TestRoundTripSymbolicFunction(t *testing.T) {
	t.Parallel()

	k := function.NewArcane(value.NewBlob(nil), value.NewTable(0))
	sym := function.NewSymbolic("read", []value.Value{value.Word(1)}, k)

	got := roundTrip(t, nil, sym)

	gotF, ok := got.(*function.Function)
	if !ok || !gotF.IsSymbolic() {
		t.Fatalf("got %v, want symbolic function", got)
	}

	name, _ := gotF.EffectName()
	if name != "read" {
		t.Fatalf("EffectName = %q, want read", name)
	}
}

func TestDecodeTruncated(t *testing.T) {
	t.Parallel()

	buf := Encode(nil, value.Word(1))

	_, err := Decode(buf[:len(buf)-1], nil)
	if !errors.Is(err, ErrUnexpectedEndOfData) {
		t.Fatalf("err = %v, want ErrUnexpectedEndOfData", err)
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	t.Parallel()

	buf := Encode(nil, value.Word(1))
	buf = append(buf, 0xff)

	_, err := Decode(buf, nil)
	if !errors.Is(err, ErrTrailingBytes) {
		t.Fatalf("err = %v, want ErrTrailingBytes", err)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte{0xff}, nil)
	if !errors.Is(err, ErrUnknownTag) {
		t.Fatalf("err = %v, want ErrUnknownTag", err)
	}
}
