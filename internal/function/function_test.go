package function

import (
	"testing"

	"github.com/arcanum-run/arcanum/internal/value"
)

func TestDescriptorsInsertGetDrop(t *testing.T) {
	t.Parallel()

	d := NewDescriptors()

	i := d.Insert(value.Word(42))
	j := d.Insert(value.Word(7))

	got, err := d.Get(i)
	if err != nil {
		t.Fatal(err)
	}
	if got != value.Word(42) {
		t.Fatalf("Get(%d) = %v, want 42", i, got)
	}

	if err := d.Drop(i); err != nil {
		t.Fatal(err)
	}

	// Dropped index is reused on next Insert.
	k := d.Insert(value.Word(99))
	if k != i {
		t.Fatalf("Insert after Drop = %d, want reused index %d", k, i)
	}

	got, err = d.Get(j)
	if err != nil {
		t.Fatal(err)
	}
	if got != value.Word(7) {
		t.Fatalf("Get(%d) = %v, want 7", j, got)
	}
}

func TestDescriptorsTakeLeavesNull(t *testing.T) {
	t.Parallel()

	d := NewDescriptors()
	i := d.Insert(value.Word(5))

	v, err := d.Take(i)
	if err != nil {
		t.Fatal(err)
	}
	if v != value.Word(5) {
		t.Fatalf("Take = %v, want 5", v)
	}

	got, err := d.Get(i)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.(value.Null); !ok {
		t.Fatalf("slot after Take = %v, want Null", got)
	}
}

func TestDescriptorsCompactReclaimsTrailingHoles(t *testing.T) {
	t.Parallel()

	d := NewDescriptors()

	a := d.Insert(value.Word(1))
	b := d.Insert(value.Word(2))
	c := d.Insert(value.Word(3))

	if err := d.Drop(c); err != nil {
		t.Fatal(err)
	}
	if err := d.Drop(b); err != nil {
		t.Fatal(err)
	}

	d.Compact()

	if got := d.Len(); got != 1 {
		t.Fatalf("Len() after Compact = %d, want 1", got)
	}

	got, err := d.Get(a)
	if err != nil {
		t.Fatal(err)
	}
	if got != value.Word(1) {
		t.Fatalf("Get(%d) = %v, want 1", a, got)
	}

	// A hole short of the tail survives Compact and is still reusable.
	d2 := NewDescriptors()
	x := d2.Insert(value.Word(10))
	y := d2.Insert(value.Word(20))
	d2.Insert(value.Word(30))

	if err := d2.Drop(x); err != nil {
		t.Fatal(err)
	}

	d2.Compact()

	if got := d2.Len(); got != 3 {
		t.Fatalf("Len() after Compact with a middle hole = %d, want 3", got)
	}

	reused := d2.Insert(value.Word(99))
	if reused != x {
		t.Fatalf("Insert after Compact = %d, want reused index %d", reused, x)
	}

	got, err = d2.Get(y)
	if err != nil {
		t.Fatal(err)
	}
	if got != value.Word(20) {
		t.Fatalf("Get(%d) = %v, want 20", y, got)
	}
}

func TestSymbolicFunctionRoundTrip(t *testing.T) {
	t.Parallel()

	k := NewArcane(value.NewBlob(nil), value.NewTable(0))

	args := []value.Value{value.Word(1), value.Word(2)}
	eff := NewSymbolic("read", args, k)

	if !eff.IsSymbolic() {
		t.Fatal("expected symbolic function")
	}

	name, ok := eff.EffectName()
	if !ok || name != "read" {
		t.Fatalf("EffectName = %q, %v", name, ok)
	}

	vals, ok := eff.EffectValueArgs()
	if !ok || len(vals) != 2 {
		t.Fatalf("EffectValueArgs = %v, %v", vals, ok)
	}
	if vals[0] != value.Word(1) || vals[1] != value.Word(2) {
		t.Fatalf("EffectValueArgs = %v, want [1 2]", vals)
	}

	cont, ok := eff.Continuation()
	if !ok || cont != k {
		t.Fatalf("Continuation = %v, %v, want %v", cont, ok, k)
	}
}

func TestArcaneCloneIsolatesDescriptors(t *testing.T) {
	t.Parallel()

	f := NewArcane(value.NewBlob(nil), value.NewTable(0))
	i := f.Descriptors.Insert(value.Word(1))

	clone, err := f.Clone()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := clone.Descriptors.Put(i, value.Word(2)); err != nil {
		t.Fatal(err)
	}

	orig, err := f.Descriptors.Get(i)
	if err != nil {
		t.Fatal(err)
	}
	if orig != value.Word(1) {
		t.Fatalf("original descriptor mutated by clone: %v", orig)
	}
}

func TestPendingArgsQueue(t *testing.T) {
	t.Parallel()

	f := NewArcane(value.NewBlob(nil), value.NewTable(0))
	f.AppendPendingArg(value.Word(1))
	f.AppendPendingArg(value.Word(2))

	v, ok := f.PopPendingArg()
	if !ok || v != value.Word(1) {
		t.Fatalf("PopPendingArg = %v, %v, want 1", v, ok)
	}

	v, ok = f.PopPendingArg()
	if !ok || v != value.Word(2) {
		t.Fatalf("PopPendingArg = %v, %v, want 2", v, ok)
	}

	if _, ok := f.PopPendingArg(); ok {
		t.Fatal("expected empty queue")
	}
}
