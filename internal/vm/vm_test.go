package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/kctx"
	"github.com/dnrj/nucleus/internal/vm"
)

func TestMmapAnonAndPageFaultZeroFill(t *testing.T) {
	ctx := &kctx.Ctx_t{}
	m := vm.NewVmmap(nil)

	base, err := vm.DoMmap(ctx, m, 0, 4, vm.ProtRead|vm.ProtWrite, vm.MapAnon|vm.MapPrivate, nil, 0)
	require.Zero(t, err)
	require.GreaterOrEqual(t, base, uint64(vm.UserMemLow))

	pf, writable, err := vm.PageFault(ctx, m, base+1, vm.CauseWrite)
	require.Zero(t, err)
	require.True(t, writable)
	require.Equal(t, [vm.PageSize]byte{}, pf.Data)
}

func TestPageFaultOutsideAnyAreaIsEFAULT(t *testing.T) {
	ctx := &kctx.Ctx_t{}
	m := vm.NewVmmap(nil)
	_, _, err := vm.PageFault(ctx, m, vm.UserMemLow+50, vm.CauseRead)
	require.Equal(t, -defs.EFAULT, err)
}

func TestPageFaultViolatingProtectionIsEFAULT(t *testing.T) {
	ctx := &kctx.Ctx_t{}
	m := vm.NewVmmap(nil)
	base, err := vm.DoMmap(ctx, m, 0, 2, vm.ProtRead, vm.MapAnon|vm.MapPrivate, nil, 0)
	require.Zero(t, err)

	_, _, err = vm.PageFault(ctx, m, base, vm.CauseWrite)
	require.Equal(t, -defs.EFAULT, err)
}

func TestMunmapSplitsArea(t *testing.T) {
	ctx := &kctx.Ctx_t{}
	m := vm.NewVmmap(nil)
	base, err := vm.DoMmap(ctx, m, 0, 10, vm.ProtRead|vm.ProtWrite, vm.MapAnon|vm.MapPrivate, nil, 0)
	require.Zero(t, err)

	// Remove a hole out of the middle of the 10-page area.
	require.Zero(t, vm.DoMunmap(ctx, m, base+3, 2))

	require.NotNil(t, m.Lookup(base))
	require.NotNil(t, m.Lookup(base+2))
	require.Nil(t, m.Lookup(base+3))
	require.Nil(t, m.Lookup(base+4))
	require.NotNil(t, m.Lookup(base+5))
	require.NotNil(t, m.Lookup(base+9))
}

func TestMunmapSplitRefcountsExactlyOnce(t *testing.T) {
	ctx := &kctx.Ctx_t{}
	m := vm.NewVmmap(nil)
	base, err := vm.DoMmap(ctx, m, 0, 10, vm.ProtRead|vm.ProtWrite, vm.MapAnon|vm.MapPrivate, nil, 0)
	require.Zero(t, err)
	obj := m.Lookup(base).Obj
	require.Equal(t, 1, obj.Refcount())

	// Split the area in two by removing a hole from its middle (Case 1):
	// both halves now reference obj, so the split must add exactly one
	// reference, not two.
	require.Zero(t, vm.DoMunmap(ctx, m, base+3, 2))
	require.Equal(t, 2, obj.Refcount())

	head := m.Lookup(base)
	tail := m.Lookup(base + 5)
	require.Same(t, obj, head.Obj)
	require.Same(t, obj, tail.Obj)

	require.Zero(t, vm.DoMunmap(ctx, m, base, 3))
	require.Zero(t, vm.DoMunmap(ctx, m, base+5, 5))
	require.Equal(t, 0, obj.Refcount(), "both halves unmapped, no residents: fully reclaimable")
}

func TestFindRangeFirstFit(t *testing.T) {
	m := vm.NewVmmap(nil)
	lo := m.FindRange(4, vm.DirLoHi)
	require.Equal(t, int64(vm.UserMemLow), lo)

	ctx := &kctx.Ctx_t{}
	_, err := vm.DoMmap(ctx, m, vm.UserMemLow, 4, vm.ProtRead, vm.MapAnon|vm.MapPrivate, nil, 0)
	require.Zero(t, err)

	lo2 := m.FindRange(4, vm.DirLoHi)
	require.Equal(t, int64(vm.UserMemLow+4), lo2)
}
