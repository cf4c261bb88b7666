package mm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dnrj/nucleus/internal/kctx"
	"github.com/dnrj/nucleus/internal/mm"
)

func TestAnonZeroFillAndRefcount(t *testing.T) {
	ctx := &kctx.Ctx_t{}
	a := mm.NewAnon()
	require.Equal(t, 1, a.Refcount())
	require.Equal(t, 0, a.ResidentPages())

	pf, err := a.Lookuppage(ctx, 3, false)
	require.Zero(t, err)
	require.Equal(t, [mm.PageSize]byte{}, pf.Data)
	require.Equal(t, 1, a.ResidentPages())
	require.Equal(t, 2, a.Refcount())

	pf2, err := a.Lookuppage(ctx, 3, false)
	require.Zero(t, err)
	require.Same(t, pf, pf2)
}

func TestAnonGarbageWhenRefcountMeetsResidentPages(t *testing.T) {
	ctx := &kctx.Ctx_t{}
	a := mm.NewAnon()
	_, err := a.Lookuppage(ctx, 0, false)
	require.Zero(t, err)
	require.Equal(t, 2, a.Refcount())
	require.Equal(t, 1, a.ResidentPages())

	a.Put(ctx) // drops the one external referent; refcount(1) == resident(1)
	require.Equal(t, 0, a.ResidentPages())
}

func TestShadowReadDelegatesWithoutCopying(t *testing.T) {
	ctx := &kctx.Ctx_t{}
	bottom := mm.NewAnon()
	bpf, err := bottom.Lookuppage(ctx, 0, true)
	require.Zero(t, err)
	bpf.Data[0] = 0xAB

	s := mm.NewShadow(bottom)
	require.Equal(t, 3, bottom.Refcount()) // NewAnon's 1 + the page pin + shadow's Ref
	require.Equal(t, 0, s.ResidentPages())

	spf, err := s.Lookuppage(ctx, 0, false)
	require.Zero(t, err)
	require.Same(t, bpf, spf)
	require.Equal(t, 0, s.ResidentPages(), "a read lookup must not materialize a private copy")
}

func TestShadowWriteMaterializesPrivateCopy(t *testing.T) {
	ctx := &kctx.Ctx_t{}
	bottom := mm.NewAnon()
	bpf, err := bottom.Lookuppage(ctx, 0, true)
	require.Zero(t, err)
	bpf.Data[0] = 0xAB

	s := mm.NewShadow(bottom)
	wpf, err := s.Lookuppage(ctx, 0, true)
	require.Zero(t, err)
	require.NotSame(t, bpf, wpf)
	require.Equal(t, byte(0xAB), wpf.Data[0], "the private copy starts from the chain's current contents")

	wpf.Data[0] = 0xCD
	require.Equal(t, byte(0xAB), bpf.Data[0], "writing the shadow's copy must not mutate the bottom object's page")
}

func TestShadowPutRecursesOntoShadowed(t *testing.T) {
	ctx := &kctx.Ctx_t{}
	bottom := mm.NewAnon()
	s := mm.NewShadow(bottom)
	require.Equal(t, 2, bottom.Refcount())

	s.Put(ctx) // s's only external referent goes away with no resident pages
	require.Equal(t, 1, bottom.Refcount(), "shadow.Put must drop its reference on what it shadows")
}
