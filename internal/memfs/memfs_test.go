package memfs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/kctx"
	"github.com/dnrj/nucleus/internal/memfs"
	"github.com/dnrj/nucleus/internal/ustr"
)

func TestCreateLookupRoundTrip(t *testing.T) {
	fs := memfs.New()
	root := fs.Root

	child, err := fs.Create(root, ustr.New("greeting"))
	require.Zero(t, err)

	found, err := fs.Lookup(root, ustr.New("greeting"))
	require.Zero(t, err)
	require.Equal(t, child.Ino, found.Ino)

	_, err = fs.Lookup(root, ustr.New("missing"))
	require.Equal(t, -defs.ENOENT, err)
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs := memfs.New()
	v, err := fs.Create(fs.Root, ustr.New("f"))
	require.Zero(t, err)

	n, err := fs.Write(v, 0, []byte("hello"))
	require.Zero(t, err)
	require.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = fs.Read(v, 0, buf)
	require.Zero(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestDevNullAndDevZero(t *testing.T) {
	fs := memfs.New()
	null, err := fs.Mknod(fs.Root, ustr.New("null"), defs.S_IFCHR, defs.DevNull)
	require.Zero(t, err)
	n, err := fs.Write(null, 0, []byte("discarded"))
	require.Zero(t, err)
	require.Equal(t, len("discarded"), n)
	buf := make([]byte, 4)
	n, err = fs.Read(null, 0, buf)
	require.Zero(t, err)
	require.Zero(t, n)

	zero, err := fs.Mknod(fs.Root, ustr.New("zero"), defs.S_IFCHR, defs.DevZero)
	require.Zero(t, err)
	zbuf := []byte{1, 2, 3}
	n, err = fs.Read(zero, 0, zbuf)
	require.Zero(t, err)
	require.Equal(t, []byte{0, 0, 0}, zbuf[:n])
}

func TestRmdirRequiresEmpty(t *testing.T) {
	fs := memfs.New()
	dir, err := fs.Mkdir(fs.Root, ustr.New("sub"))
	require.Zero(t, err)
	_, err = fs.Create(dir, ustr.New("inside"))
	require.Zero(t, err)

	require.Equal(t, -defs.ENOTEMPTY, fs.Rmdir(fs.Root, ustr.New("sub")))
	require.Zero(t, fs.Unlink(dir, ustr.New("inside")))
	require.Zero(t, fs.Rmdir(fs.Root, ustr.New("sub")))
}

func TestLinkUnlinkNlinkBookkeeping(t *testing.T) {
	fs := memfs.New()
	v, err := fs.Create(fs.Root, ustr.New("a"))
	require.Zero(t, err)

	require.Zero(t, fs.Link(v, fs.Root, ustr.New("b")))
	sta, err := fs.Stat(v)
	require.Zero(t, err)
	require.Equal(t, 2, sta.Nlink)

	require.Zero(t, fs.Unlink(fs.Root, ustr.New("a")))
	stb, err := fs.Stat(v)
	require.Zero(t, err)
	require.Equal(t, 1, stb.Nlink)
}

func TestMmapFileBackedObjectReadsThroughToDisk(t *testing.T) {
	ctx := &kctx.Ctx_t{}
	fs := memfs.New()
	v, err := fs.Create(fs.Root, ustr.New("backing"))
	require.Zero(t, err)
	_, err = fs.Write(v, 0, []byte("on-disk bytes"))
	require.Zero(t, err)

	obj, err := fs.Mmap(v)
	require.Zero(t, err)
	pf, err := obj.Lookuppage(ctx, 0, false)
	require.Zero(t, err)
	require.Equal(t, byte('o'), pf.Data[0])

	_, err = fs.Mknod(fs.Root, ustr.New("dev"), defs.S_IFCHR, defs.DevNull)
	require.Zero(t, err)
	devVnode, err := fs.Lookup(fs.Root, ustr.New("dev"))
	require.Zero(t, err)
	_, err = fs.Mmap(devVnode)
	require.Equal(t, -defs.ENODEV, err)
}
