package vfs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/memfs"
	"github.com/dnrj/nucleus/internal/ustr"
	"github.com/dnrj/nucleus/internal/vfs"
)

func newCtx(t *testing.T) *vfs.Ctx_t {
	t.Helper()
	fs := memfs.New()
	return vfs.NewCtx(fs.Root)
}

func TestWriteCloseOpenReadRoundTrip(t *testing.T) {
	ctx := newCtx(t)

	fd, err := vfs.DoOpen(ctx, ustr.New("/greeting"), defs.O_CREAT|defs.O_RDWR)
	require.Zero(t, err)

	payload := []byte("hello, nucleus")
	n, err := vfs.DoWrite(ctx, fd, payload)
	require.Zero(t, err)
	require.Equal(t, len(payload), n)
	require.Zero(t, vfs.DoClose(ctx, fd))

	fd2, err := vfs.DoOpen(ctx, ustr.New("/greeting"), defs.O_RDONLY)
	require.Zero(t, err)
	buf := make([]byte, len(payload))
	n, err = vfs.DoRead(ctx, fd2, buf)
	require.Zero(t, err)
	require.Equal(t, payload, buf[:n])
	require.Zero(t, vfs.DoClose(ctx, fd2))
}

func TestMknodDeviceAndStat(t *testing.T) {
	ctx := newCtx(t)

	err := vfs.DoMknod(ctx, ustr.New("/null"), defs.S_IFCHR, defs.DevNull)
	require.Zero(t, err)

	st, err := vfs.DoStat(ctx, ustr.New("/null"))
	require.Zero(t, err)
	require.Equal(t, defs.S_IFCHR, st.Mode)
	require.Equal(t, defs.DevNull, st.Rdev)

	// Rejects a non-device mode (the source's tautological check, fixed).
	err = vfs.DoMknod(ctx, ustr.New("/bad"), defs.S_IFREG, 0)
	require.Equal(t, -defs.EINVAL, err)
}

func TestRmdirDotAndDotDot(t *testing.T) {
	ctx := newCtx(t)
	require.Zero(t, vfs.DoMkdir(ctx, ustr.New("/sub")))

	require.Equal(t, -defs.EINVAL, vfs.DoRmdir(ctx, ustr.New("/sub/.")))
	require.Equal(t, -defs.ENOTEMPTY, vfs.DoRmdir(ctx, ustr.New("/sub/..")))
	require.Zero(t, vfs.DoRmdir(ctx, ustr.New("/sub")))
}

func TestDupSharesFileObject(t *testing.T) {
	ctx := newCtx(t)
	fd, err := vfs.DoOpen(ctx, ustr.New("/f"), defs.O_CREAT|defs.O_RDWR)
	require.Zero(t, err)

	dupfd, err := vfs.DoDup(ctx, fd)
	require.Zero(t, err)

	n, err := vfs.DoWrite(ctx, fd, []byte("abc"))
	require.Zero(t, err)
	require.Equal(t, 3, n)

	// dupfd shares fd's position since they share the same File_t.
	_, err = vfs.DoLseek(ctx, dupfd, 0, defs.SEEK_SET)
	require.Zero(t, err)
	buf := make([]byte, 3)
	n, err = vfs.DoRead(ctx, dupfd, buf)
	require.Zero(t, err)
	require.Equal(t, "abc", string(buf[:n]))

	require.Zero(t, vfs.DoClose(ctx, fd))
	require.Zero(t, vfs.DoClose(ctx, dupfd))
}

func TestLinkAndUnlinkTrackNlink(t *testing.T) {
	ctx := newCtx(t)
	fd, err := vfs.DoOpen(ctx, ustr.New("/a"), defs.O_CREAT|defs.O_RDWR)
	require.Zero(t, err)
	require.Zero(t, vfs.DoClose(ctx, fd))

	require.Zero(t, vfs.DoLink(ctx, ustr.New("/a"), ustr.New("/b")))

	sta, err := vfs.DoStat(ctx, ustr.New("/a"))
	require.Zero(t, err)
	require.Equal(t, 2, sta.Nlink)

	require.Zero(t, vfs.DoUnlink(ctx, ustr.New("/a")))
	stb, err := vfs.DoStat(ctx, ustr.New("/b"))
	require.Zero(t, err)
	require.Equal(t, 1, stb.Nlink)
}
