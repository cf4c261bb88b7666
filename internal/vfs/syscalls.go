// do_*-named syscalls (spec.md §4.I), each restoring every vnode/file
// refcount it acquired on every exit path, including error paths.
package vfs

import (
	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/limits"
	"github.com/dnrj/nucleus/internal/stat"
	"github.com/dnrj/nucleus/internal/ustr"
)

// DoOpen resolves path, honoring O_CREAT, and installs the result in a
// fresh fd. Errors: EINVAL (bad flags or empty path), EMFILE, ENAMETOOLONG,
// ENOENT, EISDIR, ENXIO (see DoOpen's O_TRUNC-on-device rule, an Open
// Question resolution recorded in SPEC_FULL.md §9).
func DoOpen(ctx *Ctx_t, path ustr.Ustr, flags int) (int, defs.Err_t) {
	access := flags & defs.O_ACCMODE
	if access != defs.O_RDONLY && access != defs.O_WRONLY && access != defs.O_RDWR {
		return -1, -defs.EINVAL
	}
	if len(path) == 0 {
		return -1, -defs.EINVAL
	}
	if len(path) > limits.MAXPATHLEN {
		return -1, -defs.ENAMETOOLONG
	}

	fd, err := ctx.Fds.AllocSlot()
	if err != 0 {
		return -1, err
	}
	f, _ := Fget(ctx.Fds, -1)

	vn, err := OpenNamev(ctx.Root, path, flags, ctx.Cwd.Get())
	if err != 0 {
		return -1, err
	}
	if vn.IsDir() && access != defs.O_RDONLY {
		Vput(vn)
		return -1, -defs.EISDIR
	}
	if flags&defs.O_TRUNC != 0 {
		if vn.IsDevice() {
			Vput(vn)
			return -1, -defs.ENXIO
		}
		if err := vn.Ops.Truncate(vn); err != 0 {
			Vput(vn)
			return -1, err
		}
	}

	f.Vn = vn
	f.Mode = access | (flags & defs.O_APPEND)
	ctx.Fds.Install(fd, f)
	return fd, 0
}

func checkFd(fd int) defs.Err_t {
	if fd < 0 || fd >= limits.NFILES {
		return -defs.EBADF
	}
	return 0
}

// DoRead reads into buf from fd's current position, advancing it.
func DoRead(ctx *Ctx_t, fd int, buf []byte) (int, defs.Err_t) {
	if e := checkFd(fd); e != 0 {
		return -1, e
	}
	f, err := Fget(ctx.Fds, fd)
	if err != 0 {
		return -1, err
	}
	defer Fput(f)

	if f.Mode&defs.O_ACCMODE == defs.O_WRONLY {
		return -1, -defs.EINVAL
	}
	if f.Vn.IsDir() {
		return -1, -defs.EISDIR
	}
	n, err2 := f.Vn.Ops.Read(f.Vn, f.Pos, buf)
	if err2 != 0 {
		return -1, err2
	}
	f.Pos += uint64(n)
	return n, 0
}

// DoWrite writes buf to fd, seeking to end first if O_APPEND is set.
func DoWrite(ctx *Ctx_t, fd int, buf []byte) (int, defs.Err_t) {
	if e := checkFd(fd); e != 0 {
		return -1, e
	}
	f, err := Fget(ctx.Fds, fd)
	if err != 0 {
		return -1, err
	}
	defer Fput(f)

	if f.Mode&defs.O_ACCMODE == defs.O_RDONLY {
		return -1, -defs.EINVAL
	}
	if f.Vn.IsDir() {
		return -1, -defs.EISDIR
	}
	if f.Mode&defs.O_APPEND != 0 {
		if st, errs := f.Vn.Ops.Stat(f.Vn); errs == 0 {
			f.Pos = st.Size
		}
	}
	n, err2 := f.Vn.Ops.Write(f.Vn, f.Pos, buf)
	if err2 != 0 {
		return -1, err2
	}
	f.Pos += uint64(n)
	return n, 0
}

// DoClose releases fd. The source double-fputs (spec.md §9 bug c); the
// correct contract is exactly one Fput per Close, matching the process's
// own table reference.
func DoClose(ctx *Ctx_t, fd int) defs.Err_t {
	if e := checkFd(fd); e != 0 {
		return e
	}
	f := ctx.Fds.Raw(fd)
	if f == nil {
		return -defs.EBADF
	}
	ctx.Fds.Clear(fd)
	Fput(f)
	return 0
}

// DoDup installs the same file object backing ofd into a new, lowest-free fd.
func DoDup(ctx *Ctx_t, ofd int) (int, defs.Err_t) {
	if e := checkFd(ofd); e != 0 {
		return -1, e
	}
	f, err := Fget(ctx.Fds, ofd)
	if err != 0 {
		return -1, err
	}
	nfd, err2 := ctx.Fds.AllocSlot()
	if err2 != 0 {
		Fput(f)
		return -1, err2
	}
	ctx.Fds.Install(nfd, f)
	return nfd, 0
}

// DoDup2 is as DoDup but installs into nfd specifically, closing whatever
// nfd previously held first (spec.md §9 bug e: the source fails to rebalance
// the displaced file's refcount; here Fput on the old slot fixes that).
func DoDup2(ctx *Ctx_t, ofd, nfd int) (int, defs.Err_t) {
	if e := checkFd(ofd); e != 0 {
		return -1, e
	}
	if e := checkFd(nfd); e != 0 {
		return -1, e
	}
	if ofd == nfd {
		if !ctx.Fds.InUse(ofd) {
			return -1, -defs.EBADF
		}
		return nfd, 0
	}
	f, err := Fget(ctx.Fds, ofd)
	if err != 0 {
		return -1, err
	}
	if old := ctx.Fds.Raw(nfd); old != nil {
		ctx.Fds.Clear(nfd)
		Fput(old)
	}
	ctx.Fds.Install(nfd, f)
	return nfd, 0
}

// DoMknod creates a device vnode. Only S_IFCHR and S_IFBLK are legal modes;
// the source's check here is tautologically false (spec.md §9 bug d) — the
// correct form rejects anything that is neither.
func DoMknod(ctx *Ctx_t, path ustr.Ustr, mode uint, rdev defs.Devid_t) defs.Err_t {
	if mode != defs.S_IFCHR && mode != defs.S_IFBLK {
		return -defs.EINVAL
	}
	if len(path) > limits.MAXPATHLEN {
		return -defs.ENAMETOOLONG
	}
	dir, name, err := DirNamev(ctx.Root, path, ctx.Cwd.Get())
	if err != 0 {
		return err
	}
	if len(name) > limits.NAME_LEN {
		Vput(dir)
		return -defs.ENAMETOOLONG
	}
	if existing, err2 := Lookup(dir, name); err2 == 0 {
		Vput(existing)
		Vput(dir)
		return -defs.EEXIST
	} else if err2 != -defs.ENOENT {
		Vput(dir)
		return err2
	}
	vn, err3 := dir.Ops.Mknod(dir, name, mode, rdev)
	Vput(dir)
	if err3 != 0 {
		return err3
	}
	Vput(vn)
	return 0
}

// DoMkdir creates a directory at path, EEXIST if the basename is already in use.
func DoMkdir(ctx *Ctx_t, path ustr.Ustr) defs.Err_t {
	dir, name, err := DirNamev(ctx.Root, path, ctx.Cwd.Get())
	if err != 0 {
		return err
	}
	if existing, err2 := Lookup(dir, name); err2 == 0 {
		Vput(existing)
		Vput(dir)
		return -defs.EEXIST
	} else if err2 != -defs.ENOENT {
		Vput(dir)
		return err2
	}
	vn, err3 := dir.Ops.Mkdir(dir, name)
	Vput(dir)
	if err3 != 0 {
		return err3
	}
	Vput(vn)
	return 0
}

// DoRmdir removes an empty directory. A final "." is EINVAL; a final ".."
// is ENOTEMPTY (spec.md §8 scenario 3).
func DoRmdir(ctx *Ctx_t, path ustr.Ustr) defs.Err_t {
	dir, name, err := DirNamev(ctx.Root, path, ctx.Cwd.Get())
	if err != 0 {
		return err
	}
	if name.IsDot() {
		Vput(dir)
		return -defs.EINVAL
	}
	if name.IsDotDot() {
		Vput(dir)
		return -defs.ENOTEMPTY
	}
	err2 := dir.Ops.Rmdir(dir, name)
	Vput(dir)
	return err2
}

// DoUnlink removes a non-directory link. EISDIR if the basename is a directory.
func DoUnlink(ctx *Ctx_t, path ustr.Ustr) defs.Err_t {
	dir, name, err := DirNamev(ctx.Root, path, ctx.Cwd.Get())
	if err != 0 {
		return err
	}
	target, err2 := Lookup(dir, name)
	if err2 != 0 {
		Vput(dir)
		return err2
	}
	if target.IsDir() {
		Vput(target)
		Vput(dir)
		return -defs.EISDIR
	}
	Vput(target)
	err3 := dir.Ops.Unlink(dir, name)
	Vput(dir)
	return err3
}

// DoLink creates a new name, to, for the existing file at from. It does not
// check whether from is a directory.
func DoLink(ctx *Ctx_t, from, to ustr.Ustr) defs.Err_t {
	fromVn, err := OpenNamev(ctx.Root, from, 0, ctx.Cwd.Get())
	if err != 0 {
		return err
	}
	destDir, name, err2 := DirNamev(ctx.Root, to, ctx.Cwd.Get())
	if err2 != 0 {
		Vput(fromVn)
		return err2
	}
	if existing, err3 := Lookup(destDir, name); err3 == 0 {
		Vput(existing)
		Vput(destDir)
		Vput(fromVn)
		return -defs.EEXIST
	} else if err3 != -defs.ENOENT {
		Vput(destDir)
		Vput(fromVn)
		return err3
	}
	err4 := destDir.Ops.Link(fromVn, destDir, name)
	Vput(destDir)
	Vput(fromVn)
	return err4
}

// DoRename links new then unlinks old (spec.md §4.I, §9 Open Questions: this
// is documented as not crash-safe — if the unlink fails, both links remain).
func DoRename(ctx *Ctx_t, oldPath, newPath ustr.Ustr) defs.Err_t {
	if err := DoLink(ctx, oldPath, newPath); err != 0 {
		return err
	}
	return DoUnlink(ctx, oldPath)
}

// DoChdir installs path (which must resolve to a directory) as the new cwd.
func DoChdir(ctx *Ctx_t, path ustr.Ustr) defs.Err_t {
	vn, err := OpenNamev(ctx.Root, path, 0, ctx.Cwd.Get())
	if err != 0 {
		return err
	}
	if !vn.IsDir() {
		Vput(vn)
		return -defs.ENOTDIR
	}
	old := ctx.Cwd.Get()
	ctx.Cwd.Set(vn)
	Vput(old)
	return 0
}

// DoLseek repositions fd per whence, rejecting a negative result.
func DoLseek(ctx *Ctx_t, fd int, off int64, whence int) (int64, defs.Err_t) {
	if e := checkFd(fd); e != 0 {
		return -1, e
	}
	f, err := Fget(ctx.Fds, fd)
	if err != 0 {
		return -1, err
	}
	defer Fput(f)

	var base int64
	switch whence {
	case defs.SEEK_SET:
		base = 0
	case defs.SEEK_CUR:
		base = int64(f.Pos)
	case defs.SEEK_END:
		st, errs := f.Vn.Ops.Stat(f.Vn)
		if errs != 0 {
			return -1, errs
		}
		base = int64(st.Size)
	default:
		return -1, -defs.EINVAL
	}
	newPos := base + off
	if newPos < 0 {
		return -1, -defs.EINVAL
	}
	f.Pos = uint64(newPos)
	return newPos, 0
}

// DoStat resolves path and returns its metadata. There are no symlinks in
// this core so the follow/no-follow question does not arise (SPEC_FULL.md
// §9 Open Question resolution): DoStat always stats the named vnode directly.
func DoStat(ctx *Ctx_t, path ustr.Ustr) (stat.Stat_t, defs.Err_t) {
	vn, err := OpenNamev(ctx.Root, path, 0, ctx.Cwd.Get())
	if err != 0 {
		return stat.Stat_t{}, err
	}
	st, err2 := vn.Ops.Stat(vn)
	Vput(vn)
	return st, err2
}

// DoGetdent reads the next directory entry from fd, advancing its position
// by one entry. Returns the encoded entry size on success, 0 at end of
// directory.
func DoGetdent(ctx *Ctx_t, fd int) (Dirent_t, int, defs.Err_t) {
	if e := checkFd(fd); e != 0 {
		return Dirent_t{}, -1, e
	}
	f, err := Fget(ctx.Fds, fd)
	if err != 0 {
		return Dirent_t{}, -1, err
	}
	defer Fput(f)

	if !f.Vn.IsDir() {
		return Dirent_t{}, -1, -defs.ENOTDIR
	}
	d, advance, err2 := f.Vn.Ops.Readdir(f.Vn, f.Pos)
	if err2 != 0 {
		return Dirent_t{}, -1, err2
	}
	if advance == 0 {
		return Dirent_t{}, 0, 0
	}
	f.Pos += uint64(advance)
	return d, d.Size(), 0
}
