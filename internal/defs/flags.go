package defs

// Open-flag access modes (mutually exclusive, low two bits) and status bits,
// per spec.md §6.
const (
	O_RDONLY int = 0
	O_WRONLY int = 1
	O_RDWR   int = 2

	O_ACCMODE int = 0x3

	O_CREAT  int = 1 << 3
	O_TRUNC  int = 1 << 4
	O_APPEND int = 1 << 5
)

// Mode bits (POSIX file-type bits used by stat/mknod).
const (
	S_IFDIR uint = 1 << 0
	S_IFREG uint = 1 << 1
	S_IFCHR uint = 1 << 2
	S_IFBLK uint = 1 << 3
)

// lseek whence values.
const (
	SEEK_SET int = 0
	SEEK_CUR int = 1
	SEEK_END int = 2
)

// waitpid options; only 0 is supported (spec.md §4.F).
const (
	WAIT_NONE int = 0
)

// Distinguished pids (spec.md §3 invariants).
const (
	PID_IDLE int = 0
	PID_INIT int = 1
	// PID_KERNEL_DAEMON is excluded from KillAll, same as init and idle.
	PID_KERNEL_DAEMON int = 2
)
