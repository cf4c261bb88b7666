// Package ustr provides the byte-slice path/name type used throughout the
// VFS layer. Paths are treated as raw bytes, not runes: the grammar in
// spec.md §6 is UTF-8 agnostic.
package ustr

// Ustr is an immutable-by-convention path or path-component string.
type Ustr []byte

// MkUstr returns an empty Ustr.
func MkUstr() Ustr {
	return Ustr{}
}

// New wraps a Go string as a Ustr.
func New(s string) Ustr {
	return Ustr(s)
}

// Root returns the Ustr for "/".
func Root() Ustr {
	return Ustr("/")
}

// Dot returns the Ustr for ".".
func Dot() Ustr {
	return Ustr(".")
}

// DotDot is a reusable Ustr for "..".
var DotDot = Ustr("..")

// IsDot reports whether us is exactly ".".
func (us Ustr) IsDot() bool {
	return len(us) == 1 && us[0] == '.'
}

// IsDotDot reports whether us is exactly "..".
func (us Ustr) IsDotDot() bool {
	return len(us) == 2 && us[0] == '.' && us[1] == '.'
}

// IsAbsolute reports whether us begins with '/'.
func (us Ustr) IsAbsolute() bool {
	return len(us) > 0 && us[0] == '/'
}

// Eq compares two Ustr values byte for byte.
func (us Ustr) Eq(other Ustr) bool {
	if len(us) != len(other) {
		return false
	}
	for i, b := range us {
		if b != other[i] {
			return false
		}
	}
	return true
}

// String renders the Ustr as a Go string, for logging and error messages.
func (us Ustr) String() string {
	return string(us)
}

// Extend returns a new Ustr equal to us + "/" + p.
func (us Ustr) Extend(p Ustr) Ustr {
	out := make(Ustr, 0, len(us)+1+len(p))
	out = append(out, us...)
	out = append(out, '/')
	out = append(out, p...)
	return out
}

// Component is one slash-separated piece of a path, paired with its length.
// Components are never copied with vput-before-read: callers scan the next
// slash (or end of string) to find the boundary instead of relying on
// NUL-terminated C-string length, which is the bug this type's users must
// avoid (see spec.md §9, "known bugs in the source").
type Component struct {
	Name Ustr
	Rest Ustr // remainder of the path after this component and its slash(es)
}

// NextComponent scans p for the next path component, skipping a leading run
// of slashes and stopping at the next slash or end of string. It returns the
// component and whatever remains of the path (empty if none). Trailing
// slashes are tolerated: "foo/" yields component "foo" and empty Rest.
func NextComponent(p Ustr) (Component, bool) {
	i := 0
	for i < len(p) && p[i] == '/' {
		i++
	}
	if i == len(p) {
		return Component{}, false
	}
	start := i
	for i < len(p) && p[i] != '/' {
		i++
	}
	name := p[start:i]
	rest := p[i:]
	return Component{Name: name, Rest: rest}, true
}
