package mainloop

// Direction is the readiness direction an I/O handle is watched for.
type Direction uint8

const (
	// DirNone watches for neither direction; only errors and hangups are
	// reported.
	DirNone Direction = iota
	// DirRead watches for read availability.
	DirRead
	// DirWrite watches for write availability.
	DirWrite
	// DirBoth watches for both.
	DirBoth
)

// String returns a human-readable representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirNone:
		return "None"
	case DirRead:
		return "Read"
	case DirWrite:
		return "Write"
	case DirBoth:
		return "Both"
	default:
		return "Unknown"
	}
}

// Readable reports whether d includes the read direction.
func (d Direction) Readable() bool { return d == DirRead || d == DirBoth }

// Writable reports whether d includes the write direction.
func (d Direction) Writable() bool { return d == DirWrite || d == DirBoth }

// DirectionOf combines read and write flags.
func DirectionOf(read, write bool) Direction {
	switch {
	case read && write:
		return DirBoth
	case read:
		return DirRead
	case write:
		return DirWrite
	default:
		return DirNone
	}
}

// Readiness is the observed result of a readiness event: either the
// direction(s) that became ready, or an I/O error.
type Readiness struct {
	Err error
	Dir Direction
}

// IOSource is the capability a backend needs to watch a handle.
//
// OnReady is invoked on the loop goroutine with each observed readiness, and
// returns whether the source should stay registered.
type IOSource interface {
	Fd() uintptr
	Direction() Direction
	OnReady(r Readiness) bool
}

// IOFunc adapts a function into an [IOSource].
func IOFunc(fd uintptr, dir Direction, fn func(r Readiness) bool) IOSource {
	return &ioFunc{fd: fd, dir: dir, fn: fn}
}

type ioFunc struct {
	fn  func(r Readiness) bool
	fd  uintptr
	dir Direction
}

func (x *ioFunc) Fd() uintptr          { return x.fd }
func (x *ioFunc) Direction() Direction { return x.dir }

func (x *ioFunc) OnReady(r Readiness) bool {
	if x.fn == nil {
		return false
	}
	return x.fn(r)
}
