package membrane

// Direction is the way a value crosses the membrane.
type Direction int

const (
	// Inward carries host values into the sandbox. Wrappers are safe.
	Inward Direction = iota
	// Outward carries sandbox values to the host.
	Outward
)

func (d Direction) String() string {
	switch d {
	case Inward:
		return "inward"
	case Outward:
		return "outward"
	default:
		return "unknown"
	}
}

// Observer receives bridging events. Implementations must be cheap; they run
// on every crossing.
type Observer interface {
	Wrapped(Direction)
	Hit(Direction)
	Unbridged(Direction)
}

type nopObserver struct{}

func (nopObserver) Wrapped(Direction)   {}
func (nopObserver) Hit(Direction)       {}
func (nopObserver) Unbridged(Direction) {}
