package types

// ------------------------
// Link (wireless transport) events carried on the bus
// ------------------------

type LinkEventKind uint8

const (
	LinkConnected LinkEventKind = iota + 1
	LinkDisconnected
	LinkConfigApplied // config characteristic write already applied to the store
	LinkCommand       // command characteristic write
)

type LinkEvent struct {
	Kind LinkEventKind
	Body string // command token for LinkCommand
	MTU  int
}

// ConsoleCommand is a tokenised debug-console line.
type ConsoleCommand struct {
	Name string
	Args []string
}
