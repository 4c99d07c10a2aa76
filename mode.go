package semidbm

// Mode selects the file-existence preflight and mutation rights a
// handle opens with.
type Mode int

const (
	// Read requires an existing directory containing data; the
	// returned handle rejects all mutating operations.
	Read Mode = iota
	// ReadWrite requires an existing directory and a regular data
	// file; mutations are allowed.
	ReadWrite
	// Create creates the directory and data file if missing; mutations
	// are allowed.
	Create
	// New removes any existing data file in the directory first, then
	// behaves like Create.
	New
)

func (m Mode) String() string {
	switch m {
	case Read:
		return "read"
	case ReadWrite:
		return "read_write"
	case Create:
		return "create"
	case New:
		return "new"
	default:
		return "invalid"
	}
}

func (m Mode) valid() bool {
	return m >= Read && m <= New
}

func (m Mode) readOnly() bool {
	return m == Read
}
