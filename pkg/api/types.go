package api

// EntityKind identifies which collection of exportable entities a call
// operates on.
type EntityKind string

const (
	// KindExperiment selects experiment entities.
	KindExperiment EntityKind = "experiment"
	// KindDataset selects dataset entities.
	KindDataset EntityKind = "dataset"
)

// String returns the kind as its API path segment.
func (k EntityKind) String() string {
	return string(k)
}

// Plural returns the kind's plural form, used for output directory names.
func (k EntityKind) Plural() string {
	return string(k) + "s"
}

// Project is a top-level container for experiments and datasets.
type Project struct {
	// ID is the project's unique identifier.
	ID string `json:"id"`

	// Name is the human-readable project name.
	Name string `json:"name"`
}

// Entity is an experiment or dataset belonging to a project.
type Entity struct {
	// ID is the entity's unique identifier.
	ID string `json:"id"`

	// Name is the human-readable entity name. Names are not unique
	// within a project.
	Name string `json:"name"`
}

// Record is a single row-like object returned by the analytics API.
// Records within one collection do not share a fixed schema; values may
// be scalars, nested objects, or arrays.
type Record = map[string]any

// Page is one slice of a cursor-paginated collection, normalized from
// whichever envelope shape the server returned.
type Page struct {
	// Records are the page's records in server order.
	Records []Record

	// Cursor is the opaque continuation token for the next page.
	// Empty means the server offered no continuation.
	Cursor string
}
