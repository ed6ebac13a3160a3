package models

// ChangeToken is an opaque server-issued cursor over a change feed. A nil
// token means "from the beginning".
type ChangeToken []byte

// RecordID identifies a remote record by its stable name inside a zone. The
// name derives deterministically from the owning object's primary key.
type RecordID struct {
	Name string `json:"name"`
	Zone string `json:"zone"`
}

// Record is the versioned remote representation of a local object. Version
// is opaque and server-assigned; the push path ignores it (last-write-wins)
// while the server uses it for conflict detection.
type Record struct {
	ID      RecordID       `json:"id"`
	Type    string         `json:"type"`
	Version string         `json:"version,omitempty"`
	Fields  map[string]any `json:"fields"`
}

// NewRecord returns an empty record for the given id and entity type.
func NewRecord(id RecordID, typeName string) Record {
	return Record{ID: id, Type: typeName, Fields: make(map[string]any)}
}

// Reference is the lightweight wire form of a one-to-one link between
// records.
type Reference struct {
	RecordName string `json:"record_name"`
	Zone       string `json:"zone"`
}

// Asset points at a large binary payload stored out-of-band, addressed by
// the owning object's primary key, the field name and an optional file
// extension.
type Asset struct {
	OwnerKey  string `json:"owner_key"`
	Field     string `json:"field"`
	Extension string `json:"extension,omitempty"`
}

// Location is the two-float projection of a geolocation field.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Attachment is the local-side value of an attachment field. Overwrite
// controls whether existing out-of-band content at the same address is
// replaced when the attachment is stored.
type Attachment struct {
	Data      []byte
	Extension string
	Overwrite bool
}
