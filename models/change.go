package models

// Origin tags a local write transaction with what caused it, so change
// consumers can tell a genuine local edit from a remote change being applied
// and avoid feedback loops.
type Origin string

const (
	OriginLocal  Origin = "local-edit"
	OriginRemote Origin = "applied-from-remote"
)

// Change is one batch of local-store change notifications for a single
// entity type. The slices carry primary keys in record-name form.
type Change struct {
	TypeName string
	Origin   Origin
	Inserted []string
	Modified []string
	Deleted  []string
}

// Empty reports whether the batch carries no keys at all.
func (c Change) Empty() bool {
	return len(c.Inserted) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}
