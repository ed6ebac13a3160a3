package models

import (
	"fmt"
	"strconv"
)

// Object is a local mutable record. Reference fields hold the target's
// primary key as a string, reference lists hold []string, location fields
// hold Location and attachment fields hold Attachment. The local store owns
// every Object; the sync core reads and mutates it only through the store's
// write transactions.
type Object struct {
	TypeName string
	Values   map[string]any
	Deleted  bool
}

// NewObject returns an empty object of the given entity type.
func NewObject(typeName string) *Object {
	return &Object{TypeName: typeName, Values: make(map[string]any)}
}

// Get returns the value of field, or nil when unset.
func (o *Object) Get(field string) any {
	if o.Values == nil {
		return nil
	}
	return o.Values[field]
}

// Set assigns the value of field.
func (o *Object) Set(field string, value any) {
	if o.Values == nil {
		o.Values = make(map[string]any)
	}
	o.Values[field] = value
}

// PrimaryKey returns the object's primary key in its stringified record-name
// form: string keys map 1:1, integer keys are rendered in decimal.
func (o *Object) PrimaryKey(desc EntityDescriptor) (string, error) {
	v := o.Get(desc.PrimaryKeyField)
	switch key := v.(type) {
	case string:
		if key == "" {
			return "", fmt.Errorf("object %s: empty primary key", o.TypeName)
		}
		return key, nil
	case int:
		return strconv.Itoa(key), nil
	case int64:
		return strconv.FormatInt(key, 10), nil
	case nil:
		return "", fmt.Errorf("object %s: missing primary key field %s", o.TypeName, desc.PrimaryKeyField)
	default:
		return "", fmt.Errorf("object %s: unsupported primary key type %T", o.TypeName, v)
	}
}

// ParseRecordName converts a record name back into the primary key value
// declared by desc. Integer keys parse from the decimal string form; a
// parse failure is an error the caller must treat as fatal.
func ParseRecordName(desc EntityDescriptor, recordName string) (any, error) {
	switch desc.PrimaryKeyKind {
	case KeyInt:
		n, err := strconv.ParseInt(recordName, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("record name %q is not a valid integer key: %w", recordName, err)
		}
		return n, nil
	default:
		return recordName, nil
	}
}
