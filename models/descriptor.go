package models

import (
	"errors"
	"fmt"
)

// FieldKind tells the mapper how a declared field travels between the local
// object and its remote record.
type FieldKind int

const (
	KindScalar FieldKind = iota
	KindList
	KindLocation
	KindAttachment
	KindReference
	KindReferenceList
)

// KeyKind is the declared type of an entity's primary key.
type KeyKind int

const (
	KeyString KeyKind = iota
	KeyInt
)

// DatabaseScope selects which remote database a zone lives in.
type DatabaseScope string

const (
	ScopePrivate DatabaseScope = "private"
	ScopePublic  DatabaseScope = "public"
)

// maxReferenceTargets bounds how many distinct referenced entity types one
// descriptor may declare.
const maxReferenceTargets = 3

const maxPrimaryKeyLen = 255

var (
	ErrEmptyTypeName       = errors.New("entity type name is empty")
	ErrBadPrimaryKeyField  = errors.New("invalid primary key field")
	ErrTooManyTargetTypes  = errors.New("too many referenced entity types")
	ErrMissingTargetType   = errors.New("reference field without target type")
	ErrDuplicateField      = errors.New("duplicate field name")
)

// FieldDescriptor declares one synced field. The descriptor table replaces
// runtime reflection: mapping logic is a lookup over these entries.
type FieldDescriptor struct {
	Name       string
	Kind       FieldKind
	TargetType string // entity type referenced by KindReference/KindReferenceList
	AllowEmpty bool   // apply the field even when the remote value is absent
}

// EntityDescriptor describes one synced entity type: its zone, its primary
// key and the table of declared fields.
type EntityDescriptor struct {
	TypeName        string
	ZoneName        string
	PrimaryKeyField string
	PrimaryKeyKind  KeyKind
	Scope           DatabaseScope
	Fields          []FieldDescriptor
}

// Zone returns the zone identifier, defaulting to "<TypeName>sZone" when no
// explicit ZoneName was set.
func (d EntityDescriptor) Zone() string {
	if d.ZoneName != "" {
		return d.ZoneName
	}
	return d.TypeName + "sZone"
}

// Field looks up a declared field by name.
func (d EntityDescriptor) Field(name string) (FieldDescriptor, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Validate checks the descriptor invariants: non-empty type name, a legal
// primary key field (ASCII, at most 255 chars, no leading underscore),
// reference fields carrying a target type, and no more than three distinct
// referenced entity types.
func (d EntityDescriptor) Validate() error {
	if d.TypeName == "" {
		return ErrEmptyTypeName
	}
	if err := validatePrimaryKeyField(d.PrimaryKeyField); err != nil {
		return err
	}
	if d.Scope != ScopePrivate && d.Scope != ScopePublic {
		return fmt.Errorf("entity %s: unknown database scope %q", d.TypeName, d.Scope)
	}

	seen := make(map[string]struct{}, len(d.Fields))
	targets := make(map[string]struct{})
	for _, f := range d.Fields {
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("%w: %s.%s", ErrDuplicateField, d.TypeName, f.Name)
		}
		seen[f.Name] = struct{}{}

		if f.Kind == KindReference || f.Kind == KindReferenceList {
			if f.TargetType == "" {
				return fmt.Errorf("%w: %s.%s", ErrMissingTargetType, d.TypeName, f.Name)
			}
			targets[f.TargetType] = struct{}{}
		}
	}
	if len(targets) > maxReferenceTargets {
		return fmt.Errorf("%w: %s declares %d", ErrTooManyTargetTypes, d.TypeName, len(targets))
	}

	return nil
}

func validatePrimaryKeyField(name string) error {
	if name == "" || len(name) > maxPrimaryKeyLen {
		return fmt.Errorf("%w: %q", ErrBadPrimaryKeyField, name)
	}
	if name[0] == '_' {
		return fmt.Errorf("%w: %q starts with underscore", ErrBadPrimaryKeyField, name)
	}
	for i := 0; i < len(name); i++ {
		if name[i] > 127 {
			return fmt.Errorf("%w: %q is not ASCII", ErrBadPrimaryKeyField, name)
		}
	}
	return nil
}
