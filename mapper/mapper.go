// Package mapper converts between local objects and remote versioned
// records, both directions driven by the entity's field descriptor table.
// References to objects that are not yet materialized locally are buffered
// in a pending-relationship Resolver and applied later.
package mapper

import (
	"context"
	"errors"
	"fmt"

	"github.com/hlgc/IceCream/attach"
	"github.com/hlgc/IceCream/localstore"
	"github.com/hlgc/IceCream/logger"
	"github.com/hlgc/IceCream/models"
)

// Registry resolves entity descriptors by type name, used to find the zone
// a referenced record lives in.
type Registry map[string]models.EntityDescriptor

// Side-channel suffixes for attachment metadata travelling next to the
// asset reference.
const (
	overwriteSuffix = "_shouldOverwrite"
	extensionSuffix = "_fileExtension"
)

var ErrUnknownTargetType = errors.New("reference target type not registered")

// Mapper maps one entity type. Construction validates the descriptor and
// requires a resolver per referenced target type.
type Mapper struct {
	desc        models.EntityDescriptor
	registry    Registry
	attachments attach.Store
	resolvers   map[string]*Resolver
	logger      *logger.Logger
}

// New builds a Mapper. resolvers must contain an entry for every distinct
// TargetType the descriptor declares.
func New(desc models.EntityDescriptor, registry Registry, attachments attach.Store, resolvers map[string]*Resolver, log *logger.Logger) (*Mapper, error) {
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("descriptor %s: %w", desc.TypeName, err)
	}

	for _, f := range desc.Fields {
		if f.Kind != models.KindReference && f.Kind != models.KindReferenceList {
			continue
		}
		if _, ok := registry[f.TargetType]; !ok {
			return nil, fmt.Errorf("%w: %s.%s -> %s", ErrUnknownTargetType, desc.TypeName, f.Name, f.TargetType)
		}
		if _, ok := resolvers[f.TargetType]; !ok {
			return nil, fmt.Errorf("no pending resolver for target type %s", f.TargetType)
		}
	}

	return &Mapper{
		desc:        desc,
		registry:    registry,
		attachments: attachments,
		resolvers:   resolvers,
		logger:      log.WithComponent("mapper"),
	}, nil
}

// Descriptor returns the entity descriptor this mapper serves.
func (m *Mapper) Descriptor() models.EntityDescriptor { return m.desc }

// RecordID derives the remote identifier for a primary key. Record names
// derive deterministically and exclusively from the primary key.
func (m *Mapper) RecordID(key string) models.RecordID {
	return models.RecordID{Name: key, Zone: m.desc.Zone()}
}

// ToRecord converts a local object into its remote record. Empty field
// values are omitted so the remote representation reflects absence
// explicitly. References to soft-deleted targets are skipped.
func (m *Mapper) ToRecord(ctx context.Context, tx localstore.ReadTx, obj *models.Object) (models.Record, error) {
	key, err := obj.PrimaryKey(m.desc)
	if err != nil {
		return models.Record{}, err
	}

	rec := models.NewRecord(m.RecordID(key), m.desc.TypeName)
	rec.Fields[m.desc.PrimaryKeyField] = obj.Get(m.desc.PrimaryKeyField)

	for _, f := range m.desc.Fields {
		if f.Name == m.desc.PrimaryKeyField {
			continue
		}
		v := obj.Get(f.Name)
		if isEmpty(v) {
			continue
		}

		switch f.Kind {
		case models.KindScalar, models.KindList:
			rec.Fields[f.Name] = v

		case models.KindLocation:
			loc, ok := asLocation(v)
			if !ok {
				return models.Record{}, fmt.Errorf("field %s.%s: not a location: %T", m.desc.TypeName, f.Name, v)
			}
			rec.Fields[f.Name] = loc

		case models.KindAttachment:
			att, ok := v.(models.Attachment)
			if !ok {
				return models.Record{}, fmt.Errorf("field %s.%s: not an attachment: %T", m.desc.TypeName, f.Name, v)
			}
			if err = m.attachments.Save(ctx, key, f.Name, att.Extension, att.Data, att.Overwrite); err != nil {
				return models.Record{}, err
			}
			rec.Fields[f.Name] = models.Asset{OwnerKey: key, Field: f.Name, Extension: att.Extension}
			rec.Fields[f.Name+overwriteSuffix] = att.Overwrite
			rec.Fields[f.Name+extensionSuffix] = att.Extension

		case models.KindReference:
			targetKey, _ := v.(string)
			ref, skip, err := m.reference(tx, f, targetKey)
			if err != nil {
				return models.Record{}, err
			}
			if !skip {
				rec.Fields[f.Name] = ref
			}

		case models.KindReferenceList:
			keys, _ := v.([]string)
			refs := make([]models.Reference, 0, len(keys))
			for _, targetKey := range keys {
				ref, skip, err := m.reference(tx, f, targetKey)
				if err != nil {
					return models.Record{}, err
				}
				if !skip {
					refs = append(refs, ref)
				}
			}
			if len(refs) > 0 {
				rec.Fields[f.Name] = refs
			}
		}
	}

	return rec, nil
}

// reference builds the lightweight wire reference for one target key. A
// target that exists locally but is soft-deleted is skipped.
func (m *Mapper) reference(tx localstore.ReadTx, f models.FieldDescriptor, targetKey string) (models.Reference, bool, error) {
	if targetKey == "" {
		return models.Reference{}, true, nil
	}

	target, err := tx.Get(f.TargetType, targetKey)
	if err != nil && !errors.Is(err, localstore.ErrNotFound) {
		return models.Reference{}, false, err
	}
	if target != nil && target.Deleted {
		return models.Reference{}, true, nil
	}

	zone := m.registry[f.TargetType].Zone()
	return models.Reference{RecordName: targetKey, Zone: zone}, false, nil
}

// FromRecord converts a remote record back into a local object. Reference
// targets absent from the local store are registered with the matching
// pending resolver and the field is left empty for now. A field is applied
// only when the remote value is present or the field allows empty.
func (m *Mapper) FromRecord(ctx context.Context, tx localstore.ReadTx, rec models.Record) (*models.Object, error) {
	pk, err := models.ParseRecordName(m.desc, rec.ID.Name)
	if err != nil {
		return nil, err
	}

	obj := models.NewObject(m.desc.TypeName)
	obj.Set(m.desc.PrimaryKeyField, pk)

	for _, f := range m.desc.Fields {
		if f.Name == m.desc.PrimaryKeyField {
			continue
		}
		v, present := rec.Fields[f.Name]
		if !present && !f.AllowEmpty {
			continue
		}

		switch f.Kind {
		case models.KindScalar:
			obj.Set(f.Name, v)

		case models.KindList:
			obj.Set(f.Name, asStringList(v))

		case models.KindLocation:
			if !present {
				break
			}
			loc, ok := asLocation(v)
			if !ok {
				return nil, fmt.Errorf("field %s.%s: bad location value %T", m.desc.TypeName, f.Name, v)
			}
			obj.Set(f.Name, loc)

		case models.KindAttachment:
			if !present {
				break
			}
			att, err := m.loadAttachment(ctx, rec, f.Name)
			if err != nil {
				return nil, err
			}
			obj.Set(f.Name, att)

		case models.KindReference:
			ref, ok := asReference(v)
			if !ok {
				break
			}
			if m.targetExists(tx, f.TargetType, ref.RecordName) {
				obj.Set(f.Name, ref.RecordName)
				break
			}
			m.resolvers[f.TargetType].Add(ref.RecordName, f.Name, m.desc.TypeName, rec.ID.Name, false)

		case models.KindReferenceList:
			linked := make([]string, 0)
			for _, ref := range asReferenceList(v) {
				if m.targetExists(tx, f.TargetType, ref.RecordName) {
					linked = append(linked, ref.RecordName)
					continue
				}
				m.resolvers[f.TargetType].Add(ref.RecordName, f.Name, m.desc.TypeName, rec.ID.Name, true)
			}
			obj.Set(f.Name, linked)
		}
	}

	return obj, nil
}

func (m *Mapper) targetExists(tx localstore.ReadTx, targetType, key string) bool {
	_, err := tx.Get(targetType, key)
	return err == nil
}

func (m *Mapper) loadAttachment(ctx context.Context, rec models.Record, field string) (models.Attachment, error) {
	ext, _ := rec.Fields[field+extensionSuffix].(string)
	overwrite, _ := rec.Fields[field+overwriteSuffix].(bool)

	att := models.Attachment{Extension: ext, Overwrite: overwrite}
	data, err := m.attachments.Load(ctx, rec.ID.Name, field, ext)
	if err != nil && !errors.Is(err, attach.ErrNotFound) {
		return models.Attachment{}, err
	}
	att.Data = data
	return att, nil
}
