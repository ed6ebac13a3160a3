package mapper

import "github.com/hlgc/IceCream/models"

// isEmpty reports whether a field value should be omitted from the remote
// record so absence stays explicit.
func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []string:
		return len(x) == 0
	case []any:
		return len(x) == 0
	case models.Attachment:
		return len(x.Data) == 0
	default:
		return false
	}
}

// The coercions below accept both in-process typed values and the generic
// shapes a JSON transport decodes into.

func asLocation(v any) (models.Location, bool) {
	switch x := v.(type) {
	case models.Location:
		return x, true
	case map[string]any:
		lat, okLat := x["latitude"].(float64)
		lon, okLon := x["longitude"].(float64)
		if !okLat || !okLon {
			return models.Location{}, false
		}
		return models.Location{Latitude: lat, Longitude: lon}, true
	default:
		return models.Location{}, false
	}
}

func asReference(v any) (models.Reference, bool) {
	switch x := v.(type) {
	case models.Reference:
		return x, true
	case map[string]any:
		name, ok := x["record_name"].(string)
		if !ok {
			return models.Reference{}, false
		}
		zone, _ := x["zone"].(string)
		return models.Reference{RecordName: name, Zone: zone}, true
	default:
		return models.Reference{}, false
	}
}

func asReferenceList(v any) []models.Reference {
	switch x := v.(type) {
	case []models.Reference:
		return x
	case []any:
		refs := make([]models.Reference, 0, len(x))
		for _, item := range x {
			if ref, ok := asReference(item); ok {
				refs = append(refs, ref)
			}
		}
		return refs
	default:
		return nil
	}
}

func asStringList(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case nil:
		return []string{}
	default:
		return []string{}
	}
}
