package grid

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// IDField is the row field holding the entity id.
const IDField = "id"

// ID is the opaque string form of an entity id (numeric or string on the wire).
type ID string

// Row is one entity as served by a paginated endpoint.
type Row map[string]any

// ID returns the row's entity id.
func (r Row) ID() (ID, bool) {
	return ToID(r[IDField])
}

// String returns field as display text; nil reads as "".
func (r Row) String(field string) string {
	return valueString(r[field])
}

// ToID converts a decoded JSON value to an ID.
func ToID(v any) (ID, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case ID:
		return x, x != ""
	case string:
		return ID(x), x != ""
	case json.Number:
		return ID(x.String()), x.String() != ""
	case float64:
		return ID(strconv.FormatFloat(x, 'f', -1, 64)), true
	case int:
		return ID(strconv.Itoa(x)), true
	case int64:
		return ID(strconv.FormatInt(x, 10)), true
	default:
		return "", false
	}
}

func valueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}
