package ingest

import (
	"encoding/json"
	"math"

	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/types"
)

var coreFields = []string{types.FieldTemperature, types.FieldTDSValue, types.FieldLatitude}

// Accept reports whether p carries at least one truthy core field. Absent,
// null, false, 0, "" and NaN count as missing. Ranges and types are checked
// later by the store.
func Accept(p types.Payload) bool {
	for _, f := range coreFields {
		if truthy(p[f]) {
			return true
		}
	}
	return false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || (f != 0 && !math.IsNaN(f))
	case string:
		return t != ""
	default:
		return true
	}
}
