package steps

import "github.com/fenwick-labs/stationrt/internal/configstore"

// findRow returns the first ParameterSheetRow in model.Sheet tagged for
// stepName, or nil if none is configured.
func findRow(model *configstore.TestModel, stepName string) *configstore.ParameterSheetRow {
	for i := range model.Sheet {
		if model.Sheet[i].StepName == stepName {
			return &model.Sheet[i]
		}
	}
	return nil
}

// payloadFloat reads a float64 tolerance/nominal value out of a sheet
// row's JSONB-shaped payload, defaulting when the key is absent.
func payloadFloat(row *configstore.ParameterSheetRow, key string, fallback float64) float64 {
	if row == nil {
		return fallback
	}
	v, ok := row.Payload[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return fallback
	}
}
