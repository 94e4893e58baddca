package httpapi

import "encoding/json"

// jsonMarshalLine marshals v and appends a trailing newline, producing
// one ndjson record.
func jsonMarshalLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
