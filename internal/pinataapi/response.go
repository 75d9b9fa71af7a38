package pinataapi

import (
	"bytes"
	"encoding/json"
)

// ExtractData unwraps Pinata v3 responses, returning the JSON payload stored
// under the "data" field. Legacy endpoints answer without an envelope, in
// which case the whole body is returned. A JSON null under "data" is
// returned as-is.
func ExtractData(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] != '{' {
		return append([]byte(nil), trimmed...), nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	data, ok := envelope["data"]
	if !ok {
		return append([]byte(nil), trimmed...), nil
	}
	return append([]byte(nil), bytes.TrimSpace(data)...), nil
}

// DecodeData decodes the payload obtained via ExtractData into out.
// When the response body is empty, out is populated with a JSON null.
func DecodeData(body []byte, out any) error {
	payload, err := ExtractData(body)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		payload = []byte("null")
	}
	return json.Unmarshal(payload, out)
}
