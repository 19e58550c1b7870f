package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is a platform identifier. Instances encode them as unsigned integers,
// older ones as strings; both decode to the same textual form.
type ID string

// String returns the identifier text.
func (id ID) String() string { return string(id) }

// UnmarshalJSON accepts a JSON number, a JSON string or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: expected number or string, got %s", data)
	}
	*id = ID(n.String())
	return nil
}
