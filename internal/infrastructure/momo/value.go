package momo

import (
	"bytes"
	"encoding/json"
)

// Value keeps the exact text of a JSON string or number. MoMo sends ids and
// result codes as numbers in some messages and strings in others, and the
// signature is computed over their decimal text.
type Value string

func (v Value) String() string { return string(v) }

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*v = Value(n.String())
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(v))
}
