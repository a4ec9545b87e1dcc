package platform

import "encoding/json"

// remarshal copies a decoded JSON value into a typed structure.
func remarshal(from any, to any) error {
	data, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, to)
}
