package storage

import "encoding/json"

// toRecord flattens a typed model into the adapter's Record shape.
// Adapters are free to store richer types directly (the sql adapter
// marshals slice fields to JSON columns itself); this round trip
// exists only at the boundary between InternalAdapter's typed API and
// the generic Adapter interface.
func toRecord(v interface{}) (Record, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(buf, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func fromRecord(rec Record, out interface{}) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}
