package xevent

// DecodeRecord unmarshals rec.Payload into T with the codec named in the
// record, falling back to JSON for records without one.
func DecodeRecord[T any](rec *Record) (T, error) {
	var v T
	name := rec.Codec
	if name == "" {
		name = "json"
	}
	c, err := NewCodec(name)
	if err != nil {
		return v, err
	}
	if err := c.Unmarshal(rec.Payload, &v); err != nil {
		return v, err
	}
	return v, nil
}
