package redisstream

// Stream entry field names. Payload is stored as raw bytes, event_at as
// unix microseconds and recorded_at as unix nanoseconds.
const (
	fieldSession    = "session"
	fieldStage      = "stage"
	fieldEventID    = "event_id"
	fieldTypeID     = "type_id"
	fieldTypeName   = "type"
	fieldPhase      = "phase"
	fieldFlags      = "flags"
	fieldCodec      = "codec"
	fieldPayload    = "payload"
	fieldEventTime  = "event_at"
	fieldRecordedAt = "recorded_at"
)

// Bits of fieldFlags.
const (
	flagPropagationStopped = 1 << iota
	flagImmediateStopped
	flagDefaultPrevented
	flagDispatchStopped
)
