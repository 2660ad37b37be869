package janus

import (
	sjson "github.com/segmentio/encoding/json"
)

// encodeEnvelope and decodeEnvelope are the hot-path JSON codec used by
// both interfaces: every outbound request and every inbound frame goes
// through here. segmentio/encoding/json is a drop-in, allocation-lighter
// replacement for encoding/json on exactly this kind of small, frequent
// message.
func encodeEnvelope(env *Envelope) ([]byte, error) {
	return sjson.Marshal(env)
}

func decodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := sjson.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	env.raw = append([]byte(nil), data...)
	return &env, nil
}
