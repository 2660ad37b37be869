package janus

import "encoding/json"

// Envelope kinds, mirroring the wire values of the "janus" discriminator.
// The gateway's protocol nests its plugin/generic event variants under the
// same top-level tag rather than a separate "type" field, so a single flat
// struct with these string constants is the idiomatic Go shape for what the
// reference implementation models as a two-level tagged/untagged enum.
const (
	KindAck        = "ack"
	KindSuccess    = "success"
	KindServerInfo = "server_info"
	KindError      = "error"
	KindEvent      = "event"
	KindDetached   = "detached"
	KindHangup     = "hangup"
	KindMedia      = "media"
	KindTimeout    = "timeout"
	KindWebrtcUp   = "webrtcup"
	KindSlowlink   = "slowlink"
	KindTrickle    = "trickle"
)

// Envelope is the wire shape of every message exchanged with the gateway,
// inbound or outbound. Only the fields relevant to a given Kind are
// populated; see §3/§3.1 of the design notes for concrete shapes.
type Envelope struct {
	Janus       string           `json:"janus"`
	Transaction string           `json:"transaction,omitempty"`
	SessionID   *uint64          `json:"session_id,omitempty"`
	HandleID    *uint64          `json:"handle_id,omitempty"`
	Sender      *uint64          `json:"sender,omitempty"`
	APISecret   string           `json:"apisecret,omitempty"`
	Plugin      string           `json:"plugin,omitempty"`
	Data        *IDPayload       `json:"data,omitempty"`
	PluginData  *PluginData      `json:"plugindata,omitempty"`
	Error       *ServerErrorBody `json:"error,omitempty"`
	Jsep        *Jsep            `json:"jsep,omitempty"`
	RTP         *RTPParams       `json:"rtp,omitempty"`

	// Candidate carries a trickle request's "candidate" value, which is
	// one of two unrelated shapes: a single Candidate object, or the
	// {"completed":true} end-of-candidates sentinel. Raw JSON lets both
	// ride the same field without forcing one Go struct to paper over
	// the other.
	Candidate  json.RawMessage `json:"candidate,omitempty"`
	Candidates []Candidate     `json:"candidates,omitempty"`

	// Body carries the plugin-specific request/response payload for
	// "message" requests and their corresponding events. It is always
	// treated as opaque data, never inspected by this library (no
	// plugin-specific business logic).
	Body json.RawMessage `json:"body,omitempty"`

	// raw holds the exact bytes this envelope was decoded from, needed to
	// re-decode a server_info response into ServerInfo (whose fields are
	// flattened alongside "janus" rather than nested). Unexported, so it
	// never round-trips through (un)marshaling itself.
	raw []byte
}

// IsEvent reports whether e is one of the event variants (plugin or
// generic lifecycle) rather than a direct response to a request.
func (e *Envelope) IsEvent() bool {
	switch e.Janus {
	case KindEvent, KindDetached, KindHangup, KindMedia, KindTimeout, KindWebrtcUp, KindSlowlink, KindTrickle:
		return true
	default:
		return false
	}
}

// IDPayload is the {"id": N} shape returned by create and attach.
type IDPayload struct {
	ID uint64 `json:"id"`
}

// PluginData carries a plugin event or plugin response's own name and
// opaque payload.
type PluginData struct {
	Plugin string          `json:"plugin"`
	Data   json.RawMessage `json:"data"`
}

// ServerErrorBody is the {"code", "reason"} shape of a top-level error
// envelope.
type ServerErrorBody struct {
	Code   uint16 `json:"code"`
	Reason string `json:"reason"`
}

// pluginErrorBody is the polymorphic failure shape that can appear as
// PluginData.Data instead of a caller-defined response type.
type pluginErrorBody struct {
	ErrorCode int    `json:"error_code"`
	Error     string `json:"error"`
}

// JsepType distinguishes an SDP offer from an SDP answer.
type JsepType string

const (
	JsepOffer  JsepType = "offer"
	JsepAnswer JsepType = "answer"
)

// Jsep is the SDP establishment-protocol block. This library never parses
// SDP (Non-goal); it is carried verbatim between caller and gateway.
type Jsep struct {
	Type    JsepType `json:"type"`
	SDP     string   `json:"sdp"`
	Trickle *bool    `json:"trickle,omitempty"`
}

// RTPParams is the plain-RTP establishment-protocol block, the non-SDP
// alternative to Jsep.
type RTPParams struct {
	IP            string  `json:"ip"`
	Port          uint64  `json:"port"`
	PayloadType   *string `json:"payload_type,omitempty"`
	AudiolevelExt *string `json:"audiolevel_ext,omitempty"`
	FEC           *bool   `json:"fec,omitempty"`
}

// Candidate is a single trickle ICE candidate. SdpMid and SdpMLineIndex
// are always serialized, including a zero SdpMLineIndex: m-line 0 is the
// common case, and omitempty would silently drop it.
type Candidate struct {
	SdpMid        string `json:"sdpMid"`
	SdpMLineIndex int    `json:"sdpMLineIndex"`
	Candidate     string `json:"candidate"`
}

// completedCandidate is the end-of-candidates sentinel. It is a distinct
// shape from Candidate rather than an extra optional field on it, so
// marshaling one never risks bleeding into the other.
type completedCandidate struct {
	Completed bool `json:"completed"`
}

// ServerInfo is the response payload of the info verb.
type ServerInfo struct {
	Name          string   `json:"name"`
	Version       int      `json:"version"`
	VersionString string   `json:"version_string"`
	Author        string   `json:"author"`
	DataChannels  bool     `json:"data_channels"`
	IPv6          bool     `json:"ipv6"`
	Plugins       json.RawMessage `json:"plugins,omitempty"`
}
