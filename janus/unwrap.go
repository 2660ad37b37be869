package janus

import (
	"encoding/json"
	"fmt"
)

// unwrapPluginResponse implements the plugin-response unwrapping rule
// shared by both interfaces: a success envelope's plugindata.data is
// either the {"error_code","error"} failure shape, or arbitrary JSON that
// must deserialize into out.
func unwrapPluginResponse(env *Envelope, out any) error {
	if env.Janus == KindError {
		if env.Error != nil {
			return &ServerError{Code: env.Error.Code, Reason: env.Error.Reason}
		}
		return &UnexpectedResponseError{Envelope: mustRemarshal(env)}
	}
	if env.PluginData == nil {
		return &UnexpectedResponseError{Envelope: mustRemarshal(env)}
	}

	var pluginErr pluginErrorBody
	if err := json.Unmarshal(env.PluginData.Data, &pluginErr); err == nil && pluginErr.Error != "" {
		return &PluginResponseError{ErrorCode: pluginErr.ErrorCode, Error_: pluginErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.PluginData.Data, out); err != nil {
		return fmt.Errorf("janus: decoding plugin response: %w", err)
	}
	return nil
}

func mustRemarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(fmt.Sprintf("%q", err.Error()))
	}
	return data
}
