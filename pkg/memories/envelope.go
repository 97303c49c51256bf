package memories

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// envelope is the {ok, data} | {ok, error} shape the upstream answers with.
type envelope struct {
	ok      bool
	data    json.RawMessage
	failure json.RawMessage
}

// decodeEnvelope recognizes a body as an envelope when it is a JSON object
// with an "ok" member and at least one of "data" or "error". Any JSON value
// is accepted for "ok" and read by truthiness, so {"ok":0,"data":...} is a
// failure.
func decodeEnvelope(body []byte) (*envelope, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, false
	}

	rawOK, hasOK := fields["ok"]
	data, hasData := fields["data"]
	errField, hasErr := fields["error"]
	if !hasOK || (!hasData && !hasErr) {
		return nil, false
	}

	return &envelope{ok: truthy(rawOK), data: data, failure: errField}, true
}

// classify turns an upstream response into a result or an *Error.
// Envelope detection runs before the status code is inspected, so an
// {ok:false} body fails even on 200 and an {ok:true} body succeeds on 4xx.
func classify(status int, body []byte) (json.RawMessage, error) {
	if !json.Valid(body) {
		return nil, newError(http.StatusBadGateway, TypeHTTP, CodeInvalidJSON, "Upstream returned non-JSON response", nil)
	}

	if env, ok := decodeEnvelope(body); ok {
		if env.ok {
			if len(env.data) == 0 {
				return json.RawMessage("null"), nil
			}
			return env.data, nil
		}
		return nil, upstreamError(status, env.failure)
	}

	if status >= http.StatusBadRequest {
		e := newError(status, TypeHTTP, "HTTP_"+strconv.Itoa(status), "Upstream request failed", nil)
		e.Body.Details = json.RawMessage(body)
		return nil, e
	}

	return json.RawMessage(body), nil
}

// upstreamError wraps the error object reported by an {ok:false} envelope.
// Missing or empty error objects are replaced by a generic UPSTREAM_ERROR.
func upstreamError(status int, raw json.RawMessage) *Error {
	if !truthy(raw) {
		return newError(status, TypeHTTP, CodeUpstreamError, "Unknown upstream error", nil)
	}

	e := &Error{Status: status, Raw: raw}
	// Best effort: the raw object is forwarded either way.
	_ = json.Unmarshal(raw, &e.Body)
	return e
}

// truthy reports whether raw holds a JSON value other than null, false, zero,
// the empty string, an empty array or an empty object.
func truthy(raw json.RawMessage) bool {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return false
	}

	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	return true
}
