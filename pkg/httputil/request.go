package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// maxPeekBytes bounds how much of a body BodyField will buffer
const maxPeekBytes = 1 << 20

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// PathVar returns a route variable, or "" when absent
func PathVar(r *http.Request, key string) string {
	return mux.Vars(r)[key]
}

// BodyField returns a top-level string or number field of a JSON request body.
// At most maxPeekBytes are scanned; a field beyond that reads as absent. The
// body is restored in full so later handlers can read it again. Missing
// fields, other types and non-JSON bodies yield "".
func BodyField(r *http.Request, field string) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}

	orig := r.Body
	var peeked bytes.Buffer
	defer func() {
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(&peeked, orig), orig}
	}()

	dec := json.NewDecoder(io.TeeReader(io.LimitReader(orig, maxPeekBytes), &peeked))
	dec.UseNumber()
	value, ok := findTopLevelField(dec, field)
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s
	}
	var n json.Number
	numDec := json.NewDecoder(bytes.NewReader(value))
	numDec.UseNumber()
	if err := numDec.Decode(&n); err == nil {
		return n.String()
	}
	return ""
}

// findTopLevelField walks the members of a JSON object until it reaches field
func findTopLevelField(dec *json.Decoder, field string) (json.RawMessage, bool) {
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, false
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		if key == field {
			return value, true
		}
	}
	return nil, false
}

// ClientIP returns the originating client address from X-Forwarded-For,
// then X-Real-IP, then RemoteAddr
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}
