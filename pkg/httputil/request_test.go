package httputil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c"}`))
		var dest struct {
			Email string `json:"email"`
		}
		require.NoError(t, ParseJSON(r, &dest))
		assert.Equal(t, "a@b.c", dest.Email)
	})

	t.Run("invalid writes 400", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		w := httptest.NewRecorder()
		var dest map[string]interface{}
		assert.False(t, ParseJSONOrError(w, r, &dest))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPathVar(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	r = mux.SetURLVars(r, map[string]string{"id": "42"})

	assert.Equal(t, "42", PathVar(r, "id"))
	assert.Equal(t, "", PathVar(r, "missing"))
}

func TestBodyField(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		want  string
	}{
		{"string", `{"ownerId":"u1"}`, "ownerId", "u1"},
		{"number", `{"userId":42}`, "userId", "42"},
		{"missing", `{"other":"x"}`, "ownerId", ""},
		{"bool", `{"ownerId":true}`, "ownerId", ""},
		{"object", `{"ownerId":{"id":"u1"}}`, "ownerId", ""},
		{"not json", `ownerId=u1`, "ownerId", ""},
		{"empty", ``, "ownerId", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body))
			assert.Equal(t, tt.want, BodyField(r, tt.field))

			rest, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(rest), "body must stay readable")
		})
	}

	t.Run("nil body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Equal(t, "", BodyField(r, "ownerId"))
	})
}

func TestBodyField_LargeBody(t *testing.T) {
	padding := strings.Repeat("x", 2<<20)

	t.Run("field before the scan limit", func(t *testing.T) {
		body := `{"email":"big@example.com","notes":"` + padding + `"}`
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

		assert.Equal(t, "big@example.com", BodyField(r, "email"))

		rest, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Len(t, rest, len(body))
		assert.Equal(t, body, string(rest))
	})

	t.Run("field beyond the scan limit", func(t *testing.T) {
		body := `{"notes":"` + padding + `","email":"late@example.com"}`
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

		assert.Equal(t, "", BodyField(r, "email"))

		rest, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, body, string(rest))
	})

	t.Run("read twice", func(t *testing.T) {
		body := `{"ownerId":"u1","notes":"` + padding + `"}`
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

		assert.Equal(t, "u1", BodyField(r, "ownerId"))
		assert.Equal(t, "u1", BodyField(r, "ownerId"))

		rest, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, body, string(rest))
		assert.NoError(t, r.Body.Close())
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:1234", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"remote addr without port", nil, "192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x", nil)

	v, err := ParseQueryInt(r, "limit", 20)
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = ParseQueryInt(r, "offset", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	_, err = ParseQueryInt(r, "bad", 0)
	assert.Error(t, err)
}
