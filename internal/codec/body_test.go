package codec

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/cepgate/internal/types"
)

func TestReadBody(t *testing.T) {
	t.Run("no charset defaults to utf-8", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"name":"Peñalara"}`))

		body, err := ReadBody(req, types.MaxPayloadSize)
		require.NoError(t, err)
		assert.Equal(t, `{"name":"Peñalara"}`, body)
	})

	t.Run("explicit utf-8", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("a\nb"))
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")

		body, err := ReadBody(req, types.MaxPayloadSize)
		require.NoError(t, err)
		assert.Equal(t, "a\nb", body)
	})

	t.Run("latin1 transcoded", func(t *testing.T) {
		// "Peñalara" in ISO-8859-1: ñ is the single byte 0xF1
		raw := []byte{'P', 'e', 0xF1, 'a', 'l', 'a', 'r', 'a'}
		req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "text/plain; charset=ISO-8859-1")

		body, err := ReadBody(req, types.MaxPayloadSize)
		require.NoError(t, err)
		assert.Equal(t, "Peñalara", body)
	})

	t.Run("unknown charset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("x"))
		req.Header.Set("Content-Type", "text/plain; charset=klingon")

		_, err := ReadBody(req, types.MaxPayloadSize)
		assert.Error(t, err)
	})

	t.Run("oversize rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("0123456789"))

		_, err := ReadBody(req, 5)
		assert.ErrorIs(t, err, types.ErrPayloadTooLarge)
	})

	t.Run("exact limit accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("01234"))

		body, err := ReadBody(req, 5)
		require.NoError(t, err)
		assert.Equal(t, "01234", body)
	})
}
