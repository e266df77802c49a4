package codec

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/solatis/cepgate/internal/types"
)

// ReadBody reads the full request body as UTF-8 text.
// The charset defaults to UTF-8 when the request does not declare one; other
// declared charsets are transcoded. Bodies larger than limit are rejected
// with types.ErrPayloadTooLarge.
func ReadBody(r *http.Request, limit int64) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	defer r.Body.Close()

	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(data)) > limit {
		return "", types.ErrPayloadTooLarge
	}

	charset := requestCharset(r)
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return string(data), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s body: %w", charset, err)
	}
	return string(decoded), nil
}

func requestCharset(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(params["charset"]))
}
