// Package executor provides runtime support for calls to the upstream AI
// provider. This file decodes compressed upstream response bodies.
package executor

import (
	"fmt"
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// AcceptEncoding is the value the invoker sends upstream. The transport's
// automatic decompression is disabled, so decoding happens here.
const AcceptEncoding = "gzip, br"

// DecodeBody returns a reader for the response body, transparently decoding
// gzip and brotli content encodings. The caller remains responsible for
// closing the original body.
func DecodeBody(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "", "identity":
		return resp.Body, nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return zr, nil
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}
