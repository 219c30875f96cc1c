// Package executor provides runtime support for calls to the upstream AI
// provider. This file provides helpers for HTTP connection hygiene.
package executor

import (
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// DrainAndClose drains and closes an HTTP response body. Connections are only
// returned to the pool when the body has been fully read and closed.
func DrainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		log.Debugf("failed to drain response body: %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		log.Debugf("failed to close response body: %v", err)
	}
}
