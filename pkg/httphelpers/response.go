// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package httphelpers

import (
	"io"
	"net/http"
)

// maxDrain bounds how much of an unread body is consumed so a huge error page
// does not stall the caller. Larger bodies just cost the connection.
const maxDrain = 256 << 10

// DrainAndClose consumes what is left of the response body and closes it, so
// the connection can be reused.
func DrainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, resp.Body, maxDrain)
	resp.Body.Close()
}
