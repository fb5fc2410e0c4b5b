package pipeline

import (
	"encoding/json"
	"net/http"

	"github.com/ncrq/authguard/internal/authctx"
)

// writeResponse emits the final Response: merged headers, appended
// Set-Cookie headers, status, JSON body — the same shape as the
// teacher's writeResponseWithBody in server/handlers.go.
func writeResponse(w http.ResponseWriter, resp *authctx.Response) {
	if resp == nil {
		resp = &authctx.Response{Status: http.StatusNoContent}
	}
	for k, vs := range resp.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	for _, c := range resp.Cookies {
		http.SetCookie(w, c)
	}
	if w.Header().Get("Content-Type") == "" && resp.Body != nil {
		w.Header().Set("Content-Type", "application/json")
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	if resp.Body == nil {
		return
	}
	switch b := resp.Body.(type) {
	case []byte:
		w.Write(b)
	case string:
		w.Write([]byte(b))
	default:
		_ = json.NewEncoder(w).Encode(b)
	}
}
