package pipeline

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
)

type parsedBodyKey struct{}

// ParseBody implements §4.E step 2: parse the request body per its
// declared content type (JSON, form-urlencoded, or multipart) into a
// generic map, stashed on the request context for the handler to read
// via Body(r).
func ParseBody(r *http.Request) (*http.Request, error) {
	ct := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mediaType = ""
	}

	body := map[string]interface{}{}
	switch mediaType {
	case "application/json":
		if r.ContentLength != 0 {
			dec := json.NewDecoder(r.Body)
			if err := dec.Decode(&body); err != nil {
				return r, &APIError{Kind: KindInvalidRequest, Code: "INVALID_JSON_BODY", Message: err.Error()}
			}
		}
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(10 << 20); err != nil && err != http.ErrNotMultipart {
			if err := r.ParseForm(); err != nil {
				return r, &APIError{Kind: KindInvalidRequest, Code: "INVALID_FORM_BODY", Message: err.Error()}
			}
		}
		for k := range r.Form {
			body[k] = r.Form.Get(k)
		}
	}

	return r.WithContext(context.WithValue(r.Context(), parsedBodyKey{}, body)), nil
}

// Body returns the map parsed by ParseBody, or an empty map if none
// was parsed (e.g. a GET request with no body).
func Body(r *http.Request) map[string]interface{} {
	if b, ok := r.Context().Value(parsedBodyKey{}).(map[string]interface{}); ok {
		return b
	}
	return map[string]interface{}{}
}
