package dispatch

import (
	"encoding/json"
	"net/http"
	"strings"
)

// pathVarNames returns the {wildcard} names declared in an EndpointSpec.Path
// such as "/orders/{id}/items/{itemId}".
func pathVarNames(path string) []string {
	var out []string
	for _, segment := range strings.Split(path, "/") {
		if len(segment) >= 2 && strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			out = append(out, strings.TrimSuffix(strings.TrimPrefix(segment, "{"), "}"))
		}
	}
	return out
}

// extractParams collects untyped request values in precedence order:
// query string (lowest), then path variables, then
// form fields, then top-level JSON body keys (highest). A name present at
// a later source overrides the same name from an earlier one.
func extractParams(r *http.Request, pathVars []string) map[string]any {
	out := map[string]any{}

	for k, values := range r.URL.Query() {
		if len(values) > 0 {
			out[k] = values[0]
		}
	}

	for _, name := range pathVars {
		if v := r.PathValue(name); v != "" {
			out[name] = v
		}
	}

	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
		if err := r.ParseForm(); err == nil {
			for k, values := range r.PostForm {
				if len(values) > 0 {
					out[k] = values[0]
				}
			}
		}
	}

	if body := readJSONBody(r); body != nil {
		for k, v := range body {
			out[k] = v
		}
	}

	return out
}

// readJSONBody decodes a JSON object body into an untyped map. A missing,
// empty, or malformed body yields nil rather than an error: the body is
// merely one of several parameter sources.
func readJSONBody(r *http.Request) map[string]any {
	if r.Body == nil {
		return nil
	}
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/json") {
		return nil
	}

	var body map[string]any
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&body); err != nil {
		return nil
	}
	return body
}
