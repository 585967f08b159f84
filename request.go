package beauty

import "strings"

// Header is a single HTTP header name/value pair, kept in arrival order
// (unlike a map, duplicate header names are preserved).
type Header struct {
	Name  string
	Value string
}

// Request is a single HTTP request as produced by RequestParser and
// completed by decodeRequest.
type Request struct {
	Method          string
	URI             string
	HTTPVersionMajor int
	HTTPVersionMinor int
	Headers          []Header

	// RequestPath is the percent-decoded path portion of URI, with the query
	// string stripped off. Populated by decodeRequest.
	RequestPath string

	// QueryParams holds the percent-decoded "?a=b&c=d" query string.
	QueryParams []KeyVal

	// FormParams holds the percent-decoded body for
	// application/x-www-form-urlencoded requests.
	FormParams []KeyVal

	// keepAlive is computed once all headers are parsed (see
	// checkRequestAfterAllHeaders) and decides whether the connection is
	// recycled after this request completes.
	keepAlive bool

	// noBodyBytesReceived tracks cumulative body bytes accepted into the
	// shared buffer across possibly-multiple good_part reads.
	noBodyBytesReceived int

	// contentLength is the Content-Length header value once known, or -1
	// before it has been parsed.
	contentLength int
}

// KeyVal is one key/value pair from a query string or urlencoded form body.
type KeyVal struct {
	Key   string
	Value string
}

// HeaderValue returns the value of the first header matching name
// case-insensitively, or "" if absent.
func (r *Request) HeaderValue(name string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// FormValue returns the first matching form parameter value, or "" if absent.
func (r *Request) FormValue(key string) string {
	for _, kv := range r.FormParams {
		if kv.Key == key {
			return kv.Value
		}
	}
	return ""
}

// QueryValue returns the first matching query parameter value, or "" if
// absent.
func (r *Request) QueryValue(key string) string {
	for _, kv := range r.QueryParams {
		if kv.Key == key {
			return kv.Value
		}
	}
	return ""
}

// reset clears a Request for reuse on the next keep-alive exchange.
func (r *Request) reset() {
	r.Method = ""
	r.URI = ""
	r.HTTPVersionMajor = 0
	r.HTTPVersionMinor = 0
	r.Headers = r.Headers[:0]
	r.RequestPath = ""
	r.QueryParams = r.QueryParams[:0]
	r.FormParams = r.FormParams[:0]
	r.keepAlive = false
	r.noBodyBytesReceived = 0
	r.contentLength = -1
}

// KeepAlive reports whether this request's connection should be recycled
// once the reply completes.
func (r *Request) KeepAlive() bool { return r.keepAlive }

// decodeRequest percent-decodes the request URI into RequestPath, splits and
// decodes the query string, and (for non-GET requests with an
// application/x-www-form-urlencoded content type) decodes the body into
// FormParams. It returns false if the resulting path is not absolute or
// contains a ".." traversal segment.
func decodeRequest(req *Request, body []byte) bool {
	req.RequestPath = urlDecode(req.URI)

	if req.RequestPath == "" || req.RequestPath[0] != '/' || strings.Contains(req.RequestPath, "..") {
		return false
	}

	if pos := strings.IndexByte(req.RequestPath, '?'); pos != -1 {
		req.QueryParams = keyValDecode(req.RequestPath[pos+1:])
		req.RequestPath = req.RequestPath[:pos]
	}

	if req.Method != "GET" {
		if req.HeaderValue("content-type") == "application/x-www-form-urlencoded" {
			req.FormParams = keyValDecode(urlDecode(string(body)))
		}
	}

	return true
}
