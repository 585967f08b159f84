package beauty

import (
	"sort"
	"strconv"
	"strings"
)

// HandlerResult reports whether Router.Handle matched and answered a
// request.
type HandlerResult int

const (
	// Matched means the router found a route and ran its handler.
	Matched HandlerResult = iota
	// NoMatch means no route fit the request; the caller should fall
	// through to its own not-found handling.
	NoMatch
)

// RouteHandler answers a matched request; params holds the path
// parameters extracted from "{name}" segments in the route pattern.
type RouteHandler func(req *Request, reply *Reply, params map[string]string)

// CorsConfig configures Router's CORS preflight handling and response
// headers. A zero-value CorsConfig is valid (CORS disabled, the Router's
// default) and only takes effect once passed to Router.ConfigureCors.
type CorsConfig struct {
	AllowedOrigins   map[string]bool
	AllowedHeaders   map[string]bool
	ExposedHeaders   map[string]bool
	AllowCredentials bool
	MaxAge           int // seconds, defaults to 86400 if zero
}

// IsOriginAllowed reports whether origin may receive CORS headers: a "*"
// entry allows every origin.
func (c *CorsConfig) IsOriginAllowed(origin string) bool {
	if c.isWildcardOrigin() {
		return true
	}
	return c.AllowedOrigins[origin]
}

func (c *CorsConfig) isWildcardOrigin() bool {
	return c.AllowedOrigins["*"]
}

type routeEntry struct {
	segments  []string
	isParam   []bool
	paramName []string
	handler   RouteHandler
}

func (e *routeEntry) paramCount() int {
	n := 0
	for _, p := range e.isParam {
		if p {
			n++
		}
	}
	return n
}

// Router is a lightweight path-pattern dispatcher with optional CORS
// support, meant to be wired into the handler chain via a single
// RequestHandlerFunc that calls Handle.
type Router struct {
	routes      map[string][]*routeEntry
	corsConfig  CorsConfig
	corsEnabled bool
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{routes: make(map[string][]*routeEntry)}
}

// AddRoute registers handler for method and pathPattern (e.g. "/users/{id}").
// Registering a GET route also registers the same handler for HEAD.
func (r *Router) AddRoute(method, pathPattern string, handler RouteHandler) {
	r.addRoute(method, pathPattern, handler)
	if method == "GET" {
		r.addRoute("HEAD", pathPattern, handler)
	}
}

func (r *Router) addRoute(method, pathPattern string, handler RouteHandler) {
	entry := parsePathPattern(pathPattern, handler)
	r.routes[method] = append(r.routes[method], entry)
	sort.SliceStable(r.routes[method], func(i, j int) bool {
		return r.routes[method][i].paramCount() < r.routes[method][j].paramCount()
	})
}

// ConfigureCors enables CORS handling using cfg.
func (r *Router) ConfigureCors(cfg CorsConfig) {
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 86400
	}
	r.corsConfig = cfg
	r.corsEnabled = true
}

// Handle dispatches req to the matching route, if any. It also answers
// OPTIONS requests (CORS preflight, or a bare Allow listing) and sets
// Connection: close with a 405 when the path exists but not for this
// method, per RFC 7231 on an HTTP/1.1 request.
func (r *Router) Handle(req *Request, reply *Reply) HandlerResult {
	if r.corsEnabled && r.isPreflightRequest(req) {
		if r.handleCorsPreflight(req, reply) {
			return Matched
		}
	}

	if req.Method == "OPTIONS" {
		allowed := r.findAllowedMethods(req.RequestPath)
		if len(allowed) == 0 {
			return NoMatch
		}
		reply.AddHeader("Allow", strings.Join(allowed, ", "))
		if r.corsEnabled {
			r.addCorsHeaders(req, reply)
		}
		reply.Send(StatusOK)
		return Matched
	}

	for _, entry := range r.routes[req.Method] {
		params := make(map[string]string)
		if matchPath(entry, req.RequestPath, params) {
			entry.handler(req, reply, params)
			if r.corsEnabled {
				r.addCorsHeaders(req, reply)
			}
			return Matched
		}
	}

	if req.HTTPVersionMajor == 1 && req.HTTPVersionMinor == 1 {
		allowed := r.findAllowedMethods(req.RequestPath)
		allowed = removeString(allowed, req.Method)
		if len(allowed) > 0 {
			reply.stockReply(req, StatusMethodNotAllowed)
			reply.AddHeader("Allow", strings.Join(allowed, ", "))
			return NoMatch
		}
	}

	return NoMatch
}

func (r *Router) findAllowedMethods(requestPath string) []string {
	var methods []string
	for method, entries := range r.routes {
		for _, entry := range entries {
			params := make(map[string]string)
			if matchPath(entry, requestPath, params) {
				methods = append(methods, method)
				break
			}
		}
	}
	sort.Strings(methods)
	return methods
}

func (r *Router) isPreflightRequest(req *Request) bool {
	return req.Method == "OPTIONS" &&
		req.HeaderValue("Origin") != "" &&
		req.HeaderValue("Access-Control-Request-Method") != ""
}

func (r *Router) handleCorsPreflight(req *Request, reply *Reply) bool {
	origin := req.HeaderValue("Origin")
	if !r.corsConfig.IsOriginAllowed(origin) {
		return false
	}

	reply.AddHeader("Access-Control-Allow-Origin", corsOriginHeader(&r.corsConfig, origin))
	if requestedMethod := req.HeaderValue("Access-Control-Request-Method"); requestedMethod != "" {
		reply.AddHeader("Access-Control-Allow-Methods", requestedMethod)
	}
	if requestedHeaders := req.HeaderValue("Access-Control-Request-Headers"); requestedHeaders != "" {
		reply.AddHeader("Access-Control-Allow-Headers", requestedHeaders)
	}
	if r.corsConfig.AllowCredentials {
		reply.AddHeader("Access-Control-Allow-Credentials", "true")
	}
	reply.AddHeader("Access-Control-Max-Age", strconv.Itoa(r.corsConfig.MaxAge))
	reply.Send(StatusNoContent)
	return true
}

func (r *Router) addCorsHeaders(req *Request, reply *Reply) {
	origin := req.HeaderValue("Origin")
	if origin == "" || !r.corsConfig.IsOriginAllowed(origin) {
		return
	}
	reply.AddHeader("Access-Control-Allow-Origin", corsOriginHeader(&r.corsConfig, origin))
	if r.corsConfig.AllowCredentials {
		reply.AddHeader("Access-Control-Allow-Credentials", "true")
	}
	if len(r.corsConfig.ExposedHeaders) > 0 {
		var names []string
		for h := range r.corsConfig.ExposedHeaders {
			names = append(names, h)
		}
		sort.Strings(names)
		reply.AddHeader("Access-Control-Expose-Headers", strings.Join(names, ", "))
	}
}

// corsOriginHeader echoes the exact origin once credentials are allowed
// (a literal "*" is invalid alongside Allow-Credentials per the Fetch
// spec), otherwise returns "*" when that is the configured wildcard.
func corsOriginHeader(cfg *CorsConfig, origin string) string {
	if cfg.isWildcardOrigin() && !cfg.AllowCredentials {
		return "*"
	}
	return origin
}

func parsePathPattern(pathPattern string, handler RouteHandler) *routeEntry {
	entry := &routeEntry{handler: handler}
	for _, seg := range splitPath(pathPattern) {
		if len(seg) >= 2 && seg[0] == '{' && seg[len(seg)-1] == '}' {
			name := seg[1 : len(seg)-1]
			entry.segments = append(entry.segments, name)
			entry.isParam = append(entry.isParam, true)
			entry.paramName = append(entry.paramName, name)
		} else {
			entry.segments = append(entry.segments, seg)
			entry.isParam = append(entry.isParam, false)
			entry.paramName = append(entry.paramName, "")
		}
	}
	return entry
}

func splitPath(path string) []string {
	if path == "" || path == "/" {
		return nil
	}
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func matchPath(entry *routeEntry, requestPath string, params map[string]string) bool {
	reqSegments := splitPath(requestPath)
	if len(reqSegments) != len(entry.segments) {
		return false
	}
	for i, seg := range entry.segments {
		if entry.isParam[i] {
			params[entry.paramName[i]] = reqSegments[i]
		} else if seg != reqSegments[i] {
			return false
		}
	}
	return true
}

func removeString(in []string, s string) []string {
	out := in[:0]
	for _, v := range in {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
