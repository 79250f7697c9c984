/*
 *    Copyright 2025 Jeff Galyan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package quokka

import (
	"net/http"
	"strings"
)

// contentTypesAccepted is the set of request content types the dispatcher
// lets through to a handler. A request carrying a body with anything else
// is rejected with 415 before the handler ever runs.
var contentTypesAccepted = map[string]bool{
	"application/json":                  true,
	"application/x-www-form-urlencoded": true,
	"text/plain":                        true,
	"multipart/form-data":               true,
}

// bodyExemptMethods never require a recognized content type, since they
// conventionally carry no body.
var bodyExemptMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodDelete:  true,
}

// dispatch runs one request end to end: route lookup, trailing-slash
// redirect, content-type gate, the pre-route middleware + handler unit, the
// post-route middleware wrap, response normalization, and error resolution.
func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	c := newContext(w, req)

	urlPath := req.URL.Path
	if r.RedirectTrailingSlash && len(urlPath) > 1 && strings.HasSuffix(urlPath, "/") {
		target := strings.TrimRight(urlPath, "/")
		// A target starting with "//" or containing a backslash would be read
		// by browsers as a protocol-relative URL (an open redirect).
		if target != "" && !strings.HasPrefix(target, "//") && !strings.Contains(target, `\`) {
			if rq := req.URL.RawQuery; rq != "" {
				target += "?" + rq
			}
			http.Redirect(w, req, target, http.StatusMovedPermanently)
			return
		}
	}

	method := strings.ToUpper(req.Method)
	result := r.find(method, urlPath)

	var handler Handler
	var perRouteMW []Middleware

	switch result.kind {
	case matchOK:
		c.params = result.params
		handler = result.route.Handler
		perRouteMW = result.route.PerRouteMW
	case matchMethodNotAllowed:
		if method == http.MethodHead {
			getResult := r.find(http.MethodGet, urlPath)
			if getResult.kind == matchOK {
				c.params = getResult.params
				handler = getResult.route.Handler
				perRouteMW = getResult.route.PerRouteMW
				break
			}
		}
		w.Header().Set("Allow", strings.Join(result.allowed, ", "))
		handler = r.errorHandler(http.StatusMethodNotAllowed, ErrMethodNotAllowed)
	default:
		handler = r.errorHandler(http.StatusNotFound, ErrNotFound)
	}

	r.mu.RLock()
	c.maxBodySize = r.MaxBodySize
	preMW := append([]middlewareEntry{}, r.preMW...)
	postMW := append([]middlewareEntry{}, r.postMW...)
	errReg := r.Errors
	r.mu.RUnlock()

	if result.kind == matchOK && req.ContentLength != 0 && !bodyExemptMethods[method] {
		if ct := contentTypeBase(req.Header.Get("Content-Type")); ct != "" && !contentTypesAccepted[ct] {
			umt := &UnsupportedMediaType{ContentType: ct}
			errReg.Resolve(c, umt)
			return
		}
	}

	normalizer := func(c *Context) {
		innerHandler := buildChain(toMiddlewareEntries(perRouteMW), handler)
		innerHandler(c)
		if c.wrote {
			return
		}
		if !c.hasReturn {
			c.Status(http.StatusNoContent)
			return
		}
		resp, err := Normalize(c.returnVal)
		if err != nil {
			errReg.Resolve(c, err)
			return
		}
		resp.write(c)
	}

	full := buildChain(preMW, normalizer)
	full = buildChain(postMW, full)

	safeDispatch(c, errReg, full)
}

// safeDispatch runs the fully composed handler chain and routes a panic
// through the Error Resolver instead of crashing the serving goroutine,
// in case Recover was not mounted ahead of it.
func safeDispatch(c *Context, errReg *ErrorRegistry, h Handler) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				errReg.Resolve(c, e)
				return
			}
			errReg.Resolve(c, panicError{rec})
		}
	}()
	h(c)
}

type panicError struct{ v any }

func (p panicError) Error() string { return "quokka: panic: " + toString(p.v) }

func toString(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "unrecognized panic value"
}

// toMiddlewareEntries wraps plain per-route Middleware in the zero-priority
// entries buildChain expects, preserving registration order.
func toMiddlewareEntries(mw []Middleware) []middlewareEntry {
	entries := make([]middlewareEntry, len(mw))
	for i, m := range mw {
		entries[i] = middlewareEntry{fn: m, order: i}
	}
	return entries
}

func contentTypeBase(ct string) string {
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.TrimSpace(strings.ToLower(ct))
}
