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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"runtime/debug"
	"sync"
)

// ErrorResponse is a consistent error payload
// Fields follow RFC 9457 problem+json style without using that media type directly.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// UnsupportedMediaType is returned by the dispatcher when a request's
// Content-Type is not one the core handles.
type UnsupportedMediaType struct {
	ContentType string
}

func (e *UnsupportedMediaType) Error() string {
	return fmt.Sprintf("quokka: unsupported media type %q", e.ContentType)
}

// UnsupportedReturnType is returned by the Response Normalizer when a
// handler's Context.Return value does not match any of the recognized
// shapes (Response, map, struct, string, []byte, nil).
type UnsupportedReturnType struct {
	Value any
}

func (e *UnsupportedReturnType) Error() string {
	return fmt.Sprintf("quokka: unsupported return type %T", e.Value)
}

// ErrorHandlerFunc handles a specific error kind, writing a response via c.
type ErrorHandlerFunc func(c *Context, err error)

// ErrorRegistry is the core's Error Resolver: it maps an error's concrete
// type to a handler, walking from the most specific registered kind to the
// least specific, and falls back to an internal-error handler when nothing
// matches (or when a registered handler itself panics, retried exactly
// once through the internal handler, then through the built-in default if
// the internal handler panics too).
type ErrorRegistry struct {
	mu          sync.RWMutex
	production  bool
	contentType string
	byType      map[reflect.Type]ErrorHandlerFunc
	internal    ErrorHandlerFunc
}

func newErrorRegistry(production bool, contentType string) *ErrorRegistry {
	reg := &ErrorRegistry{production: production, contentType: contentType, byType: map[reflect.Type]ErrorHandlerFunc{}}
	reg.internal = reg.defaultInternalHandler
	// UnsupportedMediaType is a Dispatcher protocol response (spec §4.5/§7),
	// not an opt-in: it gets a 415 default the same way NotFound/
	// MethodNotAllowed get their defaults, independent of whether a caller
	// registers its own handler for the kind.
	reg.byType[reflect.TypeOf(&UnsupportedMediaType{})] = reg.defaultUnsupportedMediaTypeHandler
	return reg
}

// Register binds a handler to the concrete type of sample (a zero value or
// pointer of the error type to match, e.g. &UnsupportedMediaType{}).
func (reg *ErrorRegistry) Register(sample error, h ErrorHandlerFunc) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.byType[reflect.TypeOf(sample)] = h
}

// SetInternalErrorHandler overrides the fallback used when no registered
// kind matches, or when handling an error itself fails.
func (reg *ErrorRegistry) SetInternalErrorHandler(h ErrorHandlerFunc) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.internal = h
}

// Resolve looks up and invokes the handler for err's concrete type, falling
// back to unwrapped ancestor types, then to the internal handler. A panic
// raised by the resolved handler is recovered and retried exactly once
// through the internal handler so an Error Resolver bug degrades to a 500
// instead of crashing the server goroutine.
func (reg *ErrorRegistry) Resolve(c *Context, err error) {
	h := reg.lookup(err)
	reg.invoke(c, err, h, true)
}

func (reg *ErrorRegistry) lookup(err error) ErrorHandlerFunc {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for e := err; e != nil; e = errors.Unwrap(e) {
		if h, ok := reg.byType[reflect.TypeOf(e)]; ok {
			return h
		}
	}
	return reg.internal
}

func (reg *ErrorRegistry) invoke(c *Context, err error, h ErrorHandlerFunc, allowRetry bool) {
	defer func() {
		if r := recover(); r != nil {
			panicErr := fmt.Errorf("error handler panic: %v", r)
			if allowRetry {
				// Retry once through the internal handler (user-set or the
				// built-in default).
				reg.mu.RLock()
				internal := reg.internal
				reg.mu.RUnlock()
				reg.invoke(c, panicErr, internal, false)
				return
			}
			// The internal handler itself panicked: fall back to the
			// built-in default so the request still gets a response.
			reg.defaultInternalHandler(c, panicErr)
		}
	}()
	h(c, err)
}

func (reg *ErrorRegistry) defaultInternalHandler(c *Context, err error) {
	if c.wrote {
		return
	}
	if reg.production {
		reg.writeErrorBody(c, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.SetHeader("X-Error-Detail", err.Error())
	reg.writeErrorBody(c, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal server error",
		Message: err.Error(),
		Details: map[string]string{"stack": string(debug.Stack())},
	})
}

// defaultUnsupportedMediaTypeHandler is the seeded default for
// UnsupportedMediaType: a plain 415 (spec §4.5), shaped like any other
// default error response rather than falling through to the 500 path.
func (reg *ErrorRegistry) defaultUnsupportedMediaTypeHandler(c *Context, err error) {
	if c.wrote {
		return
	}
	if reg.production {
		reg.writeErrorBody(c, http.StatusUnsupportedMediaType, ErrorResponse{Error: "unsupported media type"})
		return
	}
	c.SetHeader("X-Error-Detail", err.Error())
	reg.writeErrorBody(c, http.StatusUnsupportedMediaType, ErrorResponse{
		Error:   "unsupported media type",
		Message: err.Error(),
	})
}

// writeErrorBody writes body at status, honoring Config.DefaultErrorContentType:
// the JSON shape is always the wire format, but a non-default content type
// re-labels the response instead of being silently ignored.
func (reg *ErrorRegistry) writeErrorBody(c *Context, status int, body ErrorResponse) {
	if reg.contentType == "" || reg.contentType == "application/json" {
		c.JSON(status, body)
		return
	}
	data, err := json.Marshal(body)
	if err != nil {
		data = []byte(body.Error)
	}
	c.Bytes(status, data, reg.contentType)
}
