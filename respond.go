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
	"net/http"
	"reflect"
)

var errUnsupportedNormalize = errors.New("quokka: value has no recognized response shape")

// Response is the canonical, already-shaped form any handler return value
// is normalized into. A handler (or middleware) may construct one directly
// via Context.Return to bypass normalization entirely.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Normalize converts a handler's polymorphic Context.Return value into a
// Response, per the core's response-shaping table:
//
//	*Response / Response  -> used unchanged (status/content-type honored as given)
//	map[string]any/struct -> 200, application/json
//	string                -> 200, text/html; charset=utf-8
//	[]byte                -> 200, application/octet-stream
//	nil                   -> 204, no body
//	anything else         -> UnsupportedReturnType
func Normalize(v any) (*Response, error) {
	switch val := v.(type) {
	case nil:
		return &Response{Status: http.StatusNoContent}, nil
	case Response:
		return &val, nil
	case *Response:
		return val, nil
	case string:
		return &Response{Status: http.StatusOK, ContentType: "text/html; charset=utf-8", Body: []byte(val)}, nil
	case []byte:
		return &Response{Status: http.StatusOK, ContentType: "application/octet-stream", Body: val}, nil
	default:
		body, err := marshalJSON(val)
		if err != nil {
			return nil, &UnsupportedReturnType{Value: v}
		}
		return &Response{Status: http.StatusOK, ContentType: "application/json; charset=utf-8", Body: body}, nil
	}
}

// marshalJSON is split out so the normalizer can special-case the value
// shapes it recognizes (map/slice/struct, or pointers to them) and otherwise
// fail shut rather than silently JSON-encoding something like a channel or
// a func, which json.Marshal would reject anyway with an opaque error.
func marshalJSON(v any) ([]byte, error) {
	if !isStructLike(v) {
		return nil, errUnsupportedNormalize
	}
	return json.Marshal(v)
}

// isStructLike reports whether v is (or points to) a map, slice, array, or
// struct — the shapes the normalizer treats as JSON-able.
func isStructLike(v any) bool {
	t := reflect.TypeOf(v)
	if t == nil {
		return false
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	default:
		return false
	}
}

// write sends a *Response through a Context, honoring wrote-once semantics.
func (resp *Response) write(c *Context) {
	if c.wrote {
		return
	}
	if resp.ContentType != "" {
		c.Bytes(resp.Status, resp.Body, resp.ContentType)
		return
	}
	c.Status(resp.Status)
}
