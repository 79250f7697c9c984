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
	"strings"

	"github.com/google/uuid"
)

// paramKind is a path parameter's type tag. The zero value is KindString,
// the grammar's default when a segment omits ":type".
type paramKind uint8

const (
	KindString paramKind = iota
	KindInt
	KindUUID
	KindPath // wildcard catch-all; only valid as the final segment
)

// kindRank orders parameter children most-restrictive first so the matcher
// tries uuid before int before string at a shared parent, per the trie's
// precedence rule. KindPath never appears in this ordering: it lives on the
// dedicated wildcard edge, not in the ordered parameter list.
func kindRank(k paramKind) int {
	switch k {
	case KindUUID:
		return 0
	case KindInt:
		return 1
	case KindString:
		return 2
	default:
		return 3
	}
}

func parseParamKind(tag string) (paramKind, bool) {
	switch tag {
	case "", "string":
		return KindString, true
	case "int":
		return KindInt, true
	case "uuid":
		return KindUUID, true
	case "path":
		return KindPath, true
	default:
		return 0, false
	}
}

// matchKind reports whether seg satisfies kind's constraint, returning the
// value to bind (normally seg itself; present for symmetry with future
// kinds that might normalize the value).
func matchKind(k paramKind, seg string) (string, bool) {
	if seg == "" {
		return "", false
	}
	switch k {
	case KindInt:
		if isInt(seg) {
			return seg, true
		}
		return "", false
	case KindUUID:
		if isCanonicalUUID(seg) {
			return seg, true
		}
		return "", false
	case KindString:
		return seg, true
	default:
		return "", false
	}
}

func isInt(seg string) bool {
	i := 0
	if seg[0] == '+' || seg[0] == '-' {
		i = 1
	}
	if i >= len(seg) {
		return false
	}
	for ; i < len(seg); i++ {
		if seg[i] < '0' || seg[i] > '9' {
			return false
		}
	}
	return true
}

// isCanonicalUUID reports whether seg is a UUID in canonical 8-4-4-4-12 hex
// form. uuid.Parse alone is too permissive (it also accepts braces, urn:
// prefixes, and bare 32-hex-digit forms), so the canonical round-trip is
// checked explicitly.
func isCanonicalUUID(seg string) bool {
	if len(seg) != 36 {
		return false
	}
	id, err := uuid.Parse(seg)
	if err != nil {
		return false
	}
	return strings.EqualFold(id.String(), seg)
}
