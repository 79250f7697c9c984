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
	"fmt"
	"regexp"
	"strings"
)

// segKind distinguishes a literal path segment from a named parameter.
type segKind uint8

const (
	segLiteral segKind = iota
	segParam
)

// patternSeg is one parsed segment of a registered route pattern.
type patternSeg struct {
	kind      segKind
	text      string // literal text, when kind == segLiteral
	name      string // parameter name, when kind == segParam
	paramKind paramKind
}

var literalSegmentRE = regexp.MustCompile(`^[A-Za-z0-9._~-]+$`)
var paramNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// parsePattern parses a registration pattern into segments. Three forms
// are recognized for a dynamic segment:
//
//	{name}       untyped parameter (defaults to string)
//	{name:type}  typed parameter; type is one of string, int, uuid, path
//	*name        a path wildcard equivalent to {name:path}, which must be
//	             the final segment
//
// Static segments must match literalSegmentRE.
func parsePattern(p string) ([]patternSeg, error) {
	raw := strings.Split(strings.Trim(p, "/"), "/")
	if len(raw) == 1 && raw[0] == "" {
		return []patternSeg{}, nil
	}
	segs := make([]patternSeg, 0, len(raw))
	for _, s := range raw {
		if s == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPattern, p)
		}
		seg, err := parseSegment(s, p)
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func parseSegment(s, fullPattern string) (patternSeg, error) {
	switch {
	case strings.HasPrefix(s, "*"):
		name := s[1:]
		if name == "" {
			return patternSeg{}, fmt.Errorf("%w: wildcard requires a name in %q", ErrInvalidPattern, fullPattern)
		}
		if !paramNameRE.MatchString(name) {
			return patternSeg{}, fmt.Errorf("%w: invalid wildcard name %q in %q", ErrInvalidPattern, name, fullPattern)
		}
		return patternSeg{kind: segParam, name: name, paramKind: KindPath}, nil

	case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
		inner := s[1 : len(s)-1]
		name := inner
		tag := ""
		if idx := strings.IndexByte(inner, ':'); idx >= 0 {
			name = inner[:idx]
			tag = inner[idx+1:]
		}
		if !paramNameRE.MatchString(name) {
			return patternSeg{}, fmt.Errorf("%w: invalid parameter name %q in %q", ErrInvalidPattern, name, fullPattern)
		}
		kind, ok := parseParamKind(tag)
		if !ok {
			return patternSeg{}, fmt.Errorf("%w: unknown parameter type %q in %q", ErrInvalidPattern, tag, fullPattern)
		}
		if kind == KindPath {
			return patternSeg{kind: segParam, name: name, paramKind: KindPath}, nil
		}
		return patternSeg{kind: segParam, name: name, paramKind: kind}, nil

	default:
		if !literalSegmentRE.MatchString(s) {
			return patternSeg{}, fmt.Errorf("%w: invalid literal segment %q in %q", ErrInvalidPattern, s, fullPattern)
		}
		return patternSeg{kind: segLiteral, text: s}, nil
	}
}
