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
	"sort"
)

// RouteInfo describes one registered route for introspection (diagnostics
// endpoints, generated docs, admin UIs).
type RouteInfo struct {
	Method  string
	Pattern string
}

// Snapshot returns a copy of every registered route, sorted by pattern then
// method, safe for a caller to retain or mutate without racing the live
// trie. RouteInfo holds only plain strings, so a fresh slice built by
// collectRoutes is already independent of the trie it was read from —
// there is no nested or mutable state underneath it to deep-copy.
func (r *Router) Snapshot() []RouteInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []RouteInfo
	collectRoutes(r.root, &result)

	sort.Slice(result, func(i, j int) bool {
		if result[i].Pattern != result[j].Pattern {
			return result[i].Pattern < result[j].Pattern
		}
		return result[i].Method < result[j].Method
	})
	return result
}

func collectRoutes(n *node, out *[]RouteInfo) {
	if n == nil {
		return
	}
	for _, rt := range n.routes {
		*out = append(*out, RouteInfo{Method: rt.Method, Pattern: rt.Pattern})
	}
	for _, child := range n.literal {
		collectRoutes(child, out)
	}
	for _, e := range n.params {
		collectRoutes(e.next, out)
	}
	if n.wildcard != nil {
		collectRoutes(n.wildcard.next, out)
	}
}
