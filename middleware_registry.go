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

import "sort"

// Phase distinguishes the two middleware stages the registry runs global
// middleware in: before route matching/handler dispatch, and after the
// handler (and response normalization) has run.
type Phase uint8

const (
	// PhasePreRoute middleware wraps the per-route middleware and handler.
	// It runs before the handler and, on its way out, after it.
	PhasePreRoute Phase = iota

	// PhasePostRoute middleware wraps the entire pre-route unit (including
	// any per-route middleware). Its "after next(c)" code always executes,
	// even if a pre-route middleware short-circuited and the handler itself
	// never ran.
	PhasePostRoute
)

// middlewareEntry is one registered global middleware, carrying enough to
// produce the deterministic (priority, registration-order) total order the
// dispatcher applies at request time.
type middlewareEntry struct {
	fn       Middleware
	priority int
	phase    Phase
	name     string
	order    int
}

// sortMiddleware orders entries ascending by priority, then by registration
// order for ties — the comparison is never ambiguous, since order is unique.
func sortMiddleware(entries []middlewareEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].order < entries[j].order
	})
}

// buildChain composes a Handler from an ordered list of global middleware
// entries wrapped around inner.
func buildChain(entries []middlewareEntry, inner Handler) Handler {
	h := inner
	for i := len(entries) - 1; i >= 0; i-- {
		h = entries[i].fn(h)
	}
	return h
}
