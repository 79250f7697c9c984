// Package quokka provides a native request-dispatch engine for net/http: a
// compiled path trie, a priority-ordered middleware pipeline, a response
// normalizer, and a centralized error-handling policy.
//
// It focuses on:
//   - Fast, trie-based routing with typed path params and wildcard support
//   - A small, explicit API that is easy to reason about and test
//   - Structured logging, panic recovery, and a per-kind error resolver
//
// Getting started:
//
//	r := quokka.New()
//	r.Use(quokka.Recover(slog.Default()), quokka.Logger(quokka.LoggerConfig{}))
//	r.Handle(http.MethodGet, "/hello/{name}", func(c *quokka.Context) {
//		c.JSON(http.StatusOK, map[string]any{"hello": c.Param("name")})
//	})
//
//	log.Fatal(http.ListenAndServe(":8080", r))
//
// quokka.Router is itself an http.Handler: listening, TLS termination, and
// signal handling are the host program's job, not the core's — wire it into
// whatever *http.Server the embedding service already uses.
package quokka
