package quokka_test

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	q "github.com/jrgalyan/quokka"
)

var _ = Describe("Middleware registry phases", func() {
	It("runs pre-route middleware before the handler and post-route after it", func() {
		r := q.New()
		order := []string{}
		r.Use(func(next q.Handler) q.Handler {
			return func(c *q.Context) { order = append(order, "pre"); next(c) }
		})
		r.UsePost(func(next q.Handler) q.Handler {
			return func(c *q.Context) { next(c); order = append(order, "post") }
		})
		r.GET("/x", func(c *q.Context) { order = append(order, "handler"); c.Status(http.StatusOK) })

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
		Expect(order).To(Equal([]string{"pre", "handler", "post"}))
	})

	It("runs post-route middleware even when a pre-route middleware short-circuits", func() {
		r := q.New()
		order := []string{}
		r.Use(func(next q.Handler) q.Handler {
			return func(c *q.Context) {
				order = append(order, "pre")
				c.JSON(http.StatusForbidden, q.ErrorResponse{Error: "denied"})
			}
		})
		r.UsePost(func(next q.Handler) q.Handler {
			return func(c *q.Context) { next(c); order = append(order, "post") }
		})
		r.GET("/x", func(c *q.Context) { order = append(order, "handler"); c.Status(http.StatusOK) })

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
		Expect(rr.Code).To(Equal(http.StatusForbidden))
		Expect(order).To(Equal([]string{"pre", "post"}))
	})

	It("orders global middleware by priority then registration order", func() {
		r := q.New()
		order := []string{}
		mkmw := func(name string) q.Middleware {
			return func(next q.Handler) q.Handler {
				return func(c *q.Context) { order = append(order, name); next(c) }
			}
		}
		r.Register(mkmw("low-prio-second"), 5, q.PhasePreRoute, "second")
		r.Register(mkmw("high-prio-first"), 1, q.PhasePreRoute, "first")
		r.Register(mkmw("low-prio-third"), 5, q.PhasePreRoute, "third")

		r.GET("/order", func(c *q.Context) { c.Status(http.StatusOK) })

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/order", nil))
		Expect(order).To(Equal([]string{"high-prio-first", "low-prio-second", "low-prio-third"}))
	})

	It("applies per-route middleware only to that route", func() {
		r := q.New()
		var hit bool
		onlyMine := func(next q.Handler) q.Handler {
			return func(c *q.Context) { hit = true; next(c) }
		}
		r.GET("/scoped", func(c *q.Context) { c.Status(http.StatusOK) }, onlyMine)
		r.GET("/unscoped", func(c *q.Context) { c.Status(http.StatusOK) })

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/unscoped", nil))
		Expect(hit).To(BeFalse())

		rr = httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/scoped", nil))
		Expect(hit).To(BeTrue())
	})
})
