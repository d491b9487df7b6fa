// Package httpx is the small routing surface the admin API is written
// against, backed by chi.
package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Router interface {
	Get(path string, h http.HandlerFunc)
	Post(path string, h http.HandlerFunc)
	Put(path string, h http.HandlerFunc)
	Delete(path string, h http.HandlerFunc)
	Handle(path string, h http.Handler)
	Use(mw ...func(http.Handler) http.Handler)
	// With returns a router sharing this one's routes whose handlers are
	// wrapped by mw.
	With(mw ...func(http.Handler) http.Handler) Router
	Mux() http.Handler
}

type chiRouter struct{ r chi.Router }

func NewChi() Router { return &chiRouter{r: chi.NewRouter()} }

func (c *chiRouter) Get(path string, h http.HandlerFunc)       { c.r.Get(path, h) }
func (c *chiRouter) Post(path string, h http.HandlerFunc)      { c.r.Post(path, h) }
func (c *chiRouter) Put(path string, h http.HandlerFunc)       { c.r.Put(path, h) }
func (c *chiRouter) Delete(path string, h http.HandlerFunc)    { c.r.Delete(path, h) }
func (c *chiRouter) Handle(path string, h http.Handler)        { c.r.Handle(path, h) }
func (c *chiRouter) Use(mw ...func(http.Handler) http.Handler) { c.r.Use(mw...) }
func (c *chiRouter) Mux() http.Handler                         { return c.r }

func (c *chiRouter) With(mw ...func(http.Handler) http.Handler) Router {
	return &chiRouter{r: c.r.With(mw...)}
}

// Param returns the named URL parameter of the matched route.
func Param(r *http.Request, key string) string { return chi.URLParam(r, key) }
