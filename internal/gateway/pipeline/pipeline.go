// Package pipeline runs HTTP requests through a fixed, ordered list of
// interceptors before the route handler. Every failure, whether returned by
// an interceptor, returned by the handler, or raised as a panic, leaves
// through the Normalizer as a JSON error envelope.
package pipeline

import (
	"fmt"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/tracing"
)

// Interceptor inspects a request before the handler. It returns the request
// to continue with, possibly carrying a derived context, or an error that
// ends the request.
type Interceptor struct {
	Name string
	Run  func(r *http.Request) (*http.Request, error)
}

// HandlerFunc is a route handler that reports failure by returning an error
// instead of writing one.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Pipeline is an immutable interceptor chain.
type Pipeline struct {
	normalizer   *Normalizer
	interceptors []Interceptor
}

// New returns a pipeline running interceptors in the order given.
func New(normalizer *Normalizer, interceptors ...Interceptor) *Pipeline {
	return &Pipeline{
		normalizer:   normalizer,
		interceptors: append([]Interceptor(nil), interceptors...),
	}
}

// Handle wraps h so that it only runs after every interceptor passed.
func (p *Pipeline) Handle(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.StartSpan(r.Context(), r.Method+" "+r.URL.Path)
		r = r.WithContext(ctx)
		rw := &responseWriter{ResponseWriter: w}
		var err error
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic serving %s: %v", r.URL.Path, rec)
				p.fail(rw, r, err)
			}
			span.End(err)
			span.Log(ctx)
		}()

		for _, ic := range p.interceptors {
			_, icSpan := tracing.StartChildSpan(r.Context(), ic.Name)
			next, icErr := ic.Run(r)
			icSpan.End(icErr)
			if icErr != nil {
				err = icErr
				p.fail(rw, r, err)
				return
			}
			r = next
		}

		hctx, hSpan := tracing.StartChildSpan(r.Context(), "handler")
		err = h(rw, r.WithContext(hctx))
		hSpan.End(err)
		if err != nil {
			p.fail(rw, r, err)
		}
	})
}

func (p *Pipeline) fail(rw *responseWriter, r *http.Request, err error) {
	if rw.wroteHeader {
		p.normalizer.LogUnwritable(r, err)
		return
	}
	p.normalizer.Write(rw, r, err)
}

// responseWriter remembers whether the handler already started a response.
type responseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}
