package coordinator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/dreamware/fabric/internal/catalog"
	"github.com/dreamware/fabric/internal/wire"
)

// maxProxyAttempts is 1 (the chosen worker) + N=2 failover candidates,
// per spec.md §4.4's reverse-proxy failover rule.
const maxProxyAttempts = 3

// maxRetryableBody bounds how much of a request body handleProxy will
// buffer in order to replay it against a second or third candidate
// worker. Above this size the upload is streamed straight through to
// the first candidate only and a transport failure there is surfaced
// immediately, per spec.md §4.4's "must not buffer entire body in
// memory for uploads above a small threshold" rule — failover and
// unbounded streaming are mutually exclusive for a single request.
const maxRetryableBody = 4 << 20 // 4MiB

// handleProxy implements `ANY /service/{service}/{rest:path}`: resolve
// the service via the registry, round-robin across its non-stale
// workers, and relay the request with failover across up to two other
// candidates on connect failure or a 5xx response.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	rest := chi.URLParam(r, "*")

	workers := s.Registry.FindByService(service)
	if len(workers) == 0 {
		respondError(w, http.StatusServiceUnavailable, "no healthy worker for "+service, s.availableServices())
		return
	}

	if svc, ok := catalog.Lookup(service); ok && svc.ForwardTimeout > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), svc.ForwardTimeout)
		defer cancel()
		r = r.WithContext(ctx)
	}

	start := s.cursors.Next(service, len(workers))
	ordered := make([]wire.WorkerInfo, len(workers))
	for i := range workers {
		ordered[i] = workers[(start+i)%len(workers)]
	}
	if len(ordered) > maxProxyAttempts {
		ordered = ordered[:maxProxyAttempts]
	}

	// A failover retry replays the request against the next candidate,
	// which means the body must be re-readable. Buffer it up front when
	// it's small enough; otherwise collapse to a single attempt so the
	// upload is still streamed rather than buffered wholesale.
	if r.Body != nil && r.Body != http.NoBody && len(ordered) > 1 {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRetryableBody+1))
		if err != nil {
			respondError(w, http.StatusBadGateway, "failed to read request body", nil)
			return
		}
		if len(body) > maxRetryableBody {
			ordered = ordered[:1]
			r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
		} else {
			r.Body = io.NopCloser(bytes.NewReader(body))
			r.GetBody = func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(body)), nil
			}
		}
	}

	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = "http"
			req.URL.Host = "fabric-proxy.invalid"
			req.URL.Path = "/" + rest
		},
		Transport: &failoverTransport{
			base:     http.DefaultTransport,
			workers:  ordered,
			metrics:  s.metrics,
			service:  service,
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.log.Warn().Err(err).Str("service", service).Msg("reverse proxy exhausted all candidates")
			respondError(w, http.StatusBadGateway, fmt.Sprintf("no worker for %s could serve the request", service), nil)
		},
	}
	proxy.ServeHTTP(w, r)
}

// failoverTransport tries each candidate worker's tunnel in order,
// returning the first response that isn't a transport error or 5xx.
// Because this runs inside http.RoundTripper rather than a hand-rolled
// copy loop, httputil.ReverseProxy still streams the winning response
// to the client without buffering it first — torua's
// forwardGet/forwardPut hand-roll the copy because they never needed to
// retry across targets.
type failoverTransport struct {
	base    http.RoundTripper
	metrics *metrics
	service string
	workers []wire.WorkerInfo
}

func (t *failoverTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var lastErr error
	for _, worker := range t.workers {
		target, err := url.Parse(worker.TunnelURL)
		if err != nil {
			lastErr = err
			continue
		}

		outReq := req.Clone(req.Context())
		outReq.URL.Scheme = target.Scheme
		outReq.URL.Host = target.Host
		outReq.Host = target.Host
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				lastErr = err
				continue
			}
			outReq.Body = body
		}

		resp, err := t.base.RoundTrip(outReq)
		if err != nil {
			t.metrics.proxyFailures.WithLabelValues(t.service).Inc()
			lastErr = err
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			t.metrics.proxyFailures.WithLabelValues(t.service).Inc()
			lastErr = fmt.Errorf("worker %s returned %d", worker.WorkerID, resp.StatusCode)
			continue
		}

		t.metrics.proxySuccesses.WithLabelValues(t.service).Inc()
		return resp, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate workers for %s", t.service)
	}
	return nil, lastErr
}
