package edge

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/dreamware/fabric/internal/wire"
)

// maxRetryableBody mirrors internal/coordinator's bound on how much of a
// request body gets buffered for replay across failover candidates;
// above this the request is streamed to the first live coordinator only.
const maxRetryableBody = 4 << 20 // 4MiB

// handleProxy implements spec.md §4.7's `ANY /{rest:path}`: pick a live
// coordinator round-robin and forward the request to it verbatim. With
// no live coordinator it answers 503, same contract as the coordinator's
// own reverse proxy when a service has no healthy worker.
//
// Grounded on internal/coordinator/proxy.go's failoverTransport, one
// level up: a coordinator here plays the role a worker plays there, and
// failover tries every live coordinator instead of stopping at N=2,
// since the edge router's whole job is being the one thing clients can
// always reach.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	live := s.Registry.ListLive()
	if len(live) == 0 {
		respondError(w, http.StatusServiceUnavailable, "no live coordinator")
		return
	}

	start := s.nextCoordinator(len(live))
	ordered := make([]wire.CoordinatorInfo, len(live))
	for i := range live {
		ordered[i] = live[(start+i)%len(live)]
	}

	if r.Body != nil && r.Body != http.NoBody && len(ordered) > 1 {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRetryableBody+1))
		if err != nil {
			respondError(w, http.StatusBadGateway, "failed to read request body")
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
			req.URL.Host = "fabric-edge.invalid"
		},
		Transport: &coordinatorFailoverTransport{
			base:         http.DefaultTransport,
			coordinators: ordered,
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.log.Warn().Err(err).Msg("edge reverse proxy exhausted all coordinators")
			respondError(w, http.StatusBadGateway, "no coordinator could serve the request")
		},
	}
	proxy.ServeHTTP(w, r)
}

// coordinatorFailoverTransport tries each candidate coordinator's tunnel
// in order, returning the first response that isn't a transport error or
// 5xx, exactly as internal/coordinator's failoverTransport does for
// workers.
type coordinatorFailoverTransport struct {
	base         http.RoundTripper
	coordinators []wire.CoordinatorInfo
}

func (t *coordinatorFailoverTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var lastErr error
	for _, c := range t.coordinators {
		target, err := url.Parse(c.TunnelURL)
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
			lastErr = err
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			lastErr = fmt.Errorf("coordinator %s returned %d", c.CoordinatorID, resp.StatusCode)
			continue
		}

		return resp, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate coordinators")
	}
	return nil, lastErr
}
