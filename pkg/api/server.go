package api

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/invoker/pkg/deploy"
	"github.com/cuemby/invoker/pkg/events"
	"github.com/cuemby/invoker/pkg/log"
	"github.com/cuemby/invoker/pkg/manager"
	"github.com/cuemby/invoker/pkg/metrics"
	"github.com/cuemby/invoker/pkg/security"
	"github.com/cuemby/invoker/pkg/types"
	"github.com/rs/zerolog"
)

// Server is the control-plane HTTP API: JSON requests over mTLS. It backs
// pkg/client and is the only way a worker, another manager, or the CLI
// touches the node registry, the action manifest registry, and the
// prewarm configuration.
type Server struct {
	manager  *manager.Manager
	ca       *security.CertAuthority
	deployer *deploy.Deployer
	mux      *http.ServeMux
	http     *http.Server
	log      zerolog.Logger
}

// NewServer creates an API server backed by mgr. ca must already be
// initialized or loaded from mgr's store — the server issues node, CLI,
// and CA certificates off of it but never creates one itself.
func NewServer(mgr *manager.Manager, ca *security.CertAuthority) *Server {
	s := &Server{
		manager:  mgr,
		ca:       ca,
		deployer: deploy.NewDeployer(mgr),
		mux:      http.NewServeMux(),
		log:      log.WithComponent("api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.handle("/v1/nodes", s.handleNodes)
	s.handle("/v1/nodes/", s.handleNode)
	s.handle("/v1/actions", s.handleActions)
	s.handle("/v1/actions/", s.handleAction)
	s.handle("/v1/prewarm-config", s.handlePrewarmConfig)
	s.handle("/v1/join-tokens", s.handleJoinTokens)
	s.handle("/v1/cluster/join", s.handleClusterJoin)
	s.handle("/v1/certificates", s.handleCertificates)
	s.mux.HandleFunc("/v1/events", s.handleEvents)
}

// handle wraps a handler with request logging and api_requests_total /
// api_request_duration_seconds instrumentation, keyed by the route's mux
// pattern rather than the raw path (which carries IDs).
func (s *Server) handle(pattern string, fn http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		outcome := "success"
		if rec.status >= 400 {
			outcome = "error"
		}
		metrics.APIRequestsTotal.WithLabelValues(pattern, outcome).Inc()
		metrics.APIRequestDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
		s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Int("status", rec.status).
			Dur("duration", time.Since(start)).Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Start serves the API over TLS with a server certificate from ca. It asks
// for a client certificate (tls.RequestClientCert) but neither requires one
// nor verifies it against ca's root, since the certificate-issuance
// endpoint is reached before a client has one. Bootstrap clients present a
// join token to /v1/certificates instead (see RequestCertificate in
// pkg/client).
func (s *Server) Start(addr string) error {
	serverCert, err := s.ca.IssueNodeCertificate(s.manager.NodeID(), "manager", nil, nodeIPs(addr))
	if err != nil {
		return fmt.Errorf("failed to issue server certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*serverCert},
		ClientAuth:   tls.RequestClientCert,
		MinVersion:   tls.VersionTLS13,
	}

	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		TLSConfig:    tlsConfig,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("api listening")
	return s.http.ListenAndServeTLS("", "")
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.http == nil {
		return nil
	}
	return s.http.Close()
}

func nodeIPs(addr string) []net.IP {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}
	}
	return nil
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// ensureLeader rejects writes on a follower with the leader's address so
// pkg/client's caller can retry there; hashicorp/raft itself would reject
// the Apply, but returning this before reaching Raft avoids the round trip.
func (s *Server) ensureLeader(w http.ResponseWriter) bool {
	if s.manager.IsLeader() {
		return true
	}
	leader := s.manager.LeaderAddr()
	writeError(w, http.StatusPreconditionFailed, fmt.Errorf("not the leader, current leader is at: %s", leader))
	return false
}

// --- nodes ---

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var node types.Node
		if err := json.NewDecoder(r.Body).Decode(&node); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if node.ID == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("node id required"))
			return
		}
		if !s.ensureLeader(w) {
			return
		}
		node.Status = types.NodeStatusReady
		node.LastHeartbeat = time.Now()
		node.CreatedAt = time.Now()
		if err := s.manager.CreateNode(&node); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.manager.PublishEvent(&events.Event{Type: events.EventNodeJoined, Metadata: map[string]string{"node_id": node.ID}})
		writeJSON(w, http.StatusOK, &node)
	case http.MethodGet:
		nodes, err := s.manager.ListNodes()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, nodes)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleNode serves /v1/nodes/{id} and /v1/nodes/{id}/heartbeat.
func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/nodes/")
	if id, ok := strings.CutSuffix(rest, "/heartbeat"); ok && r.Method == http.MethodPost {
		s.handleHeartbeat(w, r, id)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	node, err := s.manager.GetNode(rest)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request, id string) {
	if !s.ensureLeader(w) {
		return
	}
	node, err := s.manager.GetNode(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	node.LastHeartbeat = time.Now()
	node.Status = types.NodeStatusReady
	if err := s.manager.UpdateNode(node); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// --- action manifests ---

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	manifests, err := s.manager.ListActionManifests()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, manifests)
}

// handleAction serves /v1/actions/{namespace}/{name}.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/actions/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("expected /v1/actions/{namespace}/{name}"))
		return
	}
	namespace, name := parts[0], parts[1]
	fqn := namespace + "/" + name

	switch r.Method {
	case http.MethodPut:
		if !s.ensureLeader(w) {
			return
		}
		var manifest types.ActionManifest
		if err := json.NewDecoder(r.Body).Decode(&manifest); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		manifest.Namespace, manifest.Name = namespace, name
		if err := s.deployer.Deploy(&manifest); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, &manifest)
	case http.MethodGet:
		manifest, err := s.manager.GetActionManifest(fqn)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, manifest)
	case http.MethodDelete:
		if !s.ensureLeader(w) {
			return
		}
		if err := s.deployer.Remove(fqn); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, nil)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// --- prewarm configuration ---

func (s *Server) handlePrewarmConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		if !s.ensureLeader(w) {
			return
		}
		var entries []*types.PrewarmConfigEntry
		if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		now := time.Now()
		for _, e := range entries {
			e.UpdatedAt = now
		}
		if err := s.manager.PutPrewarmConfig(entries); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.manager.PublishEvent(&events.Event{Type: events.EventPrewarmConfigSet})
		writeJSON(w, http.StatusOK, entries)
	case http.MethodGet:
		entries, err := s.manager.GetPrewarmConfig()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// --- cluster membership ---

func (s *Server) handleJoinTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.ensureLeader(w) {
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Role == "" {
		req.Role = "worker"
	}
	token, err := s.manager.GenerateJoinToken(req.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token.Token})
}

func (s *Server) handleClusterJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		NodeID   string `json:"node_id"`
		BindAddr string `json:"bind_addr"`
		Token    string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := s.manager.ValidateJoinToken(req.Token); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if !s.ensureLeader(w) {
		return
	}
	if err := s.manager.AddVoter(req.NodeID, req.BindAddr); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// --- certificates ---

func (s *Server) handleCertificates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		NodeID string `json:"node_id"`
		Token  string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	role, err := s.manager.ValidateJoinToken(req.Token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	var cert *tls.Certificate
	if role == "cli" {
		cert, err = s.ca.IssueClientCertificate(req.NodeID)
	} else {
		cert, err = s.ca.IssueNodeCertificate(req.NodeID, role, nil, nil)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	keyDER, err := marshalPrivateKey(cert.PrivateKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: keyDER})
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: s.ca.GetRootCACert()})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"certificate": certPEM,
		"private_key": keyPEM,
		"ca_cert":     caPEM,
	})
}

func marshalPrivateKey(key interface{}) ([]byte, error) {
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}
	return x509.MarshalPKCS1PrivateKey(rsaKey), nil
}

// handleEvents streams the cluster event broker to a long-lived GET
// connection as newline-delimited JSON, one events.Event per line. Workers
// subscribe to this to learn about action revisions and prewarm
// configuration changes without polling. Registered directly on the mux
// rather than through handle(), since api_request_duration_seconds would
// otherwise record an open-ended connection's entire lifetime as one
// observation.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	sub := s.manager.GetEventBroker().Subscribe()
	defer s.manager.GetEventBroker().Unsubscribe(sub)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			if err := enc.Encode(event); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
