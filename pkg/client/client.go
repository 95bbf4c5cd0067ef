// Package client is the control-plane CLI/RPC client: JSON requests over an
// mTLS HTTP connection to a manager's pkg/api server. It replaced an
// earlier gRPC transport whose generated stubs never shipped with this
// tree; the wire format changed, the certificate-bootstrap flow below did
// not.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cuemby/invoker/pkg/events"
	"github.com/cuemby/invoker/pkg/security"
	"github.com/cuemby/invoker/pkg/types"
)

// Client talks to one manager's control-plane HTTP API.
type Client struct {
	addr   string
	http   *http.Client
	stream *http.Client // same TLS identity, no request timeout — for WatchEvents
}

// NewClient creates a client using the CLI's existing mTLS certificate.
func NewClient(addr string) (*Client, error) {
	// Same directory NewClientWithToken caches the CLI certificate in.
	certDir, err := security.GetCertDir("cli", "cli")
	if err != nil {
		return nil, fmt.Errorf("failed to get cert directory: %w", err)
	}
	if !security.CertExists(certDir) {
		return nil, fmt.Errorf("CLI certificate not found at %s; connect once with a join token to obtain one", certDir)
	}
	return newMTLSClient(addr, certDir)
}

// NewClientWithToken requests a CLI certificate from the manager using a
// join token (if one isn't already cached), then connects with mTLS.
func NewClientWithToken(addr, token string) (*Client, error) {
	return NewClientForNode(addr, "cli", "cli", token)
}

// NewClientForNode requests (or reuses) a certificate under nodeType/nodeID
// and connects with mTLS. Used by the worker daemon to bootstrap its own
// control-plane connection, distinct from the CLI's.
func NewClientForNode(addr, nodeType, nodeID, token string) (*Client, error) {
	certDir, err := security.GetCertDir(nodeType, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cert directory: %w", err)
	}
	if !security.CertExists(certDir) {
		if err := RequestCertificate(addr, nodeID, token, certDir); err != nil {
			return nil, fmt.Errorf("failed to request certificate: %w", err)
		}
	}
	return newMTLSClient(addr, certDir)
}

// Close is a no-op for the HTTP transport; kept so callers written against
// the old connection-oriented client still compile unchanged.
func (c *Client) Close() error { return nil }

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, "https://"+c.addr+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, string(respBody))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// RegisterNode registers this node in the cluster's node registry.
func (c *Client) RegisterNode(ctx context.Context, node *types.Node) (*types.Node, error) {
	var out types.Node
	if err := c.do(ctx, http.MethodPost, "/v1/nodes", node, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Heartbeat refreshes a node's LastHeartbeat.
func (c *Client) Heartbeat(ctx context.Context, nodeID string) error {
	return c.do(ctx, http.MethodPost, "/v1/nodes/"+nodeID+"/heartbeat", nil, nil)
}

// ListNodes lists all nodes known to the cluster.
func (c *Client) ListNodes(ctx context.Context) ([]*types.Node, error) {
	var out []*types.Node
	if err := c.do(ctx, http.MethodGet, "/v1/nodes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetNode gets a node by ID.
func (c *Client) GetNode(ctx context.Context, id string) (*types.Node, error) {
	var out types.Node
	if err := c.do(ctx, http.MethodGet, "/v1/nodes/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutActionManifest registers or updates an action manifest. The Deployer
// uses this path to publish new revisions.
func (c *Client) PutActionManifest(ctx context.Context, m *types.ActionManifest) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/v1/actions/%s/%s", m.Namespace, m.Name), m, nil)
}

// ListActionManifests lists all registered action manifests.
func (c *Client) ListActionManifests(ctx context.Context) ([]*types.ActionManifest, error) {
	var out []*types.ActionManifest
	if err := c.do(ctx, http.MethodGet, "/v1/actions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetActionManifest fetches one action manifest by its namespace/name FQN.
func (c *Client) GetActionManifest(ctx context.Context, fqn string) (*types.ActionManifest, error) {
	var out types.ActionManifest
	if err := c.do(ctx, http.MethodGet, "/v1/actions/"+fqn, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveAction deletes an action's manifest by its namespace/name FQN.
func (c *Client) RemoveAction(ctx context.Context, fqn string) error {
	return c.do(ctx, http.MethodDelete, "/v1/actions/"+fqn, nil, nil)
}

// PutPrewarmConfig replaces the cluster's prewarm configuration.
func (c *Client) PutPrewarmConfig(ctx context.Context, entries []*types.PrewarmConfigEntry) error {
	return c.do(ctx, http.MethodPut, "/v1/prewarm-config", entries, nil)
}

// GetPrewarmConfig fetches the cluster's current prewarm configuration.
func (c *Client) GetPrewarmConfig(ctx context.Context) ([]*types.PrewarmConfigEntry, error) {
	var out []*types.PrewarmConfigEntry
	if err := c.do(ctx, http.MethodGet, "/v1/prewarm-config", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateJoinToken asks the manager for a token a worker or manager can
// use to join the cluster.
func (c *Client) GenerateJoinToken(ctx context.Context, role string) (string, error) {
	var out struct{ Token string `json:"token"` }
	if err := c.do(ctx, http.MethodPost, "/v1/join-tokens", map[string]string{"role": role}, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// JoinCluster joins this node to an existing cluster.
func (c *Client) JoinCluster(ctx context.Context, nodeID, bindAddr, token string) error {
	return c.do(ctx, http.MethodPost, "/v1/cluster/join", map[string]string{
		"node_id": nodeID, "bind_addr": bindAddr, "token": token,
	}, nil)
}

type certificateResponse struct {
	Certificate []byte `json:"certificate"`
	PrivateKey  []byte `json:"private_key"`
	CACert      []byte `json:"ca_cert"`
}

// RequestCertificate exchanges a join token for an mTLS client certificate
// under nodeID's identity, over plain HTTPS with server-side verification
// only (the token itself is the credential). The manager derives the
// issued certificate's role from the token, not from nodeID. Used both by
// NewClientWithToken (nodeID "cli") and by the worker daemon's own
// certificate bootstrap.
func RequestCertificate(addr, nodeID, token, certDir string) error {
	tr := &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} //nolint — bootstrap-only, token authenticates
	httpClient := &http.Client{Transport: tr, Timeout: 10 * time.Second}

	body, _ := json.Marshal(map[string]string{"node_id": nodeID, "token": token})
	req, err := http.NewRequest(http.MethodPost, "https://"+addr+"/v1/certificates", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to manager: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("certificate request failed: %s: %s", resp.Status, string(b))
	}

	var out certificateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode certificate response: %w", err)
	}

	if err := os.MkdirAll(certDir, 0700); err != nil {
		return fmt.Errorf("failed to create cert directory: %w", err)
	}
	if err := os.WriteFile(certDir+"/node.crt", out.Certificate, 0600); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := os.WriteFile(certDir+"/node.key", out.PrivateKey, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(certDir+"/ca.crt", out.CACert, 0644); err != nil {
		return fmt.Errorf("failed to write CA certificate: %w", err)
	}
	return nil
}

// newMTLSClient builds a Client presenting certDir's client certificate and
// trusting only certDir's CA. Two *http.Client share the TLS identity: the
// default one bounds every request to 10s, the stream one has no timeout
// for WatchEvents' open-ended connection.
func newMTLSClient(addr, certDir string) (*Client, error) {
	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}
	return &Client{
		addr: addr,
		http: &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
			Timeout:   10 * time.Second,
		},
		stream: &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
	}, nil
}

// WatchEvents subscribes to the manager's cluster event stream and returns
// a channel of decoded events. The channel is closed when ctx is canceled
// or the connection drops; callers that want to keep watching should retry.
func (c *Client) WatchEvents(ctx context.Context) (<-chan *events.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+c.addr+"/v1/events", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to event stream: %w", err)
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("event stream: %s: %s", resp.Status, string(b))
	}

	out := make(chan *events.Event, 16)
	go func() {
		defer resp.Body.Close()
		defer close(out)
		dec := json.NewDecoder(resp.Body)
		for {
			var event events.Event
			if err := dec.Decode(&event); err != nil {
				return
			}
			select {
			case out <- &event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
