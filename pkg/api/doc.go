/*
Package api implements the control-plane HTTP API: JSON requests over an
mTLS connection, backed by pkg/manager. It is the only way a worker,
another manager, or the CLI touches the node registry, the action
manifest registry, and the prewarm configuration.

# Endpoints

Node registry:

	POST   /v1/nodes                    register a node
	GET    /v1/nodes                     list nodes
	GET    /v1/nodes/{id}                get a node
	POST   /v1/nodes/{id}/heartbeat      refresh LastHeartbeat

Action manifests:

	PUT    /v1/actions/{namespace}/{name}  create or update a revision
	GET    /v1/actions/{namespace}/{name}  get a manifest
	DELETE /v1/actions/{namespace}/{name}  remove a manifest
	GET    /v1/actions                     list manifests

Prewarm configuration:

	PUT    /v1/prewarm-config            replace the whole configuration
	GET    /v1/prewarm-config            read the current configuration

Cluster membership and bootstrap:

	POST   /v1/join-tokens               mint a join token (leader only)
	POST   /v1/cluster/join              add a voter to the Raft cluster
	POST   /v1/certificates              exchange a join token for an mTLS cert

# Leadership

Write endpoints reject non-leader requests with 412 Precondition Failed
and the current leader's address, so pkg/client's caller can retry there
without paying the cost of a doomed Raft Apply.

# Authentication

The server presents a certificate issued by the cluster's
security.CertAuthority and asks each client for one during the TLS
handshake, but it neither requires a client certificate nor verifies one
against the CA, and no handler checks the caller's certificate: any TLS
client reaches every endpoint. /v1/certificates and /v1/cluster/join
check the join token in the request body and reject an invalid one with
401.

# See Also

  - pkg/manager for request processing
  - pkg/client for the Go client this server answers
  - pkg/security for the certificate authority and mTLS helpers
*/
package api
