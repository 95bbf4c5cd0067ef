/*
Package security provides the cluster's certificate authority, mTLS
certificate lifecycle, and at-rest encryption for the CA's own root key.

	┌─────────────────────────────────────────────────────────────┐
	│                    Security Architecture                    │
	└─────┬──────────────────────────────────┬────────────────────┘
	      │                                  │
	      ▼                                  ▼
	┌──────────────────┐             ┌──────────────────┐
	│  CertAuthority    │             │  Cert files       │
	│  RSA-4096 root,   │             │  on-disk per node │
	│  RSA-2048 issued  │             │  (GetCertDir,     │
	│  90-day validity  │             │  LoadCertFromFile)│
	└──────────────────┘             └──────────────────┘

# Cluster Encryption Key

The CA's root private key is encrypted at rest with AES-256-GCM under a key
derived from the cluster ID:

	clusterKey = SHA-256(clusterID)

SetClusterEncryptionKey installs this key once, during manager startup,
before CertAuthority.LoadFromStore or SaveToStore touch the persisted root
key. Today the node ID stands in for a cluster-wide ID, which only holds up
correctly in a single-manager cluster — see DESIGN.md.

# Certificate Authority

CertAuthority issues two kinds of certificate:

  - IssueNodeCertificate: server certificates for a manager's control-plane
    API listener, scoped to that node's advertised addresses.
  - IssueClientCertificate: client certificates for the CLI and for worker
    nodes bootstrapping their control-plane connection (pkg/client).

Both are signed by the same in-memory root and share a 90-day validity
window; there is no automatic rotation yet — a node whose certificate
expires re-bootstraps with a fresh join token.

# On-Disk Certificate Cache

pkg/client's bootstrap flow (RequestCertificate) writes the certificate,
private key, and CA certificate it receives to certDir as PEM files, and
CertExists/LoadCertFromFile/LoadCACertFromFile let a node skip
re-bootstrapping on every restart.

# See Also

  - pkg/api - Presents CertAuthority-issued server certificates over mTLS
  - pkg/client - Requests and caches client certificates
  - pkg/manager - Owns the CertAuthority and the cluster encryption key
*/
package security
