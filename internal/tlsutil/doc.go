// Package tlsutil provides centralized, hardened TLS configuration
// (TLS 1.2+, AEAD cipher suites only) for the gateway's outbound HTTP
// clients.
package tlsutil
