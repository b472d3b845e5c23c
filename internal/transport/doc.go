// Package transport builds the outbound HTTP client shared by the image host
// and the vision model clients.
//
// The client can route through a SOCKS5 proxy (for example a corporate
// egress proxy or a local Tor daemon), applies an optional overall timeout
// and stamps every request with the floorscan User-Agent.
package transport
