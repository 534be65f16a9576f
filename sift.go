// Package sift discovers actionable engineering work by running external
// code-analysis tools and turning their output into work items.
package sift

// Version is the release version reported by the CLI and the MCP server.
const Version = "0.3.0"
