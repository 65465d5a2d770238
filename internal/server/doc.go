// Package server implements the MCP (Model Context Protocol) server for
// document layout detection.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - layout_detect: Detect text, title, list, table and figure regions
//   - layout_heatmap: Render detected regions as a heatmap (base64 PNG)
//   - image_dimensions: Get width and height
//
// Every tool takes an absolute path. PDF inputs accept an optional 0-based
// page; other formats ignore it.
//
// # Image Caching
//
// Loaded pages are cached by path, page and DPI for the lifetime of the
// process, so detecting and then rendering the same page decodes it once.
//
// # Error Handling
//
// Tool failures return JSON-RPC error code -32000. When the failure belongs
// to a pipeline stage, the error data is the same {"error", "details"}
// object the layout-detect CLI prints.
package server
