// Package server hosts the MCP server over HTTP for the SSE transport.
//
// Besides the MCP endpoints it serves a few plain HTTP routes for
// operators and dashboards:
//
//   - GET  /sse, POST /message: MCP over SSE (mcp-go)
//   - GET  /health: liveness and tool count
//   - GET  /tools: tool names, descriptions and parameter schemas
//   - GET  /permissions/: the permission gate snapshot
//   - POST /permissions/approve: approve an operation on a path
//   - GET  /events: server-sent stream of bus events, optionally filtered
//     with ?type=command.executed,agent.
//
// The router is Chi with request id, zerolog request logging, panic
// recovery and CORS middleware.
package server
