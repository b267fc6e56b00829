// Package mcp implements the Model Context Protocol (MCP) surface for the
// music playback server.
//
// # Overview
//
// MCP clients (LLM agent hosts) speak JSON-RPC 2.0. This package resolves
// those requests against the playback tools through a two-layer
// architecture:
//
//  1. Server: the method dispatcher. It decodes one JSON-RPC request body,
//     routes initialize / tools/list / tools/call, and encodes the response
//     body. It is transport-agnostic: bytes in, bytes out.
//
//  2. HTTPServer: the process boundary. The single primary process owns
//     the listener; every agent-facing proxy forwards its stdio stream to
//     POST /mcp here, so all tool calls land in one process regardless of
//     how many agents are connected.
//
// # Request Flow
//
//	Agent host (stdio)
//	    ↓ (framed JSON-RPC)
//	proxy bridge
//	    ↓ (POST /mcp)
//	HTTPServer
//	    ↓ (body bytes)
//	Server.Handle → tools dispatch → Player / Engraver collaborators
//	    ↓
//	response body mirrored back down the same path
//
// # Tools
//
// play: caches the submitted score and queues it with the audio-playback
// collaborator. engrave: resolves a cached score (by id or most recent)
// and renders it with the notation collaborator; rendered images are
// served back over GET /images/.
//
// Notifications (requests without an id) never produce a response body;
// over HTTP they are acknowledged with 204 No Content.
package mcp
