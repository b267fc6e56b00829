package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/whitneyland/mcpplay-core/logger"
	"github.com/whitneyland/mcpplay-core/rpc"
	"github.com/whitneyland/mcpplay-core/scores"
)

// Player queues a score for audio playback and returns a human-readable
// summary of what was queued. Implementations own the actual synthesis.
type Player interface {
	Play(score []byte) (string, error)
}

// Engraving describes one rendered notation image in the images dir.
type Engraving struct {
	FileName string // name under the images dir, not a full path
	MimeType string
	Summary  string
}

// Engraver renders a score into the served images directory.
type Engraver interface {
	Engrave(score []byte) (*Engraving, error)
}

// Server resolves JSON-RPC request bodies against the MCP methods:
// initialize, tools/list, and tools/call with the play and engrave
// tools. It is transport-agnostic; the HTTP layer and tests hand it
// bodies directly.
type Server struct {
	cache     *scores.Cache
	player    Player
	engraver  Engraver
	imageBase string
	log       *slog.Logger
}

// ServerOption is a functional option for configuring Server
type ServerOption func(*Server)

// WithPlayer sets the audio-playback collaborator.
func WithPlayer(p Player) ServerOption {
	return func(s *Server) { s.player = p }
}

// WithEngraver sets the notation-rendering collaborator.
func WithEngraver(e Engraver) ServerOption {
	return func(s *Server) { s.engraver = e }
}

// NewServer creates a new MCP dispatcher over the given score cache.
func NewServer(cache *scores.Cache, opts ...ServerOption) *Server {
	s := &Server{
		cache: cache,
		log:   logger.WithComponent("mcp"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetImageBase sets the URL prefix engraved-image URIs are built on,
// e.g. "http://127.0.0.1:4000". Call it before serving begins; the
// listener owner knows the bound port, so it sets this.
func (s *Server) SetImageBase(base string) {
	s.imageBase = base
}

// Handle resolves one request body and returns the encoded response
// body. ok is false when no response must be sent: notifications never
// produce one, whatever the outcome of their dispatch.
func (s *Server) Handle(body []byte) ([]byte, bool) {
	req, err := rpc.DecodeRequest(body)
	if err != nil {
		s.log.Error("undecodable request", "error", err)
		return encodeResponse(rpc.NewErrorResponse(nil, asRPCError(err))), true
	}

	s.log.Debug("received request", "method", req.Method, "notification", req.IsNotification())

	resp := s.dispatch(req)
	if req.IsNotification() || resp == nil {
		return nil, false
	}
	return encodeResponse(resp), true
}

func (s *Server) dispatch(req *rpc.Request) (resp *rpc.Response) {
	// A panicking handler must not take the server down; the agent on
	// the other end gets a structured error instead.
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("handler panicked", "method", req.Method, "panic", r)
			resp = rpc.NewErrorResponse(req.ID, rpc.Errorf(rpc.CodeInternalError, "Internal error: %v", r))
		}
	}()

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized", "initialized":
		// Notification, no response needed
		s.log.Debug("initialized notification received")
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	default:
		s.log.Warn("unknown method", "method", req.Method)
		return rpc.NewErrorResponse(req.ID, rpc.NewError(rpc.CodeMethodNotFound, "Method not found"))
	}
}

func (s *Server) handleInitialize(req *rpc.Request) *rpc.Response {
	if params, err := decodeInitializeParams(req.Params); err == nil && params.ClientInfo.Name != "" {
		s.log.Info("client initialized",
			"client", params.ClientInfo.Name,
			"clientVersion", params.ClientInfo.Version,
			"protocolVersion", params.ProtocolVersion)
	}

	result := InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: Capability{
			Tools: &ToolCapability{},
		},
		ServerInfo: ServerInfo{
			Name:    ServerName,
			Version: ServerVersion,
		},
		Instructions: "This server plays and engraves musical sequences submitted by agents.",
	}

	return s.result(req.ID, result)
}

func (s *Server) handleToolsList(req *rpc.Request) *rpc.Response {
	tools := []ToolDefinition{
		{
			Name:        ToolPlay,
			Description: "Queue a musical sequence for playback. The sequence is cached under a score id for later engraving.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"score": {
						Type:        "object",
						Description: "The sequence to play: {title, tempo, tracks: [{instrument, notes: [{pitch, start, duration, velocity}]}]}",
					},
					"score_id": {
						Type:        "string",
						Description: "Optional id to cache the score under. Generated when omitted.",
					},
				},
				Required: []string{"score"},
			},
		},
		{
			Name:        ToolEngrave,
			Description: "Render a previously played sequence as notation. Returns a link to the rendered image.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"score_id": {
						Type:        "string",
						Description: "Id of the cached score to engrave. Defaults to the most recently played one.",
					},
				},
			},
		},
	}

	return s.result(req.ID, ToolsListResult{Tools: tools})
}

func (s *Server) handleToolsCall(req *rpc.Request) *rpc.Response {
	params, rpcErr := decodeToolCallParams(req.Params)
	if rpcErr != nil {
		s.log.Error("failed to parse tool call params", "error", rpcErr)
		return rpc.NewErrorResponse(req.ID, rpcErr)
	}

	switch params.Name {
	case ToolPlay:
		return s.handlePlay(req, params)
	case ToolEngrave:
		return s.handleEngrave(req, params)
	default:
		s.log.Warn("unknown tool", "tool", params.Name)
		return rpc.NewErrorResponse(req.ID, rpc.NewError(rpc.CodeInvalidParams, "Unknown tool"))
	}
}

func (s *Server) handlePlay(req *rpc.Request, params ToolCallParams) *rpc.Response {
	score, ok := params.Arguments["score"]
	if !ok || len(score) == 0 {
		return rpc.NewErrorResponse(req.ID, rpc.NewError(rpc.CodeInvalidParams, "Missing required argument: score"))
	}

	id, err := stringArgument(params.Arguments, "score_id")
	if err != nil {
		return rpc.NewErrorResponse(req.ID, rpc.NewError(rpc.CodeInvalidParams, err.Error()))
	}
	if id == "" {
		id = uuid.NewString()
	}

	s.cache.Put(id, score)
	s.log.Info("play requested", "scoreID", id, "bytes", len(score))

	if s.player == nil {
		return s.toolError(req.ID, "No playback backend is configured")
	}
	summary, err := s.player.Play(score)
	if err != nil {
		s.log.Error("playback failed", "scoreID", id, "error", err)
		return s.toolError(req.ID, fmt.Sprintf("Playback failed: %v", err))
	}

	return s.toolText(req.ID, fmt.Sprintf("%s (score_id: %s)", summary, id))
}

func (s *Server) handleEngrave(req *rpc.Request, params ToolCallParams) *rpc.Response {
	id, err := stringArgument(params.Arguments, "score_id")
	if err != nil {
		return rpc.NewErrorResponse(req.ID, rpc.NewError(rpc.CodeInvalidParams, err.Error()))
	}

	var score []byte
	var ok bool
	if id != "" {
		score, ok = s.cache.Get(id)
		if !ok {
			return rpc.NewErrorResponse(req.ID, rpc.Errorf(rpc.CodeInvalidParams, "No score cached under id %q", id))
		}
	} else {
		id, score, ok = s.cache.Latest()
		if !ok {
			return rpc.NewErrorResponse(req.ID, rpc.NewError(rpc.CodeInvalidParams, "No score has been played yet"))
		}
	}

	s.log.Info("engrave requested", "scoreID", id)

	if s.engraver == nil {
		return s.toolError(req.ID, "No engraving backend is configured")
	}
	eng, err := s.engraver.Engrave(score)
	if err != nil {
		s.log.Error("engraving failed", "scoreID", id, "error", err)
		return s.toolError(req.ID, fmt.Sprintf("Engraving failed: %v", err))
	}

	result := ToolCallResult{
		Content: []ContentItem{
			{
				Type: "text",
				Text: fmt.Sprintf("%s (score_id: %s)", eng.Summary, id),
			},
			{
				Type: "resource",
				Resource: &ResourceContents{
					URI:      s.imageBase + "/images/" + eng.FileName,
					MimeType: eng.MimeType,
				},
			},
		},
	}
	return s.result(req.ID, result)
}

// toolText wraps plain text in a successful tool result.
func (s *Server) toolText(id *rpc.Value, text string) *rpc.Response {
	return s.result(id, ToolCallResult{
		Content: []ContentItem{{Type: "text", Text: text}},
	})
}

// toolError wraps text in a tool-level failure: the call itself
// succeeded at the protocol layer, but the tool could not do its job.
func (s *Server) toolError(id *rpc.Value, text string) *rpc.Response {
	return s.result(id, ToolCallResult{
		Content: []ContentItem{{Type: "text", Text: text}},
		IsError: true,
	})
}

// result builds a success response from any JSON-encodable payload.
func (s *Server) result(id *rpc.Value, payload any) *rpc.Response {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("failed to encode result payload", "error", err)
		return rpc.NewErrorResponse(id, rpc.NewError(rpc.CodeInternalError, "Internal error"))
	}
	var v rpc.Value
	if err := v.UnmarshalJSON(data); err != nil {
		s.log.Error("failed to convert result payload", "error", err)
		return rpc.NewErrorResponse(id, rpc.NewError(rpc.CodeInternalError, "Internal error"))
	}
	return rpc.NewResultResponse(id, v)
}

// decodeToolCallParams converts the request's params value into typed
// tool-call parameters, keeping argument payloads raw.
func decodeToolCallParams(params *rpc.Value) (ToolCallParams, *rpc.Error) {
	var out ToolCallParams
	if params == nil {
		return out, rpc.NewError(rpc.CodeInvalidParams, "Invalid params")
	}
	data, err := json.Marshal(params)
	if err != nil {
		return out, rpc.NewError(rpc.CodeInternalError, "Internal error")
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, rpc.NewError(rpc.CodeInvalidParams, "Invalid params")
	}
	if out.Name == "" {
		return out, rpc.NewError(rpc.CodeInvalidParams, "Missing tool name")
	}
	return out, nil
}

// decodeInitializeParams converts the request's params into the typed
// initialize parameters. The client's introduction is advisory, used
// for logs, so callers treat failure as an absent introduction rather
// than an error.
func decodeInitializeParams(params *rpc.Value) (InitializeParams, error) {
	var out InitializeParams
	if params == nil {
		return out, errors.New("no params")
	}
	data, err := json.Marshal(params)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}

// stringArgument extracts an optional string argument. Present but
// non-string values are an error; absence is not.
func stringArgument(args map[string]json.RawMessage, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("Argument %q must be a string", key)
	}
	return s, nil
}

// encodeResponse serializes a response the dispatcher built itself; by
// construction it satisfies the result/error invariant, so failure here
// is a programming error worth a loud fallback.
func encodeResponse(resp *rpc.Response) []byte {
	data, err := rpc.EncodeResponse(resp)
	if err != nil {
		fallback := rpc.NewErrorResponse(resp.ID, rpc.NewError(rpc.CodeInternalError, "Internal error"))
		data, _ = rpc.EncodeResponse(fallback)
	}
	return data
}

// asRPCError normalizes decode failures to wire errors.
func asRPCError(err error) *rpc.Error {
	var rpcErr *rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return rpc.NewError(rpc.CodeParseError, err.Error())
}
