// Package api implements the Decision API: the single HTTP entrypoint
// (POST /orchestrator/decide) that fronts the orchestration pipeline, plus
// /healthz and /metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nictes1/decision-orchestrator/internal/orchestrator/activation"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/canary"
	"github.com/nictes1/decision-orchestrator/internal/orchestrator/domain"
)

// Orchestrator is the capability both the SLM and Legacy orchestrators
// expose; the Server only depends on this, never on pipeline internals.
type Orchestrator interface {
	Decide(ctx context.Context, snap domain.Snapshot) domain.DecisionResponse
}

// SettingsSource supplies the canary router's live-reloadable settings
// (spec §6/§4.12: kill-switch + percent, re-read on every request).
type SettingsSource func() canary.Settings

// Server wires the gin router for the Decision API.
type Server struct {
	slm        Orchestrator
	legacy     Orchestrator
	settings   SettingsSource
	activation *activation.Gate
	engine     *gin.Engine
}

// New builds a Server. settings and gate may be nil; nil settings defaults
// to an always-legacy kill-switch, nil gate defaults to "always run".
func New(slm, legacy Orchestrator, settings SettingsSource, gate *activation.Gate) *Server {
	if settings == nil {
		settings = func() canary.Settings { return canary.Settings{} }
	}
	if gate == nil {
		gate = activation.New(activation.NewMemoryStore())
	}

	s := &Server{slm: slm, legacy: legacy, settings: settings, activation: gate}
	s.engine = s.newEngine()
	return s
}

// Handler returns the http.Handler to pass to an http.Server (spec §6's
// transport is an implementation choice; gin.Engine already satisfies
// http.Handler).
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())

	r.GET("/healthz", s.handleHealthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/orchestrator/decide", requireHeaders(), s.handleDecide)

	return r
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleDecide implements spec §6's HTTP contract: 200 on any valid
// pipeline outcome (even degraded), 400 on malformed body or missing
// workspace header, 5xx only on a fatal unhandled error (gin.Recovery
// already converts a stage panic into a 500 rather than crashing the
// process).
func (s *Server) handleDecide(c *gin.Context) {
	workspaceID := c.GetHeader("X-Workspace-Id")
	conversationID := c.GetHeader("X-Conversation-Id")
	channel := c.GetHeader("X-Channel")

	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap := toSnapshot(workspaceID, conversationID, req)
	if snap.Context.Channel == "" {
		snap.Context.Channel = channel
	}

	decision := s.activation.Evaluate(conversationID, req.Context.IsGroup, req.Context.AddressedToBot, req.UserMessage.Text)
	if !decision.ShouldRun {
		c.JSON(http.StatusOK, domain.NewEmptyDecisionResponse())
		return
	}

	route := canary.Route(conversationID, s.settings())
	orchestrator := s.legacy
	if route == domain.RouteSLM {
		orchestrator = s.slm
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := orchestrator.Decide(ctx, snap)
	if decision.Muted {
		resp.Assistant = domain.Assistant{Text: "", SuggestedReplies: []string{}}
	}

	c.JSON(http.StatusOK, resp)
}
