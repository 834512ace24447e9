// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/physiograph/internal/audit"
	"github.com/AleutianAI/physiograph/internal/engine"
	"github.com/AleutianAI/physiograph/internal/graph"
	"github.com/AleutianAI/physiograph/internal/reload"
	"github.com/AleutianAI/physiograph/internal/snapshot"
	"github.com/AleutianAI/physiograph/pkg/logging"
)

// Server wires the engine to gin. Every handler reads the current graph
// snapshot from handle exactly once per request (§5 "Reload"); nothing
// here holds a snapshot reference across requests.
type Server struct {
	handle   *snapshot.Handle
	watcher  *reload.Watcher
	auditLog *audit.Log
	logger   *logging.Logger
	metrics  *metrics
	upgrader websocket.Upgrader
	engine   *gin.Engine
}

// NewServer builds a ready-to-run gin.Engine around handle. watcher may
// be nil when hot reload is disabled. auditLog may be nil; when present,
// GET /v1/audit surfaces its recent reload history.
func NewServer(handle *snapshot.Handle, watcher *reload.Watcher, auditLog *audit.Log, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}

	s := &Server{
		handle:   handle,
		watcher:  watcher,
		auditLog: auditLog,
		logger:   logger,
		metrics:  newMetrics(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	router := gin.New()
	router.Use(recovery(logger), requestLogging(logger), otelgin.Middleware("physiograph"))

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promHandler(s.metrics)))

	v1 := router.Group("/v1")
	{
		v1.POST("/simulate", s.handleSimulate)
		v1.POST("/compare", s.handleCompare)
		v1.GET("/graph", s.handleGraph)
		v1.POST("/reload", s.handleReload)
		v1.GET("/audit", s.handleAudit)
		v1.GET("/simulate/stream", s.handleSimulateStream)
	}

	s.engine = router
	return s
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSimulate(c *gin.Context) {
	var body simulateRequestDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		s.metrics.simulations.WithLabelValues("simulate", "bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := apiValidate.Struct(body); err != nil {
		s.metrics.simulations.WithLabelValues("simulate", "bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}

	req, err := body.toEngineRequest().Validate()
	if err != nil {
		s.metrics.simulations.WithLabelValues("simulate", "bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap := s.handle.Load()
	resp, err := engine.Simulate(snap, req, s.requestLogger(c))
	if err != nil {
		s.metrics.simulations.WithLabelValues("simulate", "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "simulation failed"})
		return
	}

	s.metrics.simulations.WithLabelValues("simulate", "ok").Inc()
	s.metrics.simulationNodes.Observe(float64(len(resp.AffectedNodes)))
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCompare(c *gin.Context) {
	var body compareRequestDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		s.metrics.simulations.WithLabelValues("compare", "bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := apiValidate.Struct(body); err != nil {
		s.metrics.simulations.WithLabelValues("compare", "bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}

	baseline, err := body.Baseline.toEngineRequest().Validate()
	if err != nil {
		s.metrics.simulations.WithLabelValues("compare", "bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	intervention, err := body.Intervention.toEngineRequest().Validate()
	if err != nil {
		s.metrics.simulations.WithLabelValues("compare", "bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap := s.handle.Load()
	resp, err := engine.Compare(snap, engine.ComparisonRequest{Baseline: baseline, Intervention: intervention}, s.requestLogger(c))
	if err != nil {
		s.metrics.simulations.WithLabelValues("compare", "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "comparison failed"})
		return
	}

	s.metrics.simulations.WithLabelValues("compare", "ok").Inc()
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGraph(c *gin.Context) {
	snap := s.handle.Load()
	maxTick := graph.TickOf(graph.TimescaleDays)
	analytics := graph.Analyze(snap.Compiled, maxTick)
	c.JSON(http.StatusOK, gin.H{
		"nodes":             len(snap.Nodes),
		"edges":             len(snap.Edges),
		"compiled_edges":    len(snap.CompiledEdges),
		"syndromes":         len(snap.Syndromes),
		"sccs":              analytics.SCCs,
		"feedback_clusters": analytics.FeedbackClusters,
		"review_candidates": analytics.ReviewCandidates,
	})
}

func (s *Server) handleReload(c *gin.Context) {
	if s.watcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "hot reload is disabled"})
		return
	}
	if err := s.watcher.ReloadNow(); err != nil {
		s.metrics.reloads.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.metrics.reloads.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}

func (s *Server) handleAudit(c *gin.Context) {
	if s.auditLog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reload audit log is disabled"})
		return
	}
	entries, err := s.auditLog.Recent(50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// handleSimulateStream runs a simulation and streams its tick-ordered
// timelines over a websocket, one frame per resolved tick across every
// affected node, so a UI can animate propagation as it would have
// unfolded rather than receiving the whole result at once.
func (s *Server) handleSimulateStream(c *gin.Context) {
	var body simulateRequestDTO
	if err := c.ShouldBindQuery(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	req, err := body.toEngineRequest().Validate()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap := s.handle.Load()
	resp, err := engine.Simulate(snap, req, s.requestLogger(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "simulation failed"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for tick := 0; tick <= resp.MaxTicks; tick++ {
		frame := framesAtTick(resp, tick)
		if len(frame) == 0 {
			continue
		}
		if err := conn.WriteJSON(gin.H{"tick": tick, "affected_nodes": frame}); err != nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func framesAtTick(resp engine.Response, tick int) []engine.AffectedNode {
	var frame []engine.AffectedNode
	for _, timeline := range resp.Timelines {
		for _, n := range timeline {
			if n.Tick == tick {
				frame = append(frame, n)
			}
		}
	}
	return frame
}

func (s *Server) requestLogger(c *gin.Context) *logging.Logger {
	requestID, _ := c.Get("request_id")
	return s.logger.With("request_id", requestID)
}
