package httpapi

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/distilld/internal/extraction"
	"github.com/fyrsmithlabs/distilld/internal/samples"
	"github.com/fyrsmithlabs/distilld/internal/transcript"
)

// maxUploadSize bounds uploaded transcript files.
const maxUploadSize = 10 << 20 // 10MB

// IngestRequest is the body for POST /api/ingest.
type IngestRequest struct {
	Text string `json:"text"`
}

// IngestResponse is returned by both ingest endpoints.
type IngestResponse struct {
	SessionID    string   `json:"session_id"`
	MessageCount int      `json:"message_count"`
	Authors      []string `json:"authors"`
}

// ChatRequest is the body for POST /api/sessions/:id/chat.
type ChatRequest struct {
	Question string `json:"question"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleIngestPaste parses pasted chat text into a new session.
func (s *Server) handleIngestPaste(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	msgs := transcript.ParsePaste(req.Text, transcript.SourcePaste)
	if len(msgs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no messages could be parsed from the text")
	}

	return s.createSession(c, msgs)
}

// handleIngestUpload parses an uploaded .txt, .json or .csv file into a
// new session.
func (s *Server) handleIngestUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	switch ext {
	case ".txt", ".json", ".csv":
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported format, use .txt, .json, or .csv")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read upload")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read upload")
	}
	if len(data) > maxUploadSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	msgs, err := transcript.ParseFile(fileHeader.Filename, data, transcript.SourceUpload)
	if err != nil {
		s.logger.Warn("upload parse failed", zap.String("filename", fileHeader.Filename), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "no messages could be parsed from the file")
	}
	if len(msgs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no messages could be parsed from the file")
	}

	return s.createSession(c, msgs)
}

func (s *Server) createSession(c echo.Context, msgs []transcript.Message) error {
	sessionID := uuid.NewString()
	s.registry.Put(sessionID, msgs)

	s.logger.Info("session ingested",
		zap.String("session_id", sessionID),
		zap.Int("messages", len(msgs)),
	)

	return c.JSON(http.StatusOK, IngestResponse{
		SessionID:    sessionID,
		MessageCount: len(msgs),
		Authors:      transcript.Authors(msgs),
	})
}

func (s *Server) handleListSamples(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"samples": samples.Names()})
}

func (s *Server) handleGetSample(c echo.Context) error {
	name := c.Param("name")
	content, ok := samples.Load(name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "sample not found")
	}
	return c.JSON(http.StatusOK, map[string]any{"name": name, "text": content})
}

func (s *Server) handleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"sessions": s.registry.List()})
}

func (s *Server) handleGetSession(c echo.Context) error {
	sessionID := c.Param("id")
	msgs, ok := s.registry.Get(sessionID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	out := map[string]any{
		"session_id":    sessionID,
		"message_count": len(msgs),
		"messages":      msgs,
	}
	if processed, ok := s.registry.GetProcessed(sessionID); ok {
		out["processed"] = processed
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetMessages(c echo.Context) error {
	sessionID := c.Param("id")
	msgs, ok := s.registry.Get(sessionID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session_id":    sessionID,
		"message_count": len(msgs),
		"messages":      msgs,
	})
}

// handleProcess runs the distillation pipeline over a session and stores
// the result.
func (s *Server) handleProcess(c echo.Context) error {
	sessionID := c.Param("id")
	msgs, ok := s.registry.Get(sessionID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	result, err := s.pipeline.Process(c.Request().Context(), sessionID, msgs)
	if err != nil {
		s.logger.Error("processing failed", zap.String("session_id", sessionID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "processing failed")
	}
	s.registry.PutProcessed(sessionID, result)
	return c.JSON(http.StatusOK, result)
}

// DecisionWithTopic is a decision annotated with its source topic.
type DecisionWithTopic struct {
	extraction.Decision
	Topic string `json:"topic"`
}

func (s *Server) handleGetDecisions(c echo.Context) error {
	sessionID := c.Param("id")
	processed, ok := s.registry.GetProcessed(sessionID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found or not yet processed")
	}

	decisions := []DecisionWithTopic{}
	for _, ext := range processed.Extractions {
		for _, d := range ext.Extraction.Decisions {
			decisions = append(decisions, DecisionWithTopic{Decision: d, Topic: ext.TopicName})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session_id": sessionID,
		"decisions":  decisions,
	})
}

// ActionItemWithTopic is an action item annotated with its source topic.
type ActionItemWithTopic struct {
	extraction.ActionItem
	Topic string `json:"topic"`
}

func (s *Server) handleGetActionItems(c echo.Context) error {
	sessionID := c.Param("id")
	processed, ok := s.registry.GetProcessed(sessionID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found or not yet processed")
	}

	assignee := c.QueryParam("assignee")
	items := []ActionItemWithTopic{}
	for _, ext := range processed.Extractions {
		for _, a := range ext.Extraction.ActionItems {
			if assignee != "" && !strings.EqualFold(a.Assignee, assignee) {
				continue
			}
			items = append(items, ActionItemWithTopic{ActionItem: a, Topic: ext.TopicName})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session_id":   sessionID,
		"action_items": items,
	})
}

// handleChat answers a question about a session. Problems inside the
// answer path come back as answer text, never as an HTTP error.
func (s *Server) handleChat(c echo.Context) error {
	sessionID := c.Param("id")
	if _, ok := s.registry.Get(sessionID); !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	answer := s.answers.Ask(c.Request().Context(), sessionID, req.Question)
	return c.JSON(http.StatusOK, map[string]any{"answer": answer})
}
