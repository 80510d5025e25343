package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storyboard-server/internal/ingest"
	"storyboard-server/internal/middleware"
	"storyboard-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// multipartOverhead leaves room for form boundaries and headers around the file.
	multipartOverhead = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer and the token check.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type ingestTextRequest struct {
	Text string `json:"text"`
}

type ingestResponse struct {
	Script    string `json:"script"`
	WordCount int    `json:"word_count"`
	Filename  string `json:"filename,omitempty"`
}

// progressMessage is one progress event as sent over the websocket.
type progressMessage struct {
	Stage     string  `json:"stage"`
	ElapsedMS int64   `json:"elapsed_ms"`
	Percent   float64 `json:"percent"`
	Done      bool    `json:"done,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func (h *StoryboardHandler) ingestText(c *gin.Context) {
	var req ingestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return
	}
	script := h.ingester.FromText(req.Text)
	c.JSON(http.StatusOK, ingestResponse{Script: script, WordCount: len(strings.Fields(script))})
}

func (h *StoryboardHandler) ingestFile(c *gin.Context) {
	user := middleware.UserFrom(c)
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			handleServiceError(c, fmt.Errorf("%w: limit is %d bytes", models.ErrFileTooLarge, h.maxUploadBytes))
			return
		}
		badRequest(c, "Missing multipart file field 'file'")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "Cannot read uploaded file: "+err.Error())
		return
	}
	defer file.Close()

	key := progressKey(user, c.PostForm("upload_id"))
	log := h.logger.With(zap.String("userID", user.ID), zap.String("filename", fileHeader.Filename))

	script, err := h.ingester.FromFile(c.Request.Context(), ingest.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Body:        file,
	}, h.hub.Reporter(key))
	h.hub.Finish(key, err)
	if err != nil {
		log.Warn("File ingestion failed", zap.Error(err))
		handleServiceError(c, err)
		return
	}
	log.Info("File ingested", zap.Int("chars", len(script)))
	c.JSON(http.StatusOK, ingestResponse{
		Script:    script,
		WordCount: len(strings.Fields(script)),
		Filename:  fileHeader.Filename,
	})
}

// ingestProgress streams OCR progress for one upload until the terminal event or until the client
// goes away.
func (h *StoryboardHandler) ingestProgress(c *gin.Context) {
	user := middleware.UserFrom(c)
	uploadID := c.Param("uploadID")
	key := progressKey(user, uploadID)
	if key == "" {
		badRequest(c, "Upload id is required")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already replied
		h.logger.Warn("Failed to upgrade progress connection", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := h.hub.Subscribe(key)
	defer cancel()
	log := h.logger.With(zap.String("userID", user.ID), zap.String("uploadID", uploadID))
	log.Debug("Progress subscriber connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			log.Debug("Progress subscriber left")
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case p, ok := <-events:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(toProgressMessage(p)); err != nil {
				log.Warn("Failed to write progress event", zap.Error(err))
				return
			}
			if p.Done {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, p.Stage))
				return
			}
		}
	}
}

// progressKey scopes upload ids to their user so one user cannot watch another's upload.
func progressKey(user models.CurrentUser, uploadID string) string {
	uploadID = strings.TrimSpace(uploadID)
	if uploadID == "" || user.IsZero() {
		return ""
	}
	return user.ID + "/" + uploadID
}

func toProgressMessage(p ingest.Progress) progressMessage {
	return progressMessage{
		Stage:     p.Stage,
		ElapsedMS: p.Elapsed.Milliseconds(),
		Percent:   p.Percent,
		Done:      p.Done,
		Error:     p.Error,
	}
}
