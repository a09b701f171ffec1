package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/sweep"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// progressInterval throttles progress messages; the final one always goes out
const progressInterval = 100 * time.Millisecond

// Stream message types
const (
	StreamProgress = "progress"
	StreamResult   = "result"
	StreamError    = "error"
)

// StreamMessage is one server-to-client websocket message
type StreamMessage struct {
	Type     string          `json:"type"`
	Progress *sweep.Progress `json:"progress,omitempty"`
	Result   *BatchResponse  `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Status   int             `json:"status,omitempty"`
}

// HandleBatchStream runs a sweep over a websocket. The client sends one
// BatchRequest; the server answers with progress messages and then a single
// result or error message before closing.
func (h *Handler) HandleBatchStream(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to accept websocket")
		return
	}
	defer c.Close(websocket.StatusInternalError, "unexpected close")
	c.SetReadLimit(maxBodyBytes)

	ctx := r.Context()
	req := newBatchRequest()
	if err := wsjson.Read(ctx, c, &req); err != nil {
		h.log.Debug().Err(err).Msg("Failed to read stream request")
		c.Close(websocket.StatusUnsupportedData, "invalid batch request")
		return
	}

	// Cancelled when the client goes away
	ctx = c.CloseRead(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var last time.Time
	progress := func(p sweep.Progress) {
		if time.Since(last) < progressInterval && p.Done != p.Total {
			return
		}
		last = time.Now()
		if err := wsjson.Write(ctx, c, StreamMessage{Type: StreamProgress, Progress: &p}); err != nil {
			h.log.Debug().Err(err).Msg("Stream client gone, cancelling sweep")
			cancel()
		}
	}

	resp, err := h.runBatch(ctx, req, progress)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		h.writeStreamError(ctx, c, err)
		return
	}

	if err := wsjson.Write(ctx, c, StreamMessage{Type: StreamResult, Result: resp}); err != nil {
		h.log.Debug().Err(err).Msg("Failed to write stream result")
		return
	}
	c.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) writeStreamError(ctx context.Context, c *websocket.Conn, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Stream batch failed")
	}
	if werr := wsjson.Write(ctx, c, StreamMessage{Type: StreamError, Error: err.Error(), Status: status}); werr != nil {
		h.log.Debug().Err(werr).Msg("Failed to write stream error")
		return
	}
	c.Close(websocket.StatusNormalClosure, "")
}
