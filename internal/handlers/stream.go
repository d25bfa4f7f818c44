package handlers

import (
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
	"github.com/pandeptwidyaop/deploy-manager/internal/services"
)

// StreamHandler relays job output to HTTP clients.
type StreamHandler struct {
	executorService *services.ExecutorService
}

// NewStreamHandler creates a new StreamHandler instance.
func NewStreamHandler(executorService *services.ExecutorService) *StreamHandler {
	return &StreamHandler{
		executorService: executorService,
	}
}

// Stream sends the output of a job as server-sent events: one "output" event
// per line and a final "complete" event. A finished job is replayed from its
// stored output.
// GET /api/jobs/:id/stream
func (h *StreamHandler) Stream(c *gin.Context) {
	id := c.Param("id")

	// Subscribe before reading the job so no line between the read and the
	// subscription is lost.
	ch := h.executorService.Subscribe(id)
	defer h.executorService.Unsubscribe(id, ch)

	job, err := h.executorService.GetJob(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	if job.Status.Finished() {
		for _, line := range strings.Split(job.Output, "\n") {
			if line != "" {
				writeEvent(c.Writer, "output", line)
			}
		}
		writeComplete(c.Writer, job)
		c.Writer.Flush()
		return
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-ch:
			if !ok {
				return false
			}

			if line, found := strings.CutPrefix(msg, "output:"); found {
				writeEvent(w, "output", line)
				return true
			}
			if status, found := strings.CutPrefix(msg, "complete:"); found {
				final, err := h.executorService.GetJob(id)
				if err != nil {
					final = &models.Job{Status: models.JobStatus(status)}
				}
				writeComplete(w, final)
				return false
			}
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func writeEvent(w io.Writer, event, data string) {
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func writeComplete(w io.Writer, job *models.Job) {
	exitCode := -1
	if job.ExitCode != nil {
		exitCode = *job.ExitCode
	}
	writeEvent(w, "complete", fmt.Sprintf(`{"status": %q, "exit_code": %d}`, job.Status, exitCode))
}
