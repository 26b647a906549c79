package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/voicediary/internal/events"
)

const sseHeartbeat = 30 * time.Second

// EventsController streams store change events to browsers.
type EventsController struct {
	bus       *events.Bus
	heartbeat time.Duration
}

func NewEventsController(bus *events.Bus) *EventsController {
	return &EventsController{bus: bus, heartbeat: sseHeartbeat}
}

// Stream handles GET /api/events as a Server-Sent Events stream. Each change
// event is sent with its kind as the event name. Events carry no payload, so
// a subscriber that falls behind only needs the latest one.
func (ec *EventsController) Stream(c *gin.Context) {
	ch := make(chan events.Event, 16)
	unsubscribe := ec.bus.Subscribe(func(e events.Event) {
		select {
		case ch <- e:
		default:
		}
	})
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(ec.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-ch:
			c.SSEvent(string(e.Kind), e)
			c.Writer.Flush()
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"time": time.Now().UTC().Format(time.RFC3339)})
			c.Writer.Flush()
		}
	}
}
