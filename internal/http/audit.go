package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/voicediary/internal/audit"
	dbaudit "github.com/mrlokans/voicediary/internal/database/audit"
	"github.com/mrlokans/voicediary/internal/entities"
)

type AuditController struct {
	auditService *audit.Service
}

func NewAuditController(auditService *audit.Service) *AuditController {
	return &AuditController{
		auditService: auditService,
	}
}

// GetAuditEvents returns paginated audit events as JSON
// GET /api/audit?page=&limit=&type=&entry_id=&since=
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	page, limit := parsePage(c, 25, 100)
	offset := (page - 1) * limit

	filter := dbaudit.Filter{EventType: entities.AuditEventType(c.Query("type"))}
	if raw := c.Query("entry_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondBadRequest(c, "invalid entry_id")
			return
		}
		filter.EntryID = &id
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondBadRequest(c, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}

	events, total, err := ac.auditService.GetEvents(c.Request.Context(), filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load audit events",
		})
		return
	}

	totalPages := (int(total) + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	c.JSON(http.StatusOK, gin.H{
		"events":       events,
		"page":         page,
		"limit":        limit,
		"total_pages":  totalPages,
		"total_events": total,
		"event_types":  eventTypes,
	})
}

var eventTypes = []entities.AuditEventType{
	entities.AuditEventEntry,
	entities.AuditEventTranscribe,
	entities.AuditEventBackup,
	entities.AuditEventRestore,
	entities.AuditEventAuth,
	entities.AuditEventSettings,
}
