package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/voicediary/internal/audit"
	"github.com/mrlokans/voicediary/internal/database"
)

// EntriesController serves diary entry CRUD and calendar lookups.
type EntriesController struct {
	store EntryStore
	audit *audit.Service
}

func NewEntriesController(store EntryStore, auditService *audit.Service) *EntriesController {
	return &EntriesController{store: store, audit: auditService}
}

type entryRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// List handles GET /api/entries?q=
func (ec *EntriesController) List(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query != "" {
		c.JSON(http.StatusOK, gin.H{"entries": ec.store.Search(c.Request.Context(), query)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": ec.store.List(c.Request.Context())})
}

// Get handles GET /api/entries/:id
func (ec *EntriesController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	entry, err := ec.store.Get(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondNotFound(c, "entry")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get entry")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Create handles POST /api/entries
func (ec *EntriesController) Create(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	id, err := ec.store.Create(c.Request.Context(), req.Title, req.Content)
	if errors.Is(err, database.ErrInvalidEntry) {
		respondBadRequest(c, database.ErrInvalidEntry.Error())
		return
	}
	if err != nil {
		ec.logEntry("entry_create", 0, req.Title, err)
		respondInternalError(c, err, "create entry")
		return
	}
	ec.logEntry("entry_create", id, req.Title, nil)

	entry, err := ec.store.Get(c.Request.Context(), id)
	if err != nil {
		respondCreated(c, gin.H{"id": id})
		return
	}
	respondCreated(c, entry)
}

// Update handles PUT /api/entries/:id
func (ec *EntriesController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	err := ec.store.Update(c.Request.Context(), id, req.Title, req.Content)
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondNotFound(c, "entry")
		return
	case errors.Is(err, database.ErrInvalidEntry):
		respondBadRequest(c, database.ErrInvalidEntry.Error())
		return
	case err != nil:
		ec.logEntry("entry_update", id, req.Title, err)
		respondInternalError(c, err, "update entry")
		return
	}
	ec.logEntry("entry_update", id, req.Title, nil)

	entry, err := ec.store.Get(c.Request.Context(), id)
	if err != nil {
		respondSuccess(c, "entry updated")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Delete handles DELETE /api/entries/:id. Deleting a missing entry succeeds.
func (ec *EntriesController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ec.store.Delete(c.Request.Context(), id); err != nil {
		ec.logEntry("entry_delete", id, "", err)
		respondInternalError(c, err, "delete entry")
		return
	}
	ec.logEntry("entry_delete", id, "", nil)
	respondSuccess(c, "entry deleted")
}

// Calendar handles GET /api/entries/calendar
func (ec *EntriesController) Calendar(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"dates": ec.store.EntryDates(c.Request.Context())})
}

// ByDate handles GET /api/entries/date/:date
func (ec *EntriesController) ByDate(c *gin.Context) {
	day := c.Param("date")
	if _, err := time.Parse(time.DateOnly, day); err != nil {
		respondBadRequest(c, "date must be YYYY-MM-DD")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":    day,
		"entries": ec.store.ListByDate(c.Request.Context(), day),
	})
}

func (ec *EntriesController) logEntry(action string, id int64, title string, err error) {
	if ec.audit == nil {
		return
	}
	description := strings.TrimPrefix(action, "entry_") + " entry"
	if title != "" {
		description += ": " + title
	}
	ec.audit.LogEntry(action, id, description, err)
}
