package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mwillard/beacon/internal/alert"
	"github.com/mwillard/beacon/internal/contacts"
	"github.com/mwillard/beacon/internal/events"
	"github.com/mwillard/beacon/internal/models"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/api/health", handleHealth(opts.Orchestrator))

	em := router.Group("/api/emergency")
	em.POST("/trigger", handleTrigger(opts.Orchestrator))
	em.POST("/confirm", handleConfirm(opts.Orchestrator))
	em.POST("/cancel", handleCancel(opts.Orchestrator))
	em.GET("/status", handleStatus(opts.Orchestrator))
	em.GET("/history", handleHistory(opts.Orchestrator))
	em.GET("/history/:id", handleAlertDetail(opts.Orchestrator))

	ct := router.Group("/api/settings/contacts")
	ct.GET("", handleContactList(opts.Directory))
	ct.POST("", handleContactAdd(opts.Directory))
	ct.PUT("/:id", handleContactUpdate(opts.Directory))
	ct.POST("/:id/enable", handleContactEnable(opts.Directory, true))
	ct.POST("/:id/disable", handleContactEnable(opts.Directory, false))
	ct.DELETE("/:id", handleContactDelete(opts.Directory))

	router.GET("/api/events", handleSSE(opts.Audit))
	router.GET("/api/events/recent", handleEventsRecent(opts.Audit))
}

func handleEventsRecent(audit *events.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if audit == nil {
			c.JSON(http.StatusOK, gin.H{"events": []models.Event{}, "count": 0})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		evs, err := audit.Recent(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": evs, "count": len(evs)})
	}
}

func handleHealth(orch *alert.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := orch.GetStatus()
		c.JSON(http.StatusOK, gin.H{
			"status":           "ok",
			"machine":          st.Machine.State,
			"contacts_enabled": st.ContactsEnabled,
			"timestamp":        time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// triggerRequest is the device front-end trigger payload.
type triggerRequest struct {
	Type       string  `json:"type" binding:"required"`
	Text       string  `json:"text"`
	Gesture    string  `json:"gesture"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func handleTrigger(orch *alert.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req triggerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var accepted bool
		var keyword string
		switch req.Type {
		case "voice":
			keyword, accepted = orch.TriggerVoice(req.Text, req.Confidence)
		case "gesture":
			accepted = orch.TriggerGesture(req.Gesture, req.Confidence)
		case "manual":
			accepted = orch.TriggerManual(req.Reason)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "type must be voice, gesture or manual"})
			return
		}

		status := http.StatusOK
		if !accepted {
			status = http.StatusConflict
		}
		resp := gin.H{"accepted": accepted, "machine": orch.GetStatus().Machine}
		if keyword != "" {
			resp["keyword"] = keyword
		}
		c.JSON(status, resp)
	}
}

func handleConfirm(orch *alert.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		orch.Confirm()
		c.JSON(http.StatusOK, gin.H{"machine": orch.GetStatus().Machine})
	}
}

func handleCancel(orch *alert.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		orch.Cancel()
		c.JSON(http.StatusOK, gin.H{"machine": orch.GetStatus().Machine})
	}
}

func handleStatus(orch *alert.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, orch.GetStatus())
	}
}

func handleHistory(orch *alert.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		alerts, err := orch.GetHistory(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
	}
}

func handleAlertDetail(orch *alert.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := orch.GetAlert(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func handleContactList(dir *contacts.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		enabledOnly := c.Query("enabled") == "true"
		list, err := dir.List(enabledOnly)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"contacts": list, "count": len(list)})
	}
}

// contactRequest is the create/update payload for a contact.
type contactRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
	Priority     int    `json:"priority"`
	Enabled      *bool  `json:"enabled"`
}

func handleContactAdd(dir *contacts.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req contactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		contact := models.Contact{
			Name:         req.Name,
			Phone:        req.Phone,
			Relationship: req.Relationship,
			Priority:     req.Priority,
		}
		if req.Enabled != nil {
			contact.Enabled = *req.Enabled
		}
		if err := dir.Add(&contact); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, contact)
	}
}

func handleContactUpdate(dir *contacts.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact id"})
			return
		}
		var req contactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		updates := map[string]interface{}{}
		if req.Name != "" {
			updates["name"] = req.Name
		}
		if req.Phone != "" {
			updates["phone"] = req.Phone
		}
		if req.Relationship != "" {
			updates["relationship"] = req.Relationship
		}
		if req.Priority > 0 {
			updates["priority"] = req.Priority
		}
		if req.Enabled != nil {
			updates["enabled"] = *req.Enabled
		}
		if len(updates) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
			return
		}

		if err := dir.Update(uint(id), updates); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		contact, err := dir.Get(uint(id))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, contact)
	}
}

func handleContactEnable(dir *contacts.Directory, enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact id"})
			return
		}
		if err := dir.SetEnabled(uint(id), enabled); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "enabled": enabled})
	}
}

func handleContactDelete(dir *contacts.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact id"})
			return
		}
		if err := dir.Delete(uint(id)); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
	}
}
