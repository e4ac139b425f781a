package devserver

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vnfood/foodctl/pkg/apiresponses"
	"github.com/vnfood/foodctl/pkg/audit"
	"github.com/vnfood/foodctl/pkg/ratelimit"
	"github.com/vnfood/foodctl/pkg/system"
)

type saveHistoryRequest struct {
	FoodName   string         `json:"food_name"`
	Confidence float64        `json:"confidence"`
	Extra      map[string]any `json:"extra"`
}

type historyController struct {
	s *Server
}

func (h *historyController) BasePath() string { return "history" }

func (h *historyController) Handlers() []gin.HandlerFunc {
	// auth runs first so the limiter can key by user
	return append([]gin.HandlerFunc{h.s.requireAuth()}, h.s.limit(h.s.apiLimit, ratelimit.ByContextValue(usernameKey))...)
}

func (h *historyController) Register(rg *gin.RouterGroup) error {
	rg.GET("", h.handleList)
	rg.POST("", h.handleSave)
	rg.DELETE("", h.handleClear)
	rg.DELETE(":id", h.handleDelete)
	return nil
}

func (h *historyController) handleList(c *gin.Context) {
	limit := DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			apiresponses.RespondBadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	username := c.GetString(usernameKey)
	apiresponses.RespondOK(c, gin.H{
		"history":  h.s.history.list(username, limit),
		"username": username,
	})
}

func (h *historyController) handleSave(c *gin.Context) {
	var req saveHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.FoodName == "" {
		apiresponses.RespondBadRequest(c, "food_name is required")
		return
	}
	username := c.GetString(usernameKey)
	item := h.s.history.add(username, historyItem{
		FoodName:   req.FoodName,
		Confidence: req.Confidence,
		Extra:      req.Extra,
	})
	system.GetReqLogger(c, h.s.log).Debugw("History item saved", "id", item.ID, "food", item.FoodName)
	h.s.audit.HistoryChanged(c.Request.Context(), audit.EventHistorySaved, actor(c, username), requestID(c), item.ID,
		map[string]interface{}{"food_name": item.FoodName})
	apiresponses.RespondCreated(c, gin.H{"item": item})
}

func (h *historyController) handleDelete(c *gin.Context) {
	username := c.GetString(usernameKey)
	id := c.Param("id")
	if !h.s.history.remove(username, id) {
		apiresponses.RespondNotFound(c, "history item", id)
		return
	}
	h.s.audit.HistoryChanged(c.Request.Context(), audit.EventHistoryDeleted, actor(c, username), requestID(c), id, nil)
	apiresponses.RespondOK(c, gin.H{"message": "History item deleted", "deleted_by": username})
}

func (h *historyController) handleClear(c *gin.Context) {
	username := c.GetString(usernameKey)
	h.s.history.clear(username)
	h.s.audit.HistoryChanged(c.Request.Context(), audit.EventHistoryCleared, actor(c, username), requestID(c), "", nil)
	apiresponses.RespondOK(c, gin.H{"message": "History deleted", "deleted_by": username})
}
