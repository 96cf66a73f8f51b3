package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"departure-board-backend/internal/dispatch"
	"departure-board-backend/internal/model"
	"departure-board-backend/internal/poller"
)

const (
	defaultCycleLimit = 20
	maxCycleLimit     = 200
)

// routeResponse is a route with its headline states.
type routeResponse struct {
	model.Route
	DeviceStatus  string `json:"deviceStatus"`
	StationIssues bool   `json:"stationIssues"`
	TimeGenerated string `json:"timeGenerated"`
}

// GetRoutes handles the GET /api/routes request.
func (h *Handler) GetRoutes(c *gin.Context) {
	db := h.store.DB()

	var routes []model.Route
	if err := db.Order("id").Find(&routes).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve routes"})
		return
	}

	var states []model.RouteState
	if err := db.Where("key IN ?", []string{poller.KeyDeviceStatus, poller.KeyStationIssues, poller.KeyTimeGenerated}).
		Find(&states).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve route states"})
		return
	}

	byRoute := make(map[string]map[string]string, len(routes))
	for _, s := range states {
		if byRoute[s.RouteID] == nil {
			byRoute[s.RouteID] = make(map[string]string)
		}
		byRoute[s.RouteID][s.Key] = s.Value
	}

	response := make([]routeResponse, 0, len(routes))
	for _, r := range routes {
		st := byRoute[r.ID] // nil map reads as empty
		response = append(response, routeResponse{
			Route:         r,
			DeviceStatus:  st[poller.KeyDeviceStatus],
			StationIssues: st[poller.KeyStationIssues] == "true",
			TimeGenerated: st[poller.KeyTimeGenerated],
		})
	}
	c.JSON(http.StatusOK, response)
}

// GetRouteStates handles the GET /api/routes/{id}/states request.
func (h *Handler) GetRouteStates(c *gin.Context) {
	route, ok := h.route(c)
	if !ok {
		return
	}
	states, err := h.store.States(c.Request.Context(), route.ID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve route states"})
		return
	}
	c.JSON(http.StatusOK, states)
}

// GetRouteBoard handles the GET /api/routes/{id}/board request with the
// latest board text.
func (h *Handler) GetRouteBoard(c *gin.Context) {
	route, ok := h.route(c)
	if !ok {
		return
	}
	body, err := os.ReadFile(poller.PathsFor(h.outputDir, route.ID).Text)
	if errors.Is(err, os.ErrNotExist) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "board has not been generated yet"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to read board"})
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", body)
}

// GetRouteImage handles the GET /api/routes/{id}/image?style= request.
func (h *Handler) GetRouteImage(c *gin.Context) {
	style := dispatch.Classic
	if s := c.Query("style"); s != "" {
		var err error
		if style, err = dispatch.ParseStyle(s); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	route, ok := h.route(c)
	if !ok {
		return
	}
	path := style.ImagePath(poller.PathsFor(h.outputDir, route.ID).Image)
	if _, err := os.Stat(path); err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "image has not been rendered yet"})
		return
	}
	c.File(path)
}

// GetRouteCycles handles the GET /api/routes/{id}/cycles request with the
// most recent poll outcomes first.
func (h *Handler) GetRouteCycles(c *gin.Context) {
	limit := defaultCycleLimit
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = min(n, maxCycleLimit)
	}

	route, ok := h.route(c)
	if !ok {
		return
	}

	var cycles []model.CycleRecord
	if err := h.store.DB().Where("route_id = ?", route.ID).
		Order("started_at DESC").
		Limit(limit).
		Find(&cycles).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve cycles"})
		return
	}
	c.JSON(http.StatusOK, cycles)
}

// route loads the route named in the path, writing the error response
// when it cannot.
func (h *Handler) route(c *gin.Context) (model.Route, bool) {
	var route model.Route
	err := h.store.DB().Where("id = ?", c.Param("id")).First(&route).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "route not found"})
		return route, false
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve route"})
		return route, false
	}
	return route, true
}
