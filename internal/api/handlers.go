package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"homeworth/server/internal/database"
	"homeworth/server/internal/facts"
	"homeworth/server/internal/geometry"
	"homeworth/server/internal/history"
	"homeworth/server/internal/lookup"
	"homeworth/server/internal/models"
	"homeworth/server/internal/normalizer"
	"homeworth/server/internal/queue"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type Handler struct {
	db        *database.Database
	lookup    *lookup.Orchestrator
	queue     *queue.URLQueue
	batchSize int
	history   *history.Tracker
	facts     *facts.Accumulator
	logger    *logrus.Logger
}

type IngestRequest struct {
	URLs []string `json:"urls" binding:"required,min=1,dive,required,url"`
}

type FactsRequest struct {
	Source string         `json:"source" binding:"required"`
	Facts  map[string]any `json:"facts" binding:"required"`
}

func NewHandler(db *database.Database, orchestrator *lookup.Orchestrator, q *queue.URLQueue, batchSize int, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return &Handler{
		db:        db,
		lookup:    orchestrator,
		queue:     q,
		batchSize: batchSize,
		history:   history.NewTracker(logger),
		facts:     facts.NewAccumulator(logger),
		logger:    logger,
	}
}

// GetEstimate answers a valuation lookup, fetching from the source on a miss
func (h *Handler) GetEstimate(c *gin.Context) {
	address := c.Query("address")
	if normalizer.AddressKey(address) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address query parameter is required"})
		return
	}

	estimate, err := h.lookup.GetOrCreate(c.Request.Context(), address)
	if err != nil {
		h.writeLookupError(c, err, address)
		return
	}

	c.JSON(http.StatusOK, estimate)
}

func (h *Handler) writeLookupError(c *gin.Context, err error, key string) {
	log := h.logger.WithError(err).WithField("key", key)

	var upstream *lookup.UpstreamError
	switch {
	case errors.Is(err, lookup.ErrNotFound):
		log.Info("Property not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
	case errors.As(err, &upstream):
		log.Error("Upstream source failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch property data: " + upstream.Err.Error()})
	default:
		log.Error("Lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up property: " + err.Error()})
	}
}

func (h *Handler) ListEstimates(c *gin.Context) {
	limit, offset := pagination(c)
	estimates, err := h.db.ListEstimates(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list estimates")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list estimates"})
		return
	}

	c.JSON(http.StatusOK, estimates)
}

// EvictEstimate drops the stored estimates for an address so the next lookup refetches
func (h *Handler) EvictEstimate(c *gin.Context) {
	address := c.Query("address")
	if normalizer.AddressKey(address) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address query parameter is required"})
		return
	}

	n, err := h.lookup.Evict(c.Request.Context(), address)
	if err != nil {
		h.logger.WithError(err).Error("Failed to evict estimates")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to evict estimates"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"evicted": n})
}

// ClearAll wipes every stored record
func (h *Handler) ClearAll(c *gin.Context) {
	deleted, err := h.db.ClearAll(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to clear database")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear database"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.db.GetStats(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListProperties(c *gin.Context) {
	limit, offset := pagination(c)
	properties, err := h.db.ListProperties(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list properties")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list properties"})
		return
	}

	c.JSON(http.StatusOK, properties)
}

func (h *Handler) GetProperty(c *gin.Context) {
	property, ok := h.loadProperty(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, property)
}

func (h *Handler) GetPropertyHistory(c *gin.Context) {
	property, ok := h.loadProperty(c)
	if !ok {
		return
	}

	entries, err := h.history.History(h.db.GetDB().WithContext(c.Request.Context()), property.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get price history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get price history"})
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (h *Handler) GetPropertyFacts(c *gin.Context) {
	property, ok := h.loadProperty(c)
	if !ok {
		return
	}

	rows, err := h.facts.List(h.db.GetDB().WithContext(c.Request.Context()), property.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get context facts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get context facts"})
		return
	}

	c.JSON(http.StatusOK, rows)
}

// AddPropertyFacts appends caller supplied facts to a property
func (h *Handler) AddPropertyFacts(c *gin.Context) {
	property, ok := h.loadProperty(c)
	if !ok {
		return
	}

	var req FactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
		return
	}

	values := make(map[string]string, len(req.Facts))
	for k, v := range req.Facts {
		if v == nil {
			continue
		}
		values[k] = normalizer.String(v)
	}

	err := h.db.Transaction(c.Request.Context(), func(tx *gorm.DB) error {
		return h.facts.AddFacts(tx, property.ID, req.Source, values)
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to add context facts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add context facts"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"added": len(values)})
}

// GetPropertiesGeoJSON renders located properties, plus zip hulls when hulls=true
func (h *Handler) GetPropertiesGeoJSON(c *gin.Context) {
	properties, err := h.db.ListProperties(c.Request.Context(), -1, -1)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list properties")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list properties"})
		return
	}

	fc := geometry.FeatureCollection(properties)
	if withHulls, _ := strconv.ParseBool(c.Query("hulls")); withHulls {
		for _, f := range geometry.ZipHulls(properties) {
			fc.Append(f)
		}
	}

	c.JSON(http.StatusOK, fc)
}

// QueueIngest queues page URLs for the background ingest workers
func (h *Handler) QueueIngest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
		return
	}

	queued, err := h.queue.PushAll(req.URLs, h.batchSize)
	if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrQueueClosed) {
		h.logger.WithError(err).WithField("queued", queued).Warn("Ingest queue rejected urls")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "queued": queued})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to queue urls")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue urls"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}

func (h *Handler) loadProperty(c *gin.Context) (*models.Property, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property id"})
		return nil, false
	}

	property, err := h.db.GetProperty(c.Request.Context(), uint(id))
	if err != nil {
		h.logger.WithError(err).Error("Failed to get property")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get property"})
		return nil, false
	}
	if property == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return nil, false
	}
	return property, true
}

func pagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
