package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GodspeedAgent/dpd-dispatch/internal/dataset"
	"github.com/GodspeedAgent/dpd-dispatch/internal/geocode"
	"github.com/GodspeedAgent/dpd-dispatch/internal/logger"
	"github.com/GodspeedAgent/dpd-dispatch/internal/query"
	"github.com/GodspeedAgent/dpd-dispatch/internal/soda"
)

// Querier is the slice of the soda client the handlers use.
type Querier interface {
	GetIncidents(ctx context.Context, q *query.Query) (*soda.Response, error)
	GetByBeat(ctx context.Context, beats []string, limit int) (*soda.Response, error)
}

// Geocoder is the slice of the geocoder the handlers use.
type Geocoder interface {
	ConstructAddress(block, location string) string
	Geocode(ctx context.Context, address string) ([]geocode.Point, bool)
}

// Handler handles HTTP requests for the dispatch API.
type Handler struct {
	querier  Querier
	geocoder Geocoder
	profile  *dataset.Profile
	log      logger.Logger
}

// NewHandler creates an API handler.
func NewHandler(querier Querier, geocoder Geocoder, profile *dataset.Profile, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Handler{
		querier:  querier,
		geocoder: geocoder,
		profile:  profile,
		log:      log,
	}
}

// SearchRequest mirrors the query model for the search endpoint.
type SearchRequest struct {
	Beats           []string `json:"beats"`
	Division        string   `json:"division"`
	StartDate       string   `json:"start_date"`
	EndDate         string   `json:"end_date"`
	NIBRSCodes      []string `json:"nibrs_codes"`
	UCROffense      string   `json:"ucr_offense"`
	OffenseCategory string   `json:"offense_category"`
	OffenseKeyword  string   `json:"offense_keyword"`
	Latitude        float64  `json:"latitude"`
	Longitude       float64  `json:"longitude"`
	Radius          float64  `json:"radius"`
	Limit           int      `json:"limit"`
	Offset          int      `json:"offset"`
	OrderBy         string   `json:"order_by"`
	Select          []string `json:"select"`
	Format          string   `json:"format"`
}

// SearchResponse carries one page of results.
type SearchResponse struct {
	Count   int           `json:"count"`
	Records []soda.Record `json:"records"`
}

// toQuery converts the request body into a query model instance.
func (r *SearchRequest) toQuery() (*query.Query, error) {
	q := query.New()
	q.Beats = r.Beats
	q.Division = r.Division
	q.NIBRSCodes = r.NIBRSCodes
	q.UCROffense = r.UCROffense
	q.OffenseCategory = r.OffenseCategory
	q.OffenseKeyword = r.OffenseKeyword
	q.OrderBy = r.OrderBy
	q.SelectFields = r.Select
	q.Offset = r.Offset
	if r.Limit > 0 {
		q.Limit = r.Limit
	}

	format, err := query.ParseFormat(r.Format)
	if err != nil {
		return nil, err
	}
	q.Format = format

	if r.StartDate != "" || r.EndDate != "" {
		dr := &query.DateRange{}
		if r.StartDate != "" {
			start, err := query.ParseDate(r.StartDate)
			if err != nil {
				return nil, err
			}
			dr.Start = start
		}
		if r.EndDate != "" {
			end, err := query.ParseDate(r.EndDate)
			if err != nil {
				return nil, err
			}
			dr.End = end
		}
		q.DateRange = dr
	}

	if r.Latitude != 0 || r.Longitude != 0 || r.Radius != 0 {
		q.Geo = &query.GeoQuery{Latitude: r.Latitude, Longitude: r.Longitude, Radius: r.Radius}
	}

	return q, nil
}

// Search handles POST /api/v1/incidents/search.
func (h *Handler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("invalid search request", logger.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q, err := req.toQuery()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.querier.GetIncidents(c.Request.Context(), q)
	if err != nil {
		h.log.Error("search failed", logger.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, SearchResponse{Count: resp.Count, Records: resp.Records})
}

// GetByBeat handles GET /api/v1/incidents/beats/:beat.
func (h *Handler) GetByBeat(c *gin.Context) {
	beat := c.Param("beat")

	resp, err := h.querier.GetByBeat(c.Request.Context(), []string{beat}, 0)
	if err != nil {
		h.log.Error("by-beat fetch failed",
			logger.String("beat", beat), logger.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, SearchResponse{Count: resp.Count, Records: resp.Records})
}

// GeocodeRequest asks for one address resolution.
type GeocodeRequest struct {
	Block    string `json:"block"`
	Location string `json:"location" binding:"required"`
}

// GeocodeResponse carries a point or a two-point line.
type GeocodeResponse struct {
	Address            string       `json:"address"`
	IsIntersection     bool         `json:"is_intersection"`
	Found              bool         `json:"found"`
	Latitude           float64      `json:"latitude,omitempty"`
	Longitude          float64      `json:"longitude,omitempty"`
	IntersectionCoords [][2]float64 `json:"intersection_coords,omitempty"`
}

// Geocode handles POST /api/v1/geocode.
func (h *Handler) Geocode(c *gin.Context) {
	var req GeocodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	address := h.geocoder.ConstructAddress(req.Block, req.Location)
	points, found := h.geocoder.Geocode(c.Request.Context(), address)

	resp := GeocodeResponse{
		Address:        address,
		IsIntersection: strings.Contains(address, " and "),
		Found:          found,
	}
	switch len(points) {
	case 2:
		resp.IntersectionCoords = [][2]float64{
			{points[0].Lat, points[0].Lon},
			{points[1].Lat, points[1].Lon},
		}
	case 1:
		resp.Latitude = points[0].Lat
		resp.Longitude = points[0].Lon
	}

	c.JSON(http.StatusOK, resp)
}

// DatasetInfo describes one built-in preset.
type DatasetInfo struct {
	Preset        string `json:"preset"`
	DatasetID     string `json:"dataset_id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	DatetimeField string `json:"datetime_field,omitempty"`
	LocationField string `json:"location_field"`
	BeatField     string `json:"beat_field"`
	DivisionField string `json:"division_field,omitempty"`
}

// Datasets handles GET /api/v1/datasets.
func (h *Handler) Datasets(c *gin.Context) {
	presets := dataset.Presets()
	infos := make([]DatasetInfo, 0, len(presets))
	for _, preset := range presets {
		profile, err := dataset.FromPreset(string(preset), "")
		if err != nil {
			continue
		}
		infos = append(infos, DatasetInfo{
			Preset:        string(preset),
			DatasetID:     profile.DatasetID,
			Name:          profile.Name,
			Description:   profile.Description,
			DatetimeField: profile.DatetimeField,
			LocationField: profile.LocationField,
			BeatField:     profile.BeatField,
			DivisionField: profile.DivisionField,
		})
	}

	c.JSON(http.StatusOK, gin.H{"datasets": infos})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"dataset": h.profile.DatasetID,
	})
}
