package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/witnz/landledger/internal/certificate"
	"github.com/witnz/landledger/internal/ledger"
	"github.com/witnz/landledger/internal/registry"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// HealthReporter exposes the latest background verification, if any.
type HealthReporter interface {
	LastResult() (ledger.ValidationResult, bool)
}

type Handler struct {
	registry *registry.Registry
	health   HealthReporter
	logger   *slog.Logger
}

func NewHandler(reg *registry.Registry, health HealthReporter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{registry: reg, health: health, logger: logger}
}

// Register mounts the certificate and ledger routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	certs := rg.Group("/certificates")
	{
		certs.POST("", h.RegisterCertificate)
		certs.GET("/:land_id", h.VerifyCertificate)
	}

	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/verify", h.Verify)
		l.GET("/search", h.Search)
		l.GET("/records", h.ListRecords)
		l.GET("/records/:index", h.GetRecord)
		l.GET("/records/:index/proof", h.GetProof)
	}
}

// RegisterCertificate handles POST /certificates.
func (h *Handler) RegisterCertificate(c *gin.Context) {
	var req certificate.Certificate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	record, err := h.registry.Register(c.Request.Context(), req)
	if err != nil {
		var ve *ledger.ValidationError
		switch {
		case errors.As(err, &ve):
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "fields": ve.Fields})
		case errors.Is(err, registry.ErrDuplicateLandID):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error("register certificate", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register certificate"})
		}
		return
	}

	c.JSON(http.StatusCreated, record)
}

// VerifyCertificate handles GET /certificates/:land_id.
func (h *Handler) VerifyCertificate(c *gin.Context) {
	reg, err := h.registry.Verify(c.Request.Context(), c.Param("land_id"))
	if err != nil {
		if errors.Is(err, registry.ErrCertificateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "certificate not found"})
			return
		}
		h.logger.Error("verify certificate", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read certificate"})
		return
	}
	c.JSON(http.StatusOK, reg)
}

// Overview handles GET /ledger.
func (h *Handler) Overview(c *gin.Context) {
	l := h.registry.Ledger()

	summary, err := l.Summary()
	if err != nil {
		h.logger.Error("ledger summary", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger root"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"length":         summary.Length,
		"tip":            summary.Tip,
		"merkle_root":    summary.MerkleRoot,
		"algorithm":      l.Algorithm(),
		"genesis_marker": l.GenesisMarker(),
	})
}

// Verify handles GET /ledger/verify. A corrupted chain is still a 200; the
// body carries the finding.
func (h *Handler) Verify(c *gin.Context) {
	result := h.registry.Integrity(c.Request.Context())
	c.JSON(http.StatusOK, result)
}

// Search handles GET /ledger/search?field=..&value=..[&kind=number].
func (h *Handler) Search(c *gin.Context) {
	field := c.Query("field")
	raw, ok := c.GetQuery("value")
	if field == "" || !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "field and value are required"})
		return
	}

	value := ledger.String(raw)
	switch c.DefaultQuery("kind", "string") {
	case "string":
	case "number":
		d, err := decimal.NewFromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "value is not a number"})
			return
		}
		value = ledger.Number(d)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be string or number"})
		return
	}

	record, found := h.registry.Ledger().FindByField(field, value)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no matching record"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// ListRecords handles GET /ledger/records?offset=..&limit=..
func (h *Handler) ListRecords(c *gin.Context) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 || limit > maxPageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and " + strconv.Itoa(maxPageSize)})
		return
	}

	records := h.registry.Ledger().Records()
	total := len(records)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   total,
		"offset":  offset,
		"records": records[offset:end],
	})
}

// GetRecord handles GET /ledger/records/:index.
func (h *Handler) GetRecord(c *gin.Context) {
	idx, ok := parseIndex(c)
	if !ok {
		return
	}

	record, err := h.registry.Ledger().Get(idx)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetProof handles GET /ledger/records/:index/proof.
func (h *Handler) GetProof(c *gin.Context) {
	idx, ok := parseIndex(c)
	if !ok {
		return
	}

	proof, err := h.registry.Ledger().Proof(idx)
	if err != nil {
		if errors.Is(err, ledger.ErrIndexOutOfRange) {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		h.logger.Error("merkle proof", "index", idx, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build proof"})
		return
	}
	c.JSON(http.StatusOK, proof)
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{
		"status": "ok",
		"length": h.registry.Ledger().Len(),
	}
	if h.health != nil {
		if last, ok := h.health.LastResult(); ok {
			resp["last_verification"] = last
			if !last.Valid {
				resp["status"] = "corrupted"
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func parseIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a non-negative integer"})
		return 0, false
	}
	return idx, true
}
