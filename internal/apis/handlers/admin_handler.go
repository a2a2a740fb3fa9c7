package handlers

import (
	"io"
	"net/http"
	"strconv"

	"mongolens/internal/apis/dtos"
	"mongolens/internal/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler is the HTTP surface of the admin client. Every error is
// converted to a JSON {error} body here; nothing propagates past the boundary.
type AdminHandler struct {
	adminService services.AdminService
}

func NewAdminHandler(adminService services.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func respondError(c *gin.Context, statusCode uint32, err error) {
	c.JSON(int(statusCode), dtos.ErrorResponse{Error: err.Error()})
}

// @Summary Connect to a document store
// @Accept json
// @Produce json
// @Param connectRequest body dtos.ConnectRequest true "Connect request"

func (h *AdminHandler) Connect(c *gin.Context) {
	var req dtos.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dtos.ErrorResponse{Error: err.Error()})
		return
	}

	response, statusCode, err := h.adminService.Connect(c.Request.Context(), &req)
	if err != nil {
		respondError(c, statusCode, err)
		return
	}
	c.JSON(int(statusCode), response)
}

func (h *AdminHandler) Status(c *gin.Context) {
	response, statusCode, err := h.adminService.Status(c.Request.Context())
	if err != nil {
		respondError(c, statusCode, err)
		return
	}
	c.JSON(int(statusCode), response)
}

func (h *AdminHandler) Disconnect(c *gin.Context) {
	response, statusCode, err := h.adminService.Disconnect(c.Request.Context())
	if err != nil {
		respondError(c, statusCode, err)
		return
	}
	c.JSON(int(statusCode), response)
}

func (h *AdminHandler) ListDatabases(c *gin.Context) {
	response, statusCode, err := h.adminService.ListDatabases(c.Request.Context())
	if err != nil {
		respondError(c, statusCode, err)
		return
	}
	c.JSON(int(statusCode), response)
}

func (h *AdminHandler) ListCollections(c *gin.Context) {
	response, statusCode, err := h.adminService.ListCollections(c.Request.Context(), c.Param("db"))
	if err != nil {
		respondError(c, statusCode, err)
		return
	}
	c.JSON(int(statusCode), response)
}

func (h *AdminHandler) CreateCollection(c *gin.Context) {
	var req dtos.CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dtos.ErrorResponse{Error: err.Error()})
		return
	}

	response, statusCode, err := h.adminService.CreateCollection(c.Request.Context(), c.Param("db"), req.Name)
	if err != nil {
		respondError(c, statusCode, err)
		return
	}
	c.JSON(int(statusCode), response)
}

func (h *AdminHandler) DropCollection(c *gin.Context) {
	response, statusCode, err := h.adminService.DropCollection(c.Request.Context(), c.Param("db"), c.Param("collection"))
	if err != nil {
		respondError(c, statusCode, err)
		return
	}
	c.JSON(int(statusCode), response)
}

// @Summary List documents with cursor pagination
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param cursor query string false "Opaque continuation token"
// @Param filter query string false "Raw filter JSON"
// @Param search query string false "Free-text search term"
// @Param view query string false "Set to 'table' for cell classifications"

func (h *AdminHandler) ListDocuments(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	req := &dtos.ListDocumentsRequest{
		Limit:  limit,
		Cursor: c.Query("cursor"),
		Filter: c.Query("filter"),
		Search: c.Query("search"),
		View:   c.Query("view"),
	}

	response, statusCode, err := h.adminService.ListDocuments(c.Request.Context(), c.Param("db"), c.Param("collection"), req)
	if err != nil {
		respondError(c, statusCode, err)
		return
	}
	c.JSON(int(statusCode), response)
}

func (h *AdminHandler) GetDocument(c *gin.Context) {
	response, statusCode, err := h.adminService.GetDocument(c.Request.Context(), c.Param("db"), c.Param("collection"), c.Param("id"))
	if err != nil {
		respondError(c, statusCode, err)
		return
	}
	c.JSON(int(statusCode), response)
}

func (h *AdminHandler) CreateDocument(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, dtos.ErrorResponse{Error: err.Error()})
		return
	}

	response, statusCode, err := h.adminService.CreateDocument(c.Request.Context(), c.Param("db"), c.Param("collection"), body)
	if err != nil {
		respondError(c, statusCode, err)
		return
	}
	c.JSON(int(statusCode), response)
}

func (h *AdminHandler) UpdateDocument(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, dtos.ErrorResponse{Error: err.Error()})
		return
	}

	response, statusCode, err := h.adminService.UpdateDocument(c.Request.Context(), c.Param("db"), c.Param("collection"), c.Param("id"), body)
	if err != nil {
		respondError(c, statusCode, err)
		return
	}
	c.JSON(int(statusCode), response)
}

func (h *AdminHandler) DeleteDocument(c *gin.Context) {
	response, statusCode, err := h.adminService.DeleteDocument(c.Request.Context(), c.Param("db"), c.Param("collection"), c.Param("id"))
	if err != nil {
		respondError(c, statusCode, err)
		return
	}
	c.JSON(int(statusCode), response)
}

func (h *AdminHandler) GetSchema(c *gin.Context) {
	sampleSize, _ := strconv.Atoi(c.DefaultQuery("sampleSize", "0"))
	response, statusCode, err := h.adminService.GetSchema(c.Request.Context(), c.Param("db"), c.Param("collection"), sampleSize)
	if err != nil {
		respondError(c, statusCode, err)
		return
	}
	c.JSON(int(statusCode), response)
}

func (h *AdminHandler) ListIndexes(c *gin.Context) {
	response, statusCode, err := h.adminService.ListIndexes(c.Request.Context(), c.Param("db"), c.Param("collection"))
	if err != nil {
		respondError(c, statusCode, err)
		return
	}
	c.JSON(int(statusCode), response)
}

func (h *AdminHandler) ResolveReferences(c *gin.Context) {
	maxProbes, _ := strconv.Atoi(c.DefaultQuery("maxProbes", "0"))
	response, statusCode, err := h.adminService.ResolveReferences(c.Request.Context(), c.Param("db"), c.Param("collection"), c.Param("id"), maxProbes)
	if err != nil {
		respondError(c, statusCode, err)
		return
	}
	c.JSON(int(statusCode), response)
}
