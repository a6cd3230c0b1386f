package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/invoicekeeper/internal/importer"
	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
	"github.com/dmitrijs2005/invoicekeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

// maxImportSize caps an uploaded import file.
const maxImportSize = 10 << 20

type handlers struct {
	deps   Deps
	logger logging.Logger
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseType(raw string) (models.DocumentType, error) {
	t, ok := models.ParseType(raw)
	if !ok {
		return "", fmt.Errorf("%w: unknown document type %q", errInvalidRequest, raw)
	}
	return t, nil
}

func (h *handlers) listDocuments(c *gin.Context) {
	t, err := parseType(c.Query("type"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	docs, err := h.deps.Store.ListDocuments(c.Request.Context(), t)
	c.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"state":     services.ListingState(err),
	})
}

func (h *handlers) getDocument(c *gin.Context) {
	doc, err := h.deps.Store.GetDocumentByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *handlers) createDocument(c *gin.Context) {
	var in services.CreateDocumentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}

	doc, err := h.deps.Documents.Create(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// saveDocument replaces the document at :id with the request body.
func (h *handlers) saveDocument(c *gin.Context) {
	var doc models.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}

	id := c.Param("id")
	if doc.ID == "" {
		doc.ID = id
	}
	if doc.ID != id {
		abortWithError(c, fmt.Errorf("%w: body id %q does not match path id %q", errInvalidRequest, doc.ID, id))
		return
	}

	if err := h.deps.Store.SaveDocument(c.Request.Context(), doc); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *handlers) nextNumber(c *gin.Context) {
	t, err := parseType(c.Param("type"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	n, err := h.deps.Numbers.NextNumber(c.Request.Context(), t)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": t, "number": n, "id": models.FormatID(t, n)})
}

type importResponse struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Errors  int    `json:"errors"`
	Error   string `json:"error,omitempty"`
}

// importDocuments accepts either a multipart upload in the "file" field or
// the JSON array as the raw request body.
func (h *handlers) importDocuments(c *gin.Context) {
	payload, err := readImportPayload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, importResponse{Error: err.Error()})
		return
	}

	res, err := h.deps.Importer.ImportBatch(c.Request.Context(), payload)
	if err != nil {
		var partial *importer.PartialImportError
		if errors.As(err, &partial) {
			status, _ := mapError(partial.Err)
			c.JSON(status, importResponse{
				Count:  partial.Imported,
				Errors: partial.Skipped,
				Error:  "Failed to process file: " + partial.Err.Error(),
			})
			return
		}
		status, _ := mapError(err)
		c.JSON(status, importResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, importResponse{Success: true, Count: res.Imported, Errors: res.Skipped})
}

func readImportPayload(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, errors.New("no file uploaded")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, maxImportSize))
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("no file uploaded")
	}
	return body, nil
}

func (h *handlers) dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Documents.Dashboard(c.Request.Context()))
}

func (h *handlers) getSettings(c *gin.Context) {
	view, err := h.deps.Settings.Get(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) updateSettings(c *gin.Context) {
	var u models.SettingsUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}

	view, err := h.deps.Settings.Update(c.Request.Context(), u)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
