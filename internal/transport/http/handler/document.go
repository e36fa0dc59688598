package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"ragchat/internal/app"
	"ragchat/internal/chunker"
	"ragchat/internal/loader"
	"ragchat/internal/transport/http/response"
)

type DocumentHandler struct {
	ingestService *app.IngestService
	maxFileBytes  int64
}

func NewDocumentHandler(ingestService *app.IngestService, maxFileBytes int64) *DocumentHandler {
	return &DocumentHandler{
		ingestService: ingestService,
		maxFileBytes:  maxFileBytes,
	}
}

type DeleteDocumentRequest struct {
	FileID uint `json:"file_id" binding:"required"`
}

// Upload accepts a multipart form with "file", validates extension and
// size before any side effect, and indexes the document.
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !loader.Supported(ext) {
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFormat,
			"unsupported file type, allowed: .pdf, .docx, .html")
		return
	}
	if file.Size > h.maxFileBytes {
		response.Error(c, http.StatusBadRequest, response.CodeFileTooLarge,
			fmt.Sprintf("file too large (max %d bytes)", h.maxFileBytes))
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}

	result, err := h.ingestService.Ingest(c.Request.Context(), file.Filename, content)
	if err != nil {
		switch {
		case errors.Is(err, loader.ErrUnsupportedFormat):
			response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFormat, err.Error())
		case errors.Is(err, loader.ErrFileTooLarge):
			response.Error(c, http.StatusBadRequest, response.CodeFileTooLarge, err.Error())
		case errors.Is(err, chunker.ErrNoContent):
			response.Error(c, http.StatusBadRequest, response.CodeNoContent,
				"no text could be extracted from "+file.Filename)
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer,
				"failed to index "+file.Filename+" in vector store")
		}
		return
	}

	response.OKMessage(c, "Successfully uploaded and indexed "+file.Filename, result)
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.ingestService.ListDocuments()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

// Delete removes a document from the vector store first, then the
// relational record, reporting partial failure as its own state.
func (h *DocumentHandler) Delete(c *gin.Context) {
	var req DeleteDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.ingestService.DeleteDocument(c.Request.Context(), req.FileID)
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid file id")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer,
			fmt.Sprintf("failed to delete document %d from the vector store", req.FileID))
		return
	}

	switch result.Outcome {
	case app.DeleteNoDocuments:
		response.OKMessage(c, fmt.Sprintf("no documents found for file_id %d", req.FileID), result)
	case app.DeletePartialRelational:
		response.Error(c, http.StatusInternalServerError, response.CodePartialDelete,
			fmt.Sprintf("deleted document %d from the vector store but not from the database", req.FileID))
	default:
		response.OKMessage(c, fmt.Sprintf("Successfully deleted document with file_id %d from the system", req.FileID), result)
	}
}
