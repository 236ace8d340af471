package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/plant-api/internal/classify"
	"github.com/Brownie44l1/plant-api/internal/facts"
	"github.com/Brownie44l1/plant-api/internal/ingest"
)

// UploadsURLPrefix is where stored uploads are served.
const UploadsURLPrefix = "/static/upload"

// Uploader persists validated uploads.
type Uploader interface {
	Accept(u ingest.UploadedImage) (ingest.StoredImage, error)
	Dir() string
}

// Classifier runs the inference flow for a stored upload.
type Classifier interface {
	Classify(ctx context.Context, ref string) (*classify.Result, error)
}

// Handler serves the upload form, the classification redirect chain and
// the result page.
type Handler struct {
	uploads    Uploader
	classifier Classifier
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(uploads Uploader, classifier Classifier, logger *zap.Logger) *Handler {
	return &Handler{
		uploads:    uploads,
		classifier: classifier,
		logger:     logger,
	}
}

// RegisterRoutes registers all routes on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Index)
	r.POST("/", h.Upload)
	r.GET("/classify/*ref", h.Classify)
	r.GET("/Output/:plant/:confidence/:botanical/:chemical/:medicinal/:uses/:image", h.Output)
	r.Static(UploadsURLPrefix, h.uploads.Dir())

	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		api.POST("/classify", h.ClassifyUpload)
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Index renders the upload form.
func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", nil)
}

// Upload stores the multipart "file" field and redirects to its classification.
func (h *Handler) Upload(c *gin.Context) {
	stored, ok := h.accept(c)
	if !ok {
		return
	}
	c.Redirect(http.StatusFound, "/classify/"+escapeSegments(strings.Split(stored.Ref, "/")...))
}

// Classify runs the orchestrator for a stored reference and redirects to
// the result page with every field carried in the path.
func (h *Handler) Classify(c *gin.Context) {
	ref := strings.TrimPrefix(c.Param("ref"), "/")

	result, err := h.classifier.Classify(c.Request.Context(), ref)
	if err != nil {
		h.classificationFailed(c, err)
		return
	}

	c.Redirect(http.StatusFound, "/Output/"+escapeSegments(
		result.Label,
		strconv.FormatFloat(result.Confidence, 'f', -1, 64),
		result.Facts.BotanicalName,
		result.Facts.ChemicalComponents,
		result.Facts.MedicinalProperties,
		result.Facts.MedicalUses,
		result.Image,
	))
}

// Output renders a result. The confidence segment is the raw [0,1] score
// and is only turned into a percentage here.
func (h *Handler) Output(c *gin.Context) {
	confidence, err := strconv.ParseFloat(c.Param("confidence"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid confidence"})
		return
	}

	c.HTML(http.StatusOK, "result.html", gin.H{
		"Plant":      c.Param("plant"),
		"Confidence": classify.FormatPercent(confidence),
		"Facts": facts.PlantFact{
			BotanicalName:       c.Param("botanical"),
			ChemicalComponents:  c.Param("chemical"),
			MedicinalProperties: c.Param("medicinal"),
			MedicalUses:         c.Param("uses"),
		},
		"ImageURL": UploadsURLPrefix + "/" + url.PathEscape(c.Param("image")),
	})
}

// ClassifyUpload stores and classifies an upload in one call and answers with JSON.
func (h *Handler) ClassifyUpload(c *gin.Context) {
	stored, ok := h.accept(c)
	if !ok {
		return
	}

	result, err := h.classifier.Classify(c.Request.Context(), stored.Ref)
	if err != nil {
		h.classificationFailed(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"label":              result.Label,
		"confidence":         result.Confidence,
		"confidence_percent": result.Percent(),
		"facts":              result.Facts,
		"image":              result.Image,
		"image_url":          UploadsURLPrefix + "/" + url.PathEscape(result.Image),
	})
}

// accept reads the "file" field and stores it. On failure the response has
// been written and ok is false.
func (h *Handler) accept(c *gin.Context) (ingest.StoredImage, bool) {
	upload, err := readUpload(c)

	var rejection *ingest.RejectionError
	if errors.As(err, &rejection) {
		c.JSON(http.StatusBadRequest, gin.H{"error": rejection.Reason})
		return ingest.StoredImage{}, false
	}
	if err != nil {
		h.logger.Error("Failed to read upload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return ingest.StoredImage{}, false
	}

	stored, err := h.uploads.Accept(upload)
	if errors.As(err, &rejection) {
		c.JSON(http.StatusBadRequest, gin.H{"error": rejection.Reason})
		return ingest.StoredImage{}, false
	}
	if err != nil {
		h.logger.Error("Failed to store upload", zap.String("filename", upload.Filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return ingest.StoredImage{}, false
	}
	return stored, true
}

// readUpload distinguishes a missing "file" field from one sent without a
// filename; multipart parsing files the latter under form values.
func readUpload(c *gin.Context) (ingest.UploadedImage, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return ingest.UploadedImage{}, ingest.ErrMissingFile
	}

	headers := form.File["file"]
	if len(headers) == 0 {
		if _, sent := form.Value["file"]; sent {
			return ingest.UploadedImage{}, ingest.ErrEmptyFilename
		}
		return ingest.UploadedImage{}, ingest.ErrMissingFile
	}

	header := headers[0]
	if header.Filename == "" {
		return ingest.UploadedImage{}, ingest.ErrEmptyFilename
	}
	if err := ingest.Validate(ingest.UploadedImage{Filename: header.Filename}); err != nil {
		return ingest.UploadedImage{}, err
	}

	file, err := header.Open()
	if err != nil {
		return ingest.UploadedImage{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ingest.UploadedImage{}, err
	}
	return ingest.UploadedImage{Filename: header.Filename, Data: data}, nil
}

func (h *Handler) classificationFailed(c *gin.Context, err error) {
	if !classify.IsClassificationError(err) {
		h.logger.Error("Error during classification", zap.Error(err))
		err = &classify.Error{Stage: "internal error", Err: err}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// escapeSegments path-escapes each segment. "+" is escaped as well because
// the router unescapes path values with query rules.
func escapeSegments(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = strings.ReplaceAll(url.PathEscape(s), "+", "%2B")
	}
	return strings.Join(escaped, "/")
}
