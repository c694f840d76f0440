package handlers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nfnt/resize"

	"github.com/Brownie44l1/leafgrade/internal/batch"
	"github.com/Brownie44l1/leafgrade/internal/history"
)

// ExportFilename is the suggested name of the downloadable summary.
const ExportFilename = "hasil_klasifikasi_tembakau.txt"

const thumbWidth = 300

// ModelInfo describes the loaded artifacts for the about page and /health.
type ModelInfo struct {
	Classes   []string
	ImageSize int
	Kernel    string
}

type Handler struct {
	runner    *batch.Runner
	store     history.Store
	info      ModelInfo
	maxUpload int64
}

// NewHandler wires request handling to the batch runner and history store.
// maxUpload caps the size of a whole multipart submission in bytes.
func NewHandler(runner *batch.Runner, store history.Store, info ModelInfo, maxUpload int64) *Handler {
	return &Handler{
		runner:    runner,
		store:     store,
		info:      info,
		maxUpload: maxUpload,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"classes": h.info.Classes,
	})
}

// Page renders a navigation view.
func (h *Handler) Page(v View) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch v {
		case ViewPredict:
			h.render(c, http.StatusOK, v, gin.H{})
		case ViewAbout:
			h.render(c, http.StatusOK, v, gin.H{"Info": h.info})
		case ViewHistory:
			h.historyPage(c)
		default:
			c.Status(http.StatusNotFound)
		}
	}
}

func (h *Handler) render(c *gin.Context, status int, v View, data gin.H) {
	data["Nav"] = navFor(v)
	data["Title"] = v.Title()
	c.HTML(status, v.template(), data)
}

func (h *Handler) historyPage(c *gin.Context) {
	records, err := h.store.List(c.Request.Context())
	if err != nil {
		slog.Error("history read failed", slog.Any("error", err))
		h.render(c, http.StatusInternalServerError, ViewHistory, gin.H{
			"Error": "Riwayat prediksi tidak dapat dibaca.",
		})
		return
	}
	h.render(c, http.StatusOK, ViewHistory, gin.H{"Records": records})
}

type resultView struct {
	Filename string
	Label    string
	Caption  string
	Thumb    template.URL
}

// SubmitPredict handles the upload form and renders the results page.
func (h *Handler) SubmitPredict(c *gin.Context) {
	uploads, err := h.readUploads(c)
	if err != nil {
		h.render(c, http.StatusBadRequest, ViewPredict, gin.H{"Error": err.Error()})
		return
	}

	res, err := h.runner.Run(c.Request.Context(), uploads)
	var historyErr string
	if err != nil {
		if res == nil {
			slog.Error("prediction failed", slog.Any("error", err))
			h.render(c, http.StatusInternalServerError, ViewPredict, gin.H{
				"Error": "Prediksi gagal. Silakan coba lagi.",
			})
			return
		}
		slog.Error("history append failed",
			slog.String("submission", res.SubmissionID),
			slog.Any("error", err),
		)
		historyErr = "Hasil tidak tersimpan ke riwayat."
	}

	results := make([]resultView, 0, len(res.Items))
	for _, it := range res.Items {
		upper := strings.ToUpper(it.Label)
		results = append(results, resultView{
			Filename: it.Filename,
			Label:    upper,
			Caption:  fmt.Sprintf("📄 %s - Hasil: %s", it.Filename, upper),
			Thumb:    thumbnail(it.Image),
		})
	}

	h.render(c, http.StatusOK, ViewPredict, gin.H{
		"Submitted":      true,
		"Results":        results,
		"Rejected":       res.Rejected,
		"HistoryError":   historyErr,
		"Export":         template.URL("data:text/plain;charset=utf-8," + url.PathEscape(res.Export())),
		"ExportFilename": ExportFilename,
	})
}

// APIPredict classifies a multipart submission and returns JSON.
func (h *Handler) APIPredict(c *gin.Context) {
	res, status, err := h.runAPI(c)
	if res == nil {
		c.JSON(status, errorResponse{Error: err.Error()})
		return
	}

	resp := PredictionResponse{
		SubmissionID: res.SubmissionID,
		Results:      make([]PredictionResult, 0, len(res.Items)),
		Rejected:     make([]RejectedImage, 0, len(res.Rejected)),
		Export:       res.Export(),
	}
	for _, it := range res.Items {
		resp.Results = append(resp.Results, PredictionResult{File: it.Filename, Label: it.Label})
	}
	for _, rj := range res.Rejected {
		resp.Rejected = append(resp.Rejected, RejectedImage{File: rj.Filename, Reason: rj.Reason, Message: rj.Message})
	}
	if err != nil {
		resp.HistoryError = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// APIExport classifies a submission and returns the text summary as a
// download.
func (h *Handler) APIExport(c *gin.Context) {
	res, status, err := h.runAPI(c)
	if res == nil {
		c.JSON(status, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.Header("X-History-Error", err.Error())
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ExportFilename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(res.Export()))
}

// runAPI returns a nil result with a status and error when nothing could be
// classified. A non-nil result may come with a history error.
func (h *Handler) runAPI(c *gin.Context) (*batch.Result, int, error) {
	uploads, err := h.readUploads(c)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	res, err := h.runner.Run(c.Request.Context(), uploads)
	if err != nil && res == nil {
		slog.Error("prediction failed", slog.Any("error", err))
		return nil, http.StatusInternalServerError, errors.New("prediction failed")
	}
	if err != nil {
		slog.Error("history append failed",
			slog.String("submission", res.SubmissionID),
			slog.Any("error", err),
		)
	}
	return res, http.StatusOK, err
}

func (h *Handler) APIHistory(c *gin.Context) {
	records, err := h.store.List(c.Request.Context())
	if err != nil {
		slog.Error("history read failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to read history"})
		return
	}
	resp := HistoryResponse{Records: make([]HistoryEntry, 0, len(records))}
	for _, r := range records {
		e := HistoryEntry{File: r.File, Label: r.Label, RawTime: r.RawTime}
		if !r.Time.IsZero() {
			t := r.Time
			e.Time = &t
		}
		resp.Records = append(resp.Records, e)
	}
	c.JSON(http.StatusOK, resp)
}

// readUploads collects every file under the "images" field (or the single
// "image" field) in the order the client sent them.
func (h *Handler) readUploads(c *gin.Context) ([]batch.Upload, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("upload exceeds %d MB", h.maxUpload>>20)
		}
		return nil, errors.New("no images provided. Use 'images' as the form field name")
	}

	files := form.File["images"]
	if len(files) == 0 {
		files = form.File["image"]
	}
	if len(files) == 0 {
		return nil, errors.New("no images provided. Use 'images' as the form field name")
	}

	uploads := make([]batch.Upload, 0, len(files))
	for _, fh := range files {
		data, err := readFile(fh)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s", fh.Filename)
		}
		slog.Debug("received file",
			slog.String("file", fh.Filename),
			slog.Int64("size", fh.Size),
		)
		uploads = append(uploads, batch.Upload{Filename: fh.Filename, Data: data})
	}
	return uploads, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// thumbnail returns img scaled to thumbWidth as an inline JPEG.
func thumbnail(img image.Image) template.URL {
	b := img.Bounds()
	if b.Dx() > thumbWidth {
		img = resize.Resize(thumbWidth, 0, img, resize.Bilinear)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return ""
	}
	return template.URL("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()))
}
