package system

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"cmgvisor/internal/config"
	httpx "cmgvisor/internal/http"
	"cmgvisor/internal/models"
	"cmgvisor/internal/services/cache"
	"cmgvisor/internal/services/dataloader"
	"cmgvisor/internal/services/selection"
	"cmgvisor/internal/services/storage"
	"cmgvisor/internal/services/workbook"
	"cmgvisor/internal/version"
)

const (
	maxUploadSize = 50 << 20
	plotlyCDN     = "https://cdn.plot.ly/plotly-2.35.2.min.js"
)

var (
	cfg      *config.Config
	store    *storage.Storage
	loader   *dataloader.DataLoader
	datasets *cache.Cache[*models.Dataset]
)

// Initialize sets up the system package with required dependencies
func Initialize(c *config.Config, s *storage.Storage, l *dataloader.DataLoader, d *cache.Cache[*models.Dataset]) {
	cfg = c
	store = s
	loader = l
	datasets = d
}

// RegisterRoutes registers the operational endpoints
func RegisterRoutes(r chi.Router) {
	r.Get("/api/health", HandleHealth)
	r.Get("/api/version", HandleVersion)
	r.Get("/api/status", HandleStatus)
	r.Get("/api/backup", HandleBackup)
	r.Post("/api/source", HandleUpload)
	r.Get("/vendor/plotly.min.js", HandlePlotly)
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func HandleVersion(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, version.Get())
}

// Status is the payload of /api/status
type Status struct {
	Load       LoadStatus         `json:"load"`
	Cache      CacheStatus        `json:"cache"`
	Encryption EncryptionStatus   `json:"encryption"`
	Source     *models.SourceInfo `json:"source,omitempty"`
	Catalog    []string           `json:"catalog"`
	Cutoff     *time.Time         `json:"cutoff"`
	Cost       models.CostData    `json:"cost"`
	Flow       models.FlowData    `json:"flow"`
	Errors     []string           `json:"errors"`
}

// LoadStatus identifies the dataset currently served
type LoadStatus struct {
	ID         string    `json:"id"`
	Generation uint64    `json:"generation"`
	LoadedAt   time.Time `json:"loaded_at"`
	SourceFile string    `json:"source_file"`
}

// CacheStatus describes the load cache
type CacheStatus struct {
	Generation uint64 `json:"generation"`
	TTL        string `json:"ttl"`
}

// EncryptionStatus describes the data directory encryption
type EncryptionStatus struct {
	Enabled  bool `json:"enabled"`
	Unlocked bool `json:"unlocked"`
}

func HandleStatus(w http.ResponseWriter, r *http.Request) {
	ds, err := datasets.Get(loader.LoadData)
	if err != nil {
		httpx.JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := Status{
		Load: LoadStatus{
			ID:         ds.ID,
			Generation: ds.Generation,
			LoadedAt:   ds.LoadedAt,
			SourceFile: ds.SourceFile,
		},
		Cache: CacheStatus{
			Generation: datasets.Generation(),
			TTL:        datasets.TTL().String(),
		},
		Encryption: EncryptionStatus{
			Enabled:  store.IsEncrypted(),
			Unlocked: store.IsUnlocked(),
		},
		Catalog: ds.Barras(),
		Cost:    ds.Cost,
		Flow:    ds.Flow,
		Errors:  []string{},
	}

	if cutoff, ok := selection.Cutoff(ds); ok {
		status.Cutoff = &cutoff
	}
	for _, e := range ds.Errors() {
		status.Errors = append(status.Errors, e.Error())
	}

	if info, err := loader.SourceInfo(); err != nil {
		log.Printf("Warning: could not describe source workbook: %v", err)
	} else {
		status.Source = info
	}

	httpx.WriteJSON(w, http.StatusOK, status)
}

// HandleBackup streams every workbook of the data directory as a zip.
// Backup files are always decrypted for portability.
func HandleBackup(w http.ResponseWriter, r *http.Request) {
	names, err := store.Workbooks()
	if err != nil {
		httpx.ErrorResponse(w, "Error reading data directory", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		data, err := store.ReadFile(name)
		if err != nil {
			httpx.ErrorResponse(w, fmt.Sprintf("Error reading %s: %v", name, err), http.StatusInternalServerError)
			return
		}
		f, err := zw.Create(name)
		if err != nil {
			httpx.ErrorResponse(w, "Error creating backup", http.StatusInternalServerError)
			return
		}
		if _, err := f.Write(data); err != nil {
			httpx.ErrorResponse(w, "Error creating backup", http.StatusInternalServerError)
			return
		}
	}
	if err := zw.Close(); err != nil {
		httpx.ErrorResponse(w, "Error creating backup", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("visor_backup_%s.zip", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Write(buf.Bytes())
}

// HandleUpload replaces the source workbook with the uploaded file and
// drops the cached dataset
func HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httpx.ErrorResponse(w, "File too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.ErrorResponse(w, "Error reading file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".xlsx" && ext != ".xlsm" {
		httpx.ErrorResponse(w, "Only .xlsx or .xlsm workbooks are allowed", http.StatusBadRequest)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		httpx.ErrorResponse(w, "Error reading file", http.StatusInternalServerError)
		return
	}

	wb, err := workbook.Open(content)
	if err != nil {
		httpx.ErrorResponse(w, "Invalid workbook: "+err.Error(), http.StatusBadRequest)
		return
	}
	sheets := wb.SheetNames()
	wb.Close()

	if err := store.WriteFile(cfg.SourceFile, content, 0644); err != nil {
		httpx.ErrorResponse(w, "Error saving workbook: "+err.Error(), http.StatusInternalServerError)
		return
	}
	datasets.Invalidate()

	log.Printf("Replaced source workbook with %s (%d bytes, sheets %v)", header.Filename, len(content), sheets)
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"source_file": cfg.SourceFile,
		"size":        len(content),
		"sheets":      sheets,
	})
}

// HandlePlotly serves plotly.js from a local cache, fetching it from the
// CDN on first use
func HandlePlotly(w http.ResponseWriter, r *http.Request) {
	cachePath := filepath.Join(cfg.DataDirectory, "cache", "plotly.min.js")

	if data, err := os.ReadFile(cachePath); err == nil {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "public, max-age=31536000")
		w.Write(data)
		return
	}

	log.Println("Fetching plotly.min.js from CDN...")
	resp, err := http.Get(plotlyCDN)
	if err != nil {
		httpx.ErrorResponse(w, "Failed to fetch plotly: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		httpx.ErrorResponse(w, "CDN returned status: "+resp.Status, http.StatusBadGateway)
		return
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		httpx.ErrorResponse(w, "Failed to read plotly response: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		log.Printf("Warning: could not create cache directory: %v", err)
	}
	if err := os.WriteFile(cachePath, data, 0644); err != nil {
		log.Printf("Warning: could not cache plotly.min.js: %v", err)
	} else {
		log.Println("Cached plotly.min.js for future requests")
	}

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Write(data)
}
