package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/importrow"
	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/seedimport"
	"github.com/verdantlabs/seedbank/modules/importer/services"
	"github.com/verdantlabs/seedbank/pkg/application"
	"github.com/verdantlabs/seedbank/pkg/configuration"
)

type ImportAPIController struct {
	app       application.Application
	imports   *services.ImportService
	review    *services.ReviewService
	apiPrefix string
}

func NewImportAPIController(app application.Application) application.Controller {
	return &ImportAPIController{
		app:       app,
		imports:   app.Service(services.ImportService{}).(*services.ImportService),
		review:    app.Service(services.ReviewService{}).(*services.ReviewService),
		apiPrefix: "/imports/api",
	}
}

func (c *ImportAPIController) Key() string {
	return c.apiPrefix
}

func (c *ImportAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()

	api.HandleFunc("", c.Upload).Methods(http.MethodPost)
	api.HandleFunc("", c.List).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}", c.Get).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}/rows", c.Rows).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}/map", c.TriggerMapping).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}/execute", c.TriggerExecution).Methods(http.MethodPost)
	api.HandleFunc("/rows/{rowID:[0-9]+}/accept", c.AcceptRow).Methods(http.MethodPost)
	api.HandleFunc("/rows/{rowID:[0-9]+}/reject", c.RejectRow).Methods(http.MethodPost)
	api.HandleFunc("/rows/{rowID:[0-9]+}/modify", c.ModifyRow).Methods(http.MethodPost)
}

func (c *ImportAPIController) Upload(w http.ResponseWriter, r *http.Request) {
	conf := configuration.Use()
	r.Body = http.MaxBytesReader(w, r.Body, conf.MaxUploadSize)
	if err := r.ParseMultipartForm(conf.MaxUploadSize); err != nil {
		writeJSONError(w, http.StatusBadRequest, "IMPORT_INVALID_UPLOAD", "could not parse multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "IMPORT_INVALID_UPLOAD", "file field is required")
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".xlsx" {
		writeJSONError(w, http.StatusBadRequest, "IMPORT_INVALID_UPLOAD", "only .xlsx workbooks are supported")
		return
	}

	imp, err := c.imports.Upload(r.Context(), header.Filename, file)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "IMPORT_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toImportResponse(imp))
}

func (c *ImportAPIController) List(w http.ResponseWriter, r *http.Request) {
	params := &seedimport.FindParams{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := seedimport.Status(raw)
		params.Status = &status
	}
	imports, err := c.imports.List(r.Context(), params)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "IMPORT_ERROR", err.Error())
		return
	}
	out := make([]*importResponse, 0, len(imports))
	for _, imp := range imports {
		out = append(out, toImportResponse(imp))
	}
	writeJSON(w, http.StatusOK, map[string]any{"imports": out})
}

func (c *ImportAPIController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	imp, err := c.imports.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, seedimport.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "IMPORT_NOT_FOUND", err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "IMPORT_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toImportResponse(imp))
}

func (c *ImportAPIController) Rows(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	params := &importrow.FindParams{
		ImportID: id,
		Limit:    queryInt(r, "limit", 100),
		Offset:   queryInt(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("mapping_status"); raw != "" {
		status := importrow.MappingStatus(raw)
		params.MappingStatus = &status
	}
	rows, err := c.imports.Rows(r.Context(), params)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "IMPORT_ERROR", err.Error())
		return
	}
	out := make([]*rowResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRowResponse(row))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": out})
}

func (c *ImportAPIController) TriggerMapping(w http.ResponseWriter, r *http.Request) {
	c.trigger(w, r, c.imports.TriggerMapping)
}

func (c *ImportAPIController) TriggerExecution(w http.ResponseWriter, r *http.Request) {
	c.trigger(w, r, c.imports.TriggerExecution)
}

func (c *ImportAPIController) trigger(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, id uint) error) {
	id, ok := pathUint(w, r, "id")
	if !ok {
		return
	}
	if err := run(r.Context(), id); err != nil {
		if errors.Is(err, seedimport.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "IMPORT_NOT_FOUND", err.Error())
			return
		}
		writeJSONError(w, http.StatusConflict, "IMPORT_INVALID_STATE", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}

func (c *ImportAPIController) AcceptRow(w http.ResponseWriter, r *http.Request) {
	c.reviewRow(w, r, func(id uint) (*importrow.ImportRow, error) {
		return c.review.Accept(r.Context(), id)
	})
}

func (c *ImportAPIController) RejectRow(w http.ResponseWriter, r *http.Request) {
	c.reviewRow(w, r, func(id uint) (*importrow.ImportRow, error) {
		return c.review.Reject(r.Context(), id)
	})
}

type modifyRowRequest struct {
	PlantType   string `json:"plant_type"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Source      string `json:"source"`
}

func (c *ImportAPIController) ModifyRow(w http.ResponseWriter, r *http.Request) {
	var req modifyRowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "IMPORT_INVALID_BODY", "invalid JSON body")
		return
	}
	c.reviewRow(w, r, func(id uint) (*importrow.ImportRow, error) {
		return c.review.Modify(r.Context(), id, services.ModifyParams{
			PlantType:   req.PlantType,
			Category:    req.Category,
			Subcategory: req.Subcategory,
			Source:      req.Source,
		})
	})
}

func (c *ImportAPIController) reviewRow(w http.ResponseWriter, r *http.Request, decide func(id uint) (*importrow.ImportRow, error)) {
	id, ok := pathUint(w, r, "rowID")
	if !ok {
		return
	}
	row, err := decide(id)
	if err != nil {
		if errors.Is(err, importrow.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "IMPORT_ROW_NOT_FOUND", err.Error())
			return
		}
		writeJSONError(w, http.StatusConflict, "IMPORT_INVALID_STATE", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toRowResponse(row))
}

func pathUint(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeJSONError(w, http.StatusBadRequest, "IMPORT_INVALID_ID", "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
