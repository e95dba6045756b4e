package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/seedsource"
	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/taxonomy"
	"github.com/verdantlabs/seedbank/modules/catalog/services"
	"github.com/verdantlabs/seedbank/pkg/application"
)

type CatalogAPIController struct {
	app       application.Application
	taxonomy  *services.TaxonomyService
	sources   *services.SeedSourceService
	apiPrefix string
}

func NewCatalogAPIController(app application.Application) application.Controller {
	return &CatalogAPIController{
		app:       app,
		taxonomy:  app.Service(services.TaxonomyService{}).(*services.TaxonomyService),
		sources:   app.Service(services.SeedSourceService{}).(*services.SeedSourceService),
		apiPrefix: "/catalog/api",
	}
}

func (c *CatalogAPIController) Key() string {
	return c.apiPrefix
}

func (c *CatalogAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()

	api.HandleFunc("/taxonomy", c.GetTaxonomy).Methods(http.MethodGet)
	api.HandleFunc("/taxonomy/search", c.SearchTaxonomy).Methods(http.MethodGet)
	api.HandleFunc("/taxonomy/categories", c.CreateCategory).Methods(http.MethodPost)
	api.HandleFunc("/taxonomy/subcategories", c.CreateSubcategory).Methods(http.MethodPost)
	api.HandleFunc("/sources", c.ListSources).Methods(http.MethodGet)
}

func (c *CatalogAPIController) GetTaxonomy(w http.ResponseWriter, r *http.Request) {
	entries, err := c.taxonomy.Snapshot(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "CATALOG_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"taxonomy": entries})
}

func (c *CatalogAPIController) SearchTaxonomy(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		writeJSONError(w, http.StatusBadRequest, "CATALOG_INVALID_QUERY", "q is required")
		return
	}
	matches, err := c.taxonomy.Search(r.Context(), query)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "CATALOG_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

type createCategoryRequest struct {
	PlantType   string `json:"plant_type"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

func (c *CatalogAPIController) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "CATALOG_INVALID_BODY", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.PlantType) == "" || strings.TrimSpace(req.Category) == "" {
		writeJSONError(w, http.StatusBadRequest, "CATALOG_INVALID_BODY", "plant_type and category are required")
		return
	}
	category, err := c.taxonomy.CreateCategory(r.Context(), req.PlantType, req.Category)
	if err != nil {
		if errors.Is(err, taxonomy.ErrTypeNotFound) {
			writeJSONError(w, http.StatusUnprocessableEntity, "CATALOG_UNKNOWN_TYPE", err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "CATALOG_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":   category.ID,
		"name": category.Name,
	})
}

func (c *CatalogAPIController) CreateSubcategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "CATALOG_INVALID_BODY", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.PlantType) == "" ||
		strings.TrimSpace(req.Category) == "" ||
		strings.TrimSpace(req.Subcategory) == "" {
		writeJSONError(w, http.StatusBadRequest, "CATALOG_INVALID_BODY", "plant_type, category and subcategory are required")
		return
	}
	subcategory, err := c.taxonomy.CreateSubcategory(r.Context(), req.PlantType, req.Category, req.Subcategory)
	if err != nil {
		if errors.Is(err, taxonomy.ErrTypeNotFound) {
			writeJSONError(w, http.StatusUnprocessableEntity, "CATALOG_UNKNOWN_TYPE", err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "CATALOG_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":   subcategory.ID,
		"name": subcategory.Name,
	})
}

func (c *CatalogAPIController) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := c.sources.List(r.Context(), &seedsource.FindParams{
		Query: r.URL.Query().Get("q"),
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "CATALOG_ERROR", err.Error())
		return
	}
	type sourceResponse struct {
		ID      uint   `json:"id"`
		Name    string `json:"name"`
		Website string `json:"website,omitempty"`
	}
	out := make([]sourceResponse, 0, len(sources))
	for _, src := range sources {
		out = append(out, sourceResponse{ID: src.ID, Name: src.Name, Website: src.Website})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": out})
}
