package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"twin-data/internal/catalog"
)

// CatalogHandler 参数目录（只读）
type CatalogHandler struct {
	catalog *catalog.Catalog
	logger  *zap.Logger
}

func NewCatalogHandler(c *catalog.Catalog, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: c, logger: logger}
}

// ListParameters GET /api/v1/catalog/parameters?q=
func (h *CatalogHandler) ListParameters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	items := h.catalog.Search(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": len(items),
	}))
}

// GetTree GET /api/v1/catalog/tree
func (h *CatalogHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.catalog.Tree()))
}
