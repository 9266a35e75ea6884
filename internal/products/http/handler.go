package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"

	"product-catalog/internal/products"
	"product-catalog/internal/products/search"

	"github.com/gin-gonic/gin"
)

const (
	contentTypeJSON = "application/json"
	maxBodyBytes    = 1 << 20

	queryName      = "name"
	queryCategory  = "category"
	queryAvailable = "available"
	queryPrice     = "price"
)

var (
	errUnsupportedMedia = errors.New("content type must be application/json")
	errBodyTooLarge     = errors.New("request body must not exceed 1 MiB")
	errBadQuery         = errors.New("invalid query")
)

type ProductService interface {
	CreateProduct(ctx context.Context, p products.Product) (products.Product, error)
	FindProduct(ctx context.Context, id int64) (products.Product, bool, error)
	SearchProducts(ctx context.Context, f search.Filter) ([]products.Product, error)
	UpdateProduct(ctx context.Context, id int64, p products.Product) (products.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type Handler struct {
	service ProductService
}

func NewHandler(svc ProductService) *Handler {
	return &Handler{service: svc}
}

// productPayload documents the wire form for swagger; bodies are decoded
// strictly by products.Deserialize.
type productPayload struct {
	Name        string `json:"name" example:"Fedora"`
	Description string `json:"description" example:"A red hat"`
	Price       string `json:"price" example:"12.50"`
	Available   bool   `json:"available" example:"true"`
	Category    string `json:"category" example:"CLOTHS"`
}

type errorResponse struct {
	Error string `json:"error" example:"product not found"`
}

// CreateProduct godoc
// @Summary      Create a new product
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        body  body      productPayload  true  "Product data"
// @Success      201   {object}  products.Product
// @Header       201   {string}  Location  "URL of the created product"
// @Failure      400   {object}  errorResponse
// @Failure      413   {object}  errorResponse
// @Failure      415   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /products [post]
func (h *Handler) CreateProduct(c *gin.Context) {
	input, err := readProduct(c)
	if err != nil {
		h.fail(c, err, "failed to create product")
		return
	}

	product, err := h.service.CreateProduct(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err, "failed to create product")
		return
	}

	c.Header("Location", path.Join(c.Request.URL.Path, strconv.FormatInt(product.ID, 10)))
	c.JSON(http.StatusCreated, product.Serialize())
}

// GetProduct godoc
// @Summary      Get a product by ID
// @Tags         products
// @Produce      json
// @Param        id   path      int  true  "Product ID"
// @Success      200  {object}  products.Product
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /products/{id} [get]
func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.fail(c, products.ErrNotFound, "")
		return
	}

	product, found, err := h.service.FindProduct(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to get product")
		return
	}
	if !found {
		h.fail(c, products.ErrNotFound, "")
		return
	}

	c.JSON(http.StatusOK, product.Serialize())
}

// UpdateProduct godoc
// @Summary      Replace a product
// @Description  Every mutable field is replaced; omitted optional fields fall back to their defaults.
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        id    path      int             true  "Product ID"
// @Param        body  body      productPayload  true  "Product data"
// @Success      200   {object}  products.Product
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      413   {object}  errorResponse
// @Failure      415   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /products/{id} [put]
func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.fail(c, products.ErrNotFound, "")
		return
	}

	input, err := readProduct(c)
	if err != nil {
		h.fail(c, err, "failed to update product")
		return
	}

	product, err := h.service.UpdateProduct(c.Request.Context(), id, input)
	if err != nil {
		h.fail(c, err, "failed to update product")
		return
	}

	c.JSON(http.StatusOK, product.Serialize())
}

// DeleteProduct godoc
// @Summary      Delete a product by ID
// @Description  Deleting a product that does not exist also succeeds.
// @Tags         products
// @Param        id   path      int  true  "Product ID"
// @Success      204
// @Failure      500  {object}  errorResponse
// @Router       /products/{id} [delete]
func (h *Handler) DeleteProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.service.DeleteProduct(c.Request.Context(), id); err != nil {
		h.fail(c, err, "failed to delete product")
		return
	}

	c.Status(http.StatusNoContent)
}

// ListProducts godoc
// @Summary      List products, optionally filtered
// @Description  Filters combine with AND. Results keep creation order.
// @Tags         products
// @Produce      json
// @Param        name       query     string  false  "Exact product name"
// @Param        category   query     string  false  "Category tag, e.g. FOOD"
// @Param        available  query     string  false  "true or false"
// @Param        price      query     string  false  "Exact price"
// @Success      200        {array}   products.Product
// @Failure      400        {object}  errorResponse
// @Failure      500        {object}  errorResponse
// @Router       /products [get]
func (h *Handler) ListProducts(c *gin.Context) {
	filter, err := parseFilter(c.Request.URL.Query())
	if err != nil {
		h.fail(c, err, "")
		return
	}

	items, err := h.service.SearchProducts(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err, "failed to get products")
		return
	}

	body := make([]map[string]any, 0, len(items))
	for _, p := range items {
		body = append(body, p.Serialize())
	}
	c.JSON(http.StatusOK, body)
}

// fail maps err to a status code. Internal errors are recorded on the gin
// context for the access log and answered with the generic message.
func (h *Handler) fail(c *gin.Context, err error, internalMessage string) {
	var verr *products.ValidationError
	switch {
	case errors.Is(err, errUnsupportedMedia):
		c.JSON(http.StatusUnsupportedMediaType, errorResponse{Error: err.Error()})
	case errors.Is(err, errBodyTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, errorResponse{Error: verr.Error()})
	case errors.Is(err, errBadQuery):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, products.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: products.ErrNotFound.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: internalMessage})
	}
}

// parseID reads the :id path parameter. Ids that cannot be valid are reported
// as absent rather than malformed.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func readProduct(c *gin.Context) (products.Product, error) {
	if c.ContentType() != contentTypeJSON {
		return products.Product{}, errUnsupportedMedia
	}

	dec := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	dec.UseNumber()

	var payload any
	var tooLarge *http.MaxBytesError
	if err := dec.Decode(&payload); err != nil {
		if errors.As(err, &tooLarge) {
			return products.Product{}, errBodyTooLarge
		}
		return products.Product{}, &products.ValidationError{Message: "request body must be valid JSON"}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if errors.As(err, &tooLarge) {
			return products.Product{}, errBodyTooLarge
		}
		return products.Product{}, &products.ValidationError{Message: "request body must hold a single JSON object"}
	}

	return products.Deserialize(payload)
}

func parseFilter(query map[string][]string) (search.Filter, error) {
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var f search.Filter
	for _, key := range keys {
		values := query[key]
		if len(values) != 1 {
			return search.Filter{}, fmt.Errorf("%w: %s must be given once", errBadQuery, key)
		}
		raw := values[0]

		switch key {
		case queryName:
			name := raw
			f.Name = &name
		case queryCategory:
			category, err := products.ParseCategory(raw)
			if err != nil {
				return search.Filter{}, fmt.Errorf("%w: category must be an upper-case tag like FOOD", errBadQuery)
			}
			f.Category = &category
		case queryAvailable:
			var available bool
			switch strings.ToLower(strings.TrimSpace(raw)) {
			case "true":
				available = true
			case "false":
				available = false
			default:
				return search.Filter{}, fmt.Errorf("%w: available must be true or false", errBadQuery)
			}
			f.Available = &available
		case queryPrice:
			price, err := products.ParsePrice(raw)
			if err != nil {
				msg := "must be a non-negative number"
				var verr *products.ValidationError
				if errors.As(err, &verr) {
					msg = verr.Message
				}
				return search.Filter{}, fmt.Errorf("%w: price %s", errBadQuery, msg)
			}
			f.Price = &price
		default:
			return search.Filter{}, fmt.Errorf("%w: unknown filter %q", errBadQuery, key)
		}
	}
	return f, nil
}
