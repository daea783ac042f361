package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type catalogReq struct {
	Kind         ItemKind        `json:"kind" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	DurationMins int             `json:"duration_minutes"`
	ServiceIDs   []string        `json:"service_ids"`
	Active       *bool           `json:"active"`
}

func (r catalogReq) apply(it *CatalogItem) {
	it.Kind = r.Kind
	it.Name = strings.TrimSpace(r.Name)
	it.Description = r.Description
	it.Price = r.Price
	it.DurationMins = r.DurationMins
	it.ServiceIDs = r.ServiceIDs
	it.Active = r.Active == nil || *r.Active
}

// normalizeItem checks an item before it is stored. A combo without an explicit
// duration takes the sum of its services; products never take time.
func (a *App) normalizeItem(ctx context.Context, it *CatalogItem) error {
	if it.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	if it.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	switch it.Kind {
	case KindService:
		it.ServiceIDs = nil
		if it.DurationMins <= 0 {
			return fmt.Errorf("%w: service needs a positive duration", ErrInvalidInput)
		}
	case KindCombo:
		if len(it.ServiceIDs) == 0 {
			return fmt.Errorf("%w: combo needs at least one service", ErrInvalidInput)
		}
		sum := 0
		for _, id := range it.ServiceIDs {
			svc, err := a.Store.GetCatalogItem(ctx, id)
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: unknown service %s", ErrInvalidInput, id)
			}
			if err != nil {
				return err
			}
			if svc.Kind != KindService {
				return fmt.Errorf("%w: %s is not a service", ErrInvalidInput, id)
			}
			sum += svc.DurationMins
		}
		if it.DurationMins <= 0 {
			it.DurationMins = sum
		}
	case KindProduct:
		it.ServiceIDs = nil
		it.DurationMins = 0
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, it.Kind)
	}
	return nil
}

// GET /api/catalog (public: active only; ?all=1 for the barber; ?kind= filters)
func (a *App) ListCatalogHandler(c *gin.Context) {
	activeOnly := c.Query("all") != "1" || !isAdmin(c)
	items, err := a.Store.ListCatalog(c.Request.Context(), activeOnly)
	if err != nil {
		a.fail(c, err)
		return
	}
	out := []CatalogItem{}
	kind := ItemKind(c.Query("kind"))
	for _, it := range items {
		if kind == "" || it.Kind == kind {
			out = append(out, it)
		}
	}
	c.JSON(http.StatusOK, out)
}

// POST /api/catalog
func (a *App) CreateCatalogItemHandler(c *gin.Context) {
	var req catalogReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	now := a.Now()
	it := CatalogItem{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	req.apply(&it)
	if err := a.normalizeItem(ctx, &it); err != nil {
		a.fail(c, err)
		return
	}
	if err := a.Store.CreateCatalogItem(ctx, &it); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

// PUT /api/catalog/:id
func (a *App) UpdateCatalogItemHandler(c *gin.Context) {
	var req catalogReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	it, err := a.Store.GetCatalogItem(ctx, c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	req.apply(&it)
	it.UpdatedAt = a.Now()
	if err := a.normalizeItem(ctx, &it); err != nil {
		a.fail(c, err)
		return
	}
	if err := a.Store.UpdateCatalogItem(ctx, &it); err != nil {
		a.fail(c, err)
		return
	}
	// durations feed the slot lists
	a.cache().InvalidateAll(ctx)
	c.JSON(http.StatusOK, it)
}

// DELETE /api/catalog/:id
func (a *App) DeleteCatalogItemHandler(c *gin.Context) {
	ctx := c.Request.Context()
	if err := a.Store.DeleteCatalogItem(ctx, c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	a.cache().InvalidateAll(ctx)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
