package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-cart/api/middleware"
	"github.com/angelmondragon/storefront-cart/api/responses"
	"github.com/angelmondragon/storefront-cart/api/validators"
	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/reconciler"
	"github.com/angelmondragon/storefront-cart/internal/views"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

const maxDropdownLines = 50

type cartPageRenderer interface {
	Render(ctx context.Context, id cart.Identity) (views.CartPage, error)
}

type dropdownRenderer interface {
	Render(ctx context.Context, id cart.Identity) (views.DropdownView, error)
}

type floatingRenderer interface {
	Render(ctx context.Context, id cart.Identity) (views.FloatingView, error)
}

type badgeReader interface {
	Count(ctx context.Context, id cart.Identity) (views.BadgeView, error)
	Refresh(ctx context.Context, id cart.Identity) (views.BadgeView, error)
}

// CartMutator is the write side of the reconciler.
type CartMutator interface {
	Add(ctx context.Context, id cart.Identity, item cart.LineItem) (*reconciler.Result, error)
	UpdateQuantity(ctx context.Context, id cart.Identity, itemID string, quantity int) (*reconciler.Result, error)
	Remove(ctx context.Context, id cart.Identity, itemID string) (*reconciler.Result, error)
	Clear(ctx context.Context, id cart.Identity) (*reconciler.Result, error)
}

type quantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, what string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, what+" unavailable"))
}

// CartPage renders the full shopping cart.
func CartPage(page cartPageRenderer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if page == nil {
			unavailable(w, r, logg, "cart view")
			return
		}
		view, err := page.Render(r.Context(), middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartDropdown renders the header preview. ?limit trims the listed lines but
// never the count or subtotal.
func CartDropdown(dropdown dropdownRenderer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dropdown == nil {
			unavailable(w, r, logg, "cart view")
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, maxDropdownLines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := dropdown.Render(r.Context(), middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if limit > 0 && len(view.Lines) > limit {
			view.Lines = view.Lines[:limit]
		}
		responses.WriteSuccess(w, view)
	}
}

func CartFloating(button floatingRenderer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if button == nil {
			unavailable(w, r, logg, "cart view")
			return
		}
		view, err := button.Render(r.Context(), middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartBadge(badge badgeReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if badge == nil {
			unavailable(w, r, logg, "cart badge")
			return
		}
		view, err := badge.Count(r.Context(), middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartBadgeRefresh(badge badgeReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if badge == nil {
			unavailable(w, r, logg, "cart badge")
			return
		}
		view, err := badge.Refresh(r.Context(), middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartAddItem accepts a line item as the product page builds it, including
// its catalog snapshot.
func CartAddItem(carts CartMutator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if carts == nil {
			unavailable(w, r, logg, "cart service")
			return
		}

		var item cart.LineItem
		if err := validators.DecodeJSONBodyLenient(r, &item); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item.ProductID = validators.SanitizeString(item.ProductID, 128)
		if item.ProductID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"productId": "is required"}))
			return
		}
		// Line ids are assigned by the mirror or the backend.
		item.ID = ""

		res, err := carts.Add(r.Context(), middleware.IdentityFromContext(r.Context()), item)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, views.NewCartPage(res))
	}
}

// CartUpdateItem sets a line's quantity; anything below one removes the line.
func CartUpdateItem(carts CartMutator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if carts == nil {
			unavailable(w, r, logg, "cart service")
			return
		}

		itemID, err := itemIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload quantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := carts.UpdateQuantity(r.Context(), middleware.IdentityFromContext(r.Context()), itemID, *payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.NewCartPage(res))
	}
}

func CartRemoveItem(carts CartMutator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if carts == nil {
			unavailable(w, r, logg, "cart service")
			return
		}

		itemID, err := itemIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := carts.Remove(r.Context(), middleware.IdentityFromContext(r.Context()), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.NewCartPage(res))
	}
}

func CartClear(carts CartMutator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if carts == nil {
			unavailable(w, r, logg, "cart service")
			return
		}

		res, err := carts.Clear(r.Context(), middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.NewCartPage(res))
	}
}

func itemIDParam(r *http.Request) (string, error) {
	itemID := validators.SanitizeString(chi.URLParam(r, "itemId"), 128)
	if itemID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	return itemID, nil
}
