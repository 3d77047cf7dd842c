package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/angelmondragon/storefront-cart/api/middleware"
	"github.com/angelmondragon/storefront-cart/api/responses"
	"github.com/angelmondragon/storefront-cart/api/validators"
	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/reconciler"
	"github.com/angelmondragon/storefront-cart/internal/views"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

// SessionService moves a browser session between guest and signed-in carts.
type SessionService interface {
	Login(ctx context.Context, id cart.Identity, profile json.RawMessage) (*reconciler.Result, error)
	Logout(ctx context.Context, id cart.Identity) (*reconciler.Result, error)
}

type loginRequest struct {
	User json.RawMessage `json:"user,omitempty"`
}

// SessionLogin merges the guest cart into the signed-in user's cart. The token
// comes from the Authorization header; the body optionally carries the profile.
func SessionLogin(sessions SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessions == nil {
			unavailable(w, r, logg, "session service")
			return
		}

		var payload loginRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		res, err := sessions.Login(r.Context(), middleware.IdentityFromContext(r.Context()), payload.User)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.NewCartPage(res))
	}
}

func SessionLogout(sessions SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessions == nil {
			unavailable(w, r, logg, "session service")
			return
		}

		res, err := sessions.Logout(r.Context(), middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views.NewCartPage(res))
	}
}
