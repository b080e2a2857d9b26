package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-watch-bids/internal/bids"
	"github.com/ariefcatur/go-watch-bids/internal/cart"
	"github.com/ariefcatur/go-watch-bids/internal/redisx"
)

type bidService interface {
	PlaceBid(ctx context.Context, in bids.PlaceInput) (bids.Bid, bool, error)
	Act(ctx context.Context, bidID string, cmd bids.Command) (bids.Bid, error)
	GetBid(ctx context.Context, userID, bidID string) (bids.Bid, error)
	ListForListing(ctx context.Context, userID, listingID string) ([]bids.Bid, error)
}

type cartService interface {
	AddFromBid(ctx context.Context, userID, bidID string) (cart.LineItem, error)
	AddListing(ctx context.Context, userID, listingID string) (cart.LineItem, error)
	Cart(ctx context.Context, userID string) ([]cart.LineItem, error)
}

type feedReader interface {
	List(ctx context.Context, userID string, limit int) ([]redisx.Notification, error)
}

type Handler struct {
	Bids    bidService
	Cart    cartService
	Feed    feedReader
	Timeout time.Duration
}

type placeBidReq struct {
	ListingID string          `json:"listing_id" validate:"required,max=64"`
	Amount    decimal.Decimal `json:"amount"`
	Comment   string          `json:"comment" validate:"max=2000"`
}

type counterReq struct {
	Amount  decimal.Decimal `json:"amount"`
	Comment string          `json:"comment" validate:"max=2000"`
}

type commentReq struct {
	Comment string `json:"comment" validate:"max=2000"`
}

type addFromBidReq struct {
	BidID string `json:"bid_id" validate:"required,max=64"`
}

type addListingReq struct {
	ListingID string `json:"listing_id" validate:"required,max=64"`
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(UserID)

		r.Post("/bids", h.placeBid)
		r.Get("/bids/{id}", h.getBid)
		r.Post("/bids/{id}/counter", h.counter)
		r.Post("/bids/{id}/accept", h.act(bids.ActionAccept))
		r.Post("/bids/{id}/reject", h.act(bids.ActionReject))
		r.Post("/bids/{id}/cancel", h.act(bids.ActionCancel))
		r.Get("/listings/{id}/bids", h.listingBids)

		r.Post("/cart/add-from-bid", h.addFromBid)
		r.Post("/cart/items", h.addListing)
		r.Get("/cart", h.getCart)

		r.Get("/notifications", h.notifications)
	})
}

func (h *Handler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	t := h.Timeout
	if t <= 0 {
		t = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), t)
}

func (h *Handler) placeBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidReq
	if err := decode(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	b, created, err := h.Bids.PlaceBid(ctx, bids.PlaceInput{
		ListingID:      req.ListingID,
		BidderID:       userID(r),
		Amount:         req.Amount,
		Comment:        req.Comment,
		IdempotencyKey: r.Header.Get(headerIdempotencyKey),
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	code := http.StatusCreated
	if !created {
		code = http.StatusOK
	}
	writeJSON(ctx, w, code, b)
}

func (h *Handler) counter(w http.ResponseWriter, r *http.Request) {
	var req counterReq
	if err := decode(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	h.apply(w, r, bids.Command{Action: bids.ActionCounter, Amount: req.Amount, Comment: req.Comment})
}

// act serves accept, reject and cancel. The body is optional and may carry a comment.
func (h *Handler) act(action bids.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req commentReq
		if err := decodeOptional(r, &req); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		h.apply(w, r, bids.Command{Action: action, Comment: req.Comment})
	}
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, cmd bids.Command) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	cmd.ActorID = userID(r)
	b, err := h.Bids.Act(ctx, chi.URLParam(r, "id"), cmd)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, b)
}

func (h *Handler) getBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	b, err := h.Bids.GetBid(ctx, userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, b)
}

func (h *Handler) listingBids(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	bs, err := h.Bids.ListForListing(ctx, userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, bs)
}

func (h *Handler) addFromBid(w http.ResponseWriter, r *http.Request) {
	var req addFromBidReq
	if err := decode(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	item, err := h.Cart.AddFromBid(ctx, userID(r), req.BidID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, item)
}

func (h *Handler) addListing(w http.ResponseWriter, r *http.Request) {
	var req addListingReq
	if err := decode(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	item, err := h.Cart.AddListing(ctx, userID(r), req.ListingID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, item)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	items, err := h.Cart.Cart(ctx, userID(r))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, items)
}

func (h *Handler) notifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ns, err := h.Feed.List(ctx, userID(r), limit)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, ns)
}
