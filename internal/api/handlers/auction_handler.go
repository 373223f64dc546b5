package handlers

import (
	"bidding-engine/internal/api/dto"
	"bidding-engine/internal/clock"
	"bidding-engine/internal/domain"
	"bidding-engine/internal/services"
	"bidding-engine/pkg/logger"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type AuctionHandler struct {
	auctionManager *services.AuctionManager
	bidService     *services.BidService
	sweeper        *services.LifecycleSweeper
	clock          clock.Clock
	log            logger.Logger
}

type CreateAuctionRequest struct {
	ID           string              `json:"id"`
	ProductRef   string              `json:"product_ref"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      time.Time           `json:"end_time"`
	StartPrice   decimal.Decimal     `json:"start_price"`
	MinIncrement decimal.NullDecimal `json:"min_increment"`
}

type PlaceBidRequest struct {
	BidderID string          `json:"bidder_id"`
	Amount   decimal.Decimal `json:"amount"`
}

type CancelAuctionRequest struct {
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewAuctionHandler(
	auctionManager *services.AuctionManager,
	bidService *services.BidService,
	sweeper *services.LifecycleSweeper,
	clk clock.Clock,
	log logger.Logger,
) *AuctionHandler {
	return &AuctionHandler{
		auctionManager: auctionManager,
		bidService:     bidService,
		sweeper:        sweeper,
		clock:          clk,
		log:            log,
	}
}

// Register mounts the auction routes on g, normally the /api/v1 group.
func (h *AuctionHandler) Register(g *echo.Group) {
	g.POST("/auctions", h.CreateAuction)
	g.GET("/auctions/:id", h.GetAuctionState)
	g.GET("/auctions/:id/bids", h.ListBidHistory)
	g.POST("/auctions/:id/bids", h.PlaceBid)
	g.POST("/auctions/:id/cancel", h.CancelAuction)
	if h.sweeper != nil {
		g.POST("/auctions/:id/finalize", h.FinalizeAuction)
	}
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	auction, err := h.auctionManager.CreateAuction(c.Request().Context(), services.CreateAuctionRequest{
		ID:           req.ID,
		ProductRef:   req.ProductRef,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		StartPrice:   req.StartPrice,
		MinIncrement: req.MinIncrement,
	})
	if err != nil {
		return h.errorJSON(c, err)
	}

	h.log.Info("Auction created", "auction_id", auction.ID)
	return c.JSON(http.StatusCreated, dto.AuctionState(auction.State(h.clock.Now())))
}

func (h *AuctionHandler) GetAuctionState(c echo.Context) error {
	state, err := h.bidService.GetAuctionState(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, dto.AuctionState(state))
}

// ListBidHistory accepts either an opaque cursor (?cursor=) from a previous
// page or a plain timestamp (?after=, RFC 3339).
func (h *AuctionHandler) ListBidHistory(c echo.Context) error {
	var after domain.BidCursor
	if raw := c.QueryParam("cursor"); raw != "" {
		cursor, err := services.DecodeCursor(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		after = cursor
	} else if raw := c.QueryParam("after"); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "after must be an RFC 3339 timestamp"})
		}
		after = domain.BidCursor{Timestamp: ts}
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
		}
		limit = n
	}

	page, err := h.bidService.ListBidHistory(c.Request().Context(), c.Param("id"), after, limit)
	if err != nil {
		return h.errorJSON(c, err)
	}

	resp := dto.BidPageResponse{Bids: page.Bids}
	if page.NextCursor != nil {
		resp.NextCursor = services.EncodeCursor(*page.NextCursor)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	res, err := h.bidService.PlaceBid(c.Request().Context(), c.Param("id"), req.BidderID, req.Amount)
	if err != nil {
		return h.errorJSON(c, err)
	}
	return c.JSON(bidStatusCode(res), dto.BidResult(res))
}

func bidStatusCode(res domain.BidResult) int {
	if res.Accepted {
		return http.StatusCreated
	}
	switch res.Rejection.Kind {
	case domain.RejectNotFound:
		return http.StatusNotFound
	case domain.RejectBusy:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func (h *AuctionHandler) CancelAuction(c echo.Context) error {
	var req CancelAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	auctionID := c.Param("id")
	if err := h.auctionManager.CancelAuction(c.Request().Context(), auctionID, req.Reason); err != nil {
		return h.errorJSON(c, err)
	}
	return h.GetAuctionState(c)
}

func (h *AuctionHandler) FinalizeAuction(c echo.Context) error {
	status, err := h.sweeper.Finalize(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"auction_id": c.Param("id"),
		"status":     status.String(),
	})
}

func (h *AuctionHandler) errorJSON(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrAuctionExists), errors.Is(err, domain.ErrAlreadyTerminal), errors.Is(err, domain.ErrBusy):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidAuction), errors.Is(err, domain.ErrCancelReasonRequired),
		errors.Is(err, domain.ErrBidderRequired), errors.Is(err, domain.ErrInvalidCursor),
		errors.Is(err, domain.ErrInvalidAmount):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	h.log.Error("Request failed", "path", c.Path(), "auction_id", c.Param("id"), "error", err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}
