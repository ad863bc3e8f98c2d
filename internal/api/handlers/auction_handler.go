package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"live-auction/internal/api/middleware"
	"live-auction/internal/domain"
	"live-auction/internal/services"
	"live-auction/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// AuctionService is the part of the lifecycle manager the admin API drives.
type AuctionService interface {
	CreateAuction(ctx context.Context, in domain.NewAuction) (*domain.Auction, error)
	AcceptAuction(ctx context.Context, auctionID string) (*domain.Auction, error)
	RejectAuction(ctx context.Context, auctionID string) (*domain.Auction, error)
	UpdateAuction(ctx context.Context, auctionID string, changes domain.AuctionChanges) (*domain.Auction, error)
	DeleteAuction(ctx context.Context, auctionID string) error
	EndAuction(ctx context.Context, auctionID string) error
	Load(ctx context.Context, auctionID string) (*domain.Auction, error)
	ListAuctions(ctx context.Context, statuses ...domain.AuctionStatus) ([]*domain.Auction, error)
	History(ctx context.Context, auctionID string) ([]*domain.LogEntry, error)
}

type AuctionHandler struct {
	auctions AuctionService
	log      logger.Logger
}

func NewAuctionHandler(auctions AuctionService, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{auctions: auctions, log: log}
}

// Register mounts the routes on a group that already authenticates.
func (h *AuctionHandler) Register(g *echo.Group) {
	g.GET("", h.ListAuctions)
	g.POST("", h.CreateAuction)
	g.GET("/:id", h.GetAuction)
	g.PUT("/:id", h.UpdateAuction)
	g.DELETE("/:id", h.DeleteAuction)
	g.POST("/:id/accept", h.AcceptAuction, middleware.RequireModerator)
	g.POST("/:id/reject", h.RejectAuction, middleware.RequireModerator)
	g.POST("/:id/end", h.EndAuction)
	g.GET("/:id/logs", h.ListLogs)
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return h.fail(c, domain.ErrUnauthorized)
	}

	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "VALIDATION_ERROR"})
	}
	if err := c.Validate(&req); err != nil {
		return h.fail(c, err)
	}

	seller := identity.UserID
	if identity.Moderator && req.Seller != "" {
		seller = req.Seller
	}
	increment := req.BidIncrement
	if increment.IsZero() {
		increment = decimal.NewFromInt(1)
	}

	auction, err := h.auctions.CreateAuction(c.Request().Context(), domain.NewAuction{
		Item:            req.Item,
		Description:     req.Description,
		StartBid:        req.StartBid,
		BidIncrement:    increment,
		StartDate:       req.StartDate,
		DurationMinutes: req.DurationMinutes,
		Seller:          seller,
	})
	if err != nil {
		return h.fail(c, err)
	}

	h.log.Info("Auction created via API", "auction_id", auction.ID, "seller", seller)
	return c.JSON(http.StatusCreated, newAuctionResponse(auction))
}

func (h *AuctionHandler) ListAuctions(c echo.Context) error {
	var statuses []domain.AuctionStatus
	if raw := c.QueryParam("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := domain.AuctionStatus(strings.TrimSpace(s))
			if !status.Valid() {
				return h.fail(c, domain.NewValidationError("status", "is not a known status"))
			}
			statuses = append(statuses, status)
		}
	}

	auctions, err := h.auctions.ListAuctions(c.Request().Context(), statuses...)
	if err != nil {
		return h.fail(c, err)
	}
	resp := make([]AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		resp = append(resp, newAuctionResponse(a))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auction, err := h.auctions.Load(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, newAuctionResponse(auction))
}

func (h *AuctionHandler) UpdateAuction(c echo.Context) error {
	auctionID := c.Param("id")
	if err := h.authorizeOwner(c, auctionID); err != nil {
		return h.fail(c, err)
	}

	var req UpdateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "VALIDATION_ERROR"})
	}
	if err := c.Validate(&req); err != nil {
		return h.fail(c, err)
	}

	auction, err := h.auctions.UpdateAuction(c.Request().Context(), auctionID, req.changes())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, newAuctionResponse(auction))
}

func (h *AuctionHandler) DeleteAuction(c echo.Context) error {
	auctionID := c.Param("id")
	if err := h.authorizeOwner(c, auctionID); err != nil {
		return h.fail(c, err)
	}
	if err := h.auctions.DeleteAuction(c.Request().Context(), auctionID); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuctionHandler) AcceptAuction(c echo.Context) error {
	auction, err := h.auctions.AcceptAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, newAuctionResponse(auction))
}

func (h *AuctionHandler) RejectAuction(c echo.Context) error {
	auction, err := h.auctions.RejectAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, newAuctionResponse(auction))
}

// EndAuction closes a live auction before its scheduled end.
func (h *AuctionHandler) EndAuction(c echo.Context) error {
	auctionID := c.Param("id")
	if err := h.authorizeOwner(c, auctionID); err != nil {
		return h.fail(c, err)
	}
	ctx := c.Request().Context()
	if err := h.auctions.EndAuction(ctx, auctionID); err != nil {
		return h.fail(c, err)
	}
	auction, err := h.auctions.Load(ctx, auctionID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, newAuctionResponse(auction))
}

func (h *AuctionHandler) ListLogs(c echo.Context) error {
	entries, err := h.auctions.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	resp := make([]LogEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, newLogEntryResponse(e))
	}
	return c.JSON(http.StatusOK, resp)
}

// authorizeOwner lets the seller and moderators through.
func (h *AuctionHandler) authorizeOwner(c echo.Context, auctionID string) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return domain.ErrUnauthorized
	}
	if identity.Moderator {
		return nil
	}
	auction, err := h.auctions.Load(c.Request().Context(), auctionID)
	if err != nil {
		return err
	}
	if auction.Seller != identity.UserID {
		return domain.ErrForbidden
	}
	return nil
}

func (h *AuctionHandler) fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		return c.JSON(status, ErrorResponse{Error: domain.ErrInternal.Error(), Code: "INTERNAL_ERROR"})
	}
	return c.JSON(status, ErrorResponse{Error: err.Error(), Code: services.ErrorCode(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAuctionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
