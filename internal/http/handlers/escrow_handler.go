package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/openclaw-gurusharan/ondc-seller/internal/auth"
	"github.com/openclaw-gurusharan/ondc-seller/internal/http/dto"
	"github.com/openclaw-gurusharan/ondc-seller/internal/http/schema"
	"github.com/openclaw-gurusharan/ondc-seller/internal/middleware"
	"github.com/openclaw-gurusharan/ondc-seller/internal/services"
	"go.uber.org/zap"
)

type EscrowHandler struct {
	escrowService *services.EscrowService
	log           *zap.Logger
}

func NewEscrowHandler(escrowService *services.EscrowService, log *zap.Logger) *EscrowHandler {
	return &EscrowHandler{escrowService: escrowService, log: log}
}

func (h *EscrowHandler) CreateEscrow(c *fiber.Ctx) error {
	body := c.Body()
	if err := schema.CreateEscrow.Validate(body); err != nil {
		return respondError(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.CreateEscrowRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid amount")
	}

	buyerWallet := auth.NormalizeWallet(req.BuyerWallet)
	sellerWallet := auth.NormalizeWallet(req.SellerWallet)
	escrowWallet := auth.NormalizeWallet(req.EscrowWallet)
	switch middleware.GetWallet(c) {
	case buyerWallet, sellerWallet, escrowWallet:
	default:
		return respondError(c, fiber.StatusForbidden, "caller must be one of the escrow parties")
	}

	acc, err := h.escrowService.CreateEscrow(c.UserContext(), services.CreateEscrowParams{
		OrderID:           req.OrderID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		BuyerWallet:       buyerWallet,
		BuyerName:         req.BuyerName,
		SellerWallet:      sellerWallet,
		SellerName:        req.SellerName,
		EscrowWallet:      escrowWallet,
		EscrowName:        req.EscrowName,
		BuyerAadhaarHash:  req.BuyerAadhaarHash,
		SellerAadhaarHash: req.SellerAadhaarHash,
		Metadata:          req.Metadata,
	})
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: acc})
}

// ListEscrows lists the caller's escrows. ?wallet= may only name the caller.
func (h *EscrowHandler) ListEscrows(c *fiber.Ctx) error {
	wallet := middleware.GetWallet(c)
	if q := c.Query("wallet"); q != "" && auth.NormalizeWallet(q) != wallet {
		return respondError(c, fiber.StatusForbidden, "escrows of other wallets are not visible")
	}
	accounts, err := h.escrowService.GetEscrowsByWallet(c.UserContext(), wallet)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: accounts})
}

func (h *EscrowHandler) GetEscrow(c *fiber.Ctx) error {
	id, ok := escrowID(c)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "invalid escrow id")
	}
	acc, err := h.escrowService.GetEscrow(c.UserContext(), id)
	if err != nil {
		return h.serviceError(c, err)
	}
	if acc == nil {
		return respondError(c, fiber.StatusNotFound, "escrow not found")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: acc})
}

func (h *EscrowHandler) GetTransactions(c *fiber.Ctx) error {
	id, ok := escrowID(c)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "invalid escrow id")
	}
	txs, err := h.escrowService.GetTransactions(c.UserContext(), id)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: txs})
}

func (h *EscrowHandler) GetAuditTrail(c *fiber.Ctx) error {
	id, ok := escrowID(c)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "invalid escrow id")
	}
	trail, err := h.escrowService.GetAuditTrail(c.UserContext(), id)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: trail})
}

func (h *EscrowHandler) VerifyOnChainRecord(c *fiber.Ctx) error {
	id, ok := escrowID(c)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "invalid escrow id")
	}
	verified, err := h.escrowService.VerifyOnChainRecord(c.UserContext(), id)
	if err != nil {
		return h.serviceError(c, err)
	}
	resp := dto.VerifyResponse{EscrowID: id.String(), Verified: verified}
	if verified {
		if acc, err := h.escrowService.GetEscrow(c.UserContext(), id); err == nil && acc != nil {
			resp.ChainTxHash = acc.ChainTxHash
		}
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: resp})
}

func (h *EscrowHandler) VerifyChain(c *fiber.Ctx) error {
	id, ok := escrowID(c)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "invalid escrow id")
	}
	res, err := h.escrowService.VerifyNotarizationChain(c.UserContext(), id)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}

func (h *EscrowHandler) GetNotarization(c *fiber.Ctx) error {
	id, ok := escrowID(c)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "invalid record id")
	}
	rec, err := h.escrowService.GetNotarizationRecord(c.UserContext(), id)
	if err != nil {
		return h.serviceError(c, err)
	}
	if rec == nil {
		return respondError(c, fiber.StatusNotFound, "notarization record not found")
	}
	if !hasWallet(rec.Parties, middleware.GetWallet(c)) {
		return respondError(c, fiber.StatusForbidden, "wallet is not a party to this escrow")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: rec})
}

func (h *EscrowHandler) FundEscrow(c *fiber.Ctx) error {
	id, ok := escrowID(c)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "invalid escrow id")
	}
	var req dto.FundEscrowRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid request")
	}
	acc, err := h.escrowService.FundEscrow(c.UserContext(), services.FundEscrowParams{
		EscrowID:    id,
		PayerWallet: middleware.GetWallet(c),
		Amount:      req.Amount,
	})
	return h.respondAccount(c, acc, err)
}

func (h *EscrowHandler) RequestRelease(c *fiber.Ctx) error {
	id, req, ok := h.reasonRequest(c)
	if !ok {
		return nil
	}
	acc, err := h.escrowService.RequestRelease(c.UserContext(), services.ReleaseRequestParams{
		EscrowID:        id,
		RequesterWallet: middleware.GetWallet(c),
		Reason:          req.Reason,
	})
	return h.respondAccount(c, acc, err)
}

func (h *EscrowHandler) ApproveRelease(c *fiber.Ctx) error {
	id, ok := escrowID(c)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "invalid escrow id")
	}
	var req dto.ApproveReleaseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "invalid request")
		}
	}
	approved := req.Approved == nil || *req.Approved
	acc, err := h.escrowService.ApproveRelease(c.UserContext(), services.ApprovalParams{
		EscrowID:       id,
		ApproverWallet: middleware.GetWallet(c),
		Approved:       approved,
		Reason:         req.Reason,
	})
	return h.respondAccount(c, acc, err)
}

func (h *EscrowHandler) ReleaseFunds(c *fiber.Ctx) error {
	id, ok := escrowID(c)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "invalid escrow id")
	}
	acc, err := h.escrowService.ReleaseFunds(c.UserContext(), services.ReleaseFundsParams{
		EscrowID:       id,
		ReleaserWallet: middleware.GetWallet(c),
	})
	return h.respondAccount(c, acc, err)
}

func (h *EscrowHandler) CancelEscrow(c *fiber.Ctx) error {
	id, req, ok := h.reasonRequest(c)
	if !ok {
		return nil
	}
	acc, err := h.escrowService.CancelEscrow(c.UserContext(), services.CancelEscrowParams{
		EscrowID:        id,
		CancellerWallet: middleware.GetWallet(c),
		Reason:          req.Reason,
	})
	return h.respondAccount(c, acc, err)
}

func (h *EscrowHandler) DisputeEscrow(c *fiber.Ctx) error {
	id, req, ok := h.reasonRequest(c)
	if !ok {
		return nil
	}
	acc, err := h.escrowService.DisputeEscrow(c.UserContext(), services.DisputeEscrowParams{
		EscrowID:       id,
		DisputerWallet: middleware.GetWallet(c),
		Reason:         req.Reason,
	})
	return h.respondAccount(c, acc, err)
}

// RequireParty runs before every /escrows/:id route and lets only the three parties
// through. Unknown ids pass so each route keeps its own not-found answer.
func (h *EscrowHandler) RequireParty(c *fiber.Ctx) error {
	id, ok := escrowID(c)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "invalid escrow id")
	}
	acc, err := h.escrowService.GetEscrow(c.UserContext(), id)
	if err != nil {
		return h.serviceError(c, err)
	}
	if acc != nil && !acc.HasParty(middleware.GetWallet(c)) {
		return respondError(c, fiber.StatusForbidden, "wallet is not a party to this escrow")
	}
	return c.Next()
}

func hasWallet(parties [3]string, wallet string) bool {
	for _, p := range parties {
		if p == wallet {
			return true
		}
	}
	return false
}

// reasonRequest parses the id and an optional {"reason"} body. When ok is false the error
// response has already been written.
func (h *EscrowHandler) reasonRequest(c *fiber.Ctx) (uuid.UUID, dto.ReasonRequest, bool) {
	var req dto.ReasonRequest
	id, ok := escrowID(c)
	if !ok {
		_ = respondError(c, fiber.StatusBadRequest, "invalid escrow id")
		return id, req, false
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			_ = respondError(c, fiber.StatusBadRequest, "invalid request")
			return id, req, false
		}
	}
	return id, req, true
}

func (h *EscrowHandler) respondAccount(c *fiber.Ctx, acc any, err error) error {
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: acc})
}

// serviceError maps engine error kinds to HTTP statuses.
func (h *EscrowHandler) serviceError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidState):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrUnauthorized):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrNotarization):
		status = fiber.StatusBadGateway
	}

	if status == fiber.StatusInternalServerError {
		h.log.Error("escrow request failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return respondError(c, status, "internal server error")
	}
	return respondError(c, status, err.Error())
}

func respondError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: msg, RequestID: middleware.GetRequestID(c)})
}

func escrowID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}
