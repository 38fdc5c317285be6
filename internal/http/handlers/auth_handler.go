package handlers

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/openclaw-gurusharan/ondc-seller/internal/auth"
	"github.com/openclaw-gurusharan/ondc-seller/internal/config"
	"github.com/openclaw-gurusharan/ondc-seller/internal/http/dto"
	"go.uber.org/zap"
)

type AuthHandler struct {
	cfg    *config.Config
	nonces auth.NonceStore
	log    *zap.Logger
}

func NewAuthHandler(cfg *config.Config, nonces auth.NonceStore, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, nonces: nonces, log: log}
}

// Challenge issues a single-use nonce and the message the wallet must sign.
func (h *AuthHandler) Challenge(c *fiber.Ctx) error {
	var req dto.ChallengeRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid request body")
	}
	wallet := strings.TrimSpace(req.WalletAddress)
	if !common.IsHexAddress(wallet) {
		return respondError(c, fiber.StatusBadRequest, "wallet_address must be a 0x-prefixed hex address")
	}
	wallet = auth.NormalizeWallet(wallet)

	nonce, err := h.nonces.Issue(c.UserContext(), wallet)
	if err != nil {
		h.log.Error("failed to issue nonce", zap.String("wallet", wallet), zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "internal server error")
	}

	now := time.Now().UTC()
	return c.JSON(dto.ChallengeResponse{
		WalletAddress: wallet,
		Nonce:         nonce,
		Message:       auth.ChallengeMessage(h.cfg.AuthDomain, wallet, nonce, now.Unix()),
		Timestamp:     now.Unix(),
		ExpiresAt:     now.Add(h.cfg.AuthNonceTTL),
	})
}

// WalletAuth exchanges a signed challenge for a session token. In dev mode a bare
// wallet_address is accepted.
func (h *AuthHandler) WalletAuth(c *fiber.Ctx) error {
	var req dto.AuthWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid request body")
	}

	wallet := strings.TrimSpace(req.WalletAddress)
	if wallet == "" {
		return respondError(c, fiber.StatusBadRequest, "wallet_address is required")
	}

	switch {
	case req.Signature == "" && h.cfg.AuthDevMode:
		wallet = auth.NormalizeWallet(wallet)
		h.log.Warn("issuing unsigned dev token", zap.String("wallet", wallet))
	case req.Signature == "":
		return respondError(c, fiber.StatusBadRequest, "signature is required")
	default:
		verified, err := auth.VerifyWalletProof(h.cfg.AuthDomain, auth.WalletProof{
			Address:   wallet,
			Nonce:     req.Nonce,
			Timestamp: req.Timestamp,
			Signature: req.Signature,
		}, time.Now())
		if err != nil {
			return respondError(c, fiber.StatusUnauthorized, err.Error())
		}

		ok, err := h.nonces.Consume(c.UserContext(), req.Nonce, verified)
		if err != nil {
			h.log.Error("failed to consume nonce", zap.String("wallet", verified), zap.Error(err))
			return respondError(c, fiber.StatusInternalServerError, "internal server error")
		}
		if !ok {
			return respondError(c, fiber.StatusUnauthorized, "unknown, expired or used nonce")
		}
		wallet = verified
	}

	expiresAt := time.Now().UTC().Add(h.cfg.JWTExpiration)
	token, err := auth.GenerateJWT(h.cfg.JWTSecret, wallet, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.String("wallet", wallet), zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return c.JSON(dto.AuthResponse{
		Token:         token,
		WalletAddress: wallet,
		ExpiresAt:     expiresAt,
	})
}
