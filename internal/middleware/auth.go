package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/openclaw-gurusharan/ondc-seller/internal/auth"
	"github.com/openclaw-gurusharan/ondc-seller/internal/http/dto"
	"go.uber.org/zap"
)

const CtxWallet = "wallet_address"

// AuthMiddleware requires a Bearer JWT and stores the caller's wallet in Locals.
func AuthMiddleware(secret string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "missing authorization header", RequestID: GetRequestID(c)})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid authorization format", RequestID: GetRequestID(c)})
		}

		claims, err := auth.ParseJWT(secret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid or expired token", RequestID: GetRequestID(c)})
		}

		c.Locals(CtxWallet, claims.WalletAddress)
		return c.Next()
	}
}

func GetWallet(c *fiber.Ctx) string {
	w, _ := c.Locals(CtxWallet).(string)
	return w
}
