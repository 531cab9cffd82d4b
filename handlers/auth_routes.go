package handlers

import (
	"strings"

	"wallet-quest-ledger/services"

	"github.com/gofiber/fiber/v2"
)

type challengeRequest struct {
	WalletAddress string `json:"wallet_address"`
}

type verifyRequest struct {
	WalletAddress string `json:"wallet_address"`
	Message       string `json:"message"`
	Signature     string `json:"signature"`
	ReferralCode  string `json:"referral_code"`
}

func SetupAuthRoutes(app fiber.Router, authService *services.AuthService) {
	auth := app.Group("/auth")

	// 🔑 Step 1: wallet asks for a message to sign
	auth.Post("/challenge", func(c *fiber.Ctx) error {
		var req challengeRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
				"cause": err.Error(),
			})
		}

		challenge, err := authService.IssueChallenge(c.UserContext(), req.WalletAddress)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"nonce":      challenge.Nonce,
			"message":    challenge.Message,
			"issued_at":  challenge.IssuedAt,
			"expires_at": challenge.ExpiresAt,
		})
	})

	// 🔐 Step 2: signed message in, session token out
	auth.Post("/verify", func(c *fiber.Ctx) error {
		var req verifyRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
				"cause": err.Error(),
			})
		}
		if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.Signature) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "message and signature are required",
			})
		}

		result, err := authService.VerifyAndAuthenticate(c.UserContext(), services.AuthRequest{
			WalletAddress: req.WalletAddress,
			Message:       req.Message,
			Signature:     req.Signature,
			ReferralCode:  req.ReferralCode,
		})
		if err != nil {
			return err
		}
		return c.JSON(result)
	})
}
