package handlers

import (
	"errors"

	"wallet-quest-ledger/services"

	"github.com/gofiber/fiber/v2"
)

type errorStatus struct {
	err       error
	status    int
	retryable bool
}

var errorStatuses = []errorStatus{
	{services.ErrInvalidIdentityFormat, fiber.StatusBadRequest, false},
	{services.ErrInvalidDisplayName, fiber.StatusBadRequest, false},
	{services.ErrInvalidAdjustment, fiber.StatusBadRequest, false},
	{services.ErrQuestNotSubmittable, fiber.StatusBadRequest, false},
	{services.ErrInvalidSignature, fiber.StatusUnauthorized, false},
	{services.ErrSessionExpired, fiber.StatusUnauthorized, false},
	{services.ErrSessionInvalid, fiber.StatusUnauthorized, false},
	{services.ErrQuestNotFound, fiber.StatusNotFound, false},
	{services.ErrIdentityNotFound, fiber.StatusNotFound, false},
	{services.ErrAlreadyCheckedInToday, fiber.StatusConflict, false},
	{services.ErrDisplayNameTaken, fiber.StatusConflict, false},
	{services.ErrAdjustmentBelowZero, fiber.StatusConflict, false},
	{services.ErrAnswerIncorrect, fiber.StatusUnprocessableEntity, false},
	{services.ErrOracleUnavailable, fiber.StatusServiceUnavailable, true},
	{services.ErrStorageConflict, fiber.StatusServiceUnavailable, true},
}

// ErrorHandler renders errors as {"error", "cause"}. Ledger errors get their
// own status; anything else is a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	for _, es := range errorStatuses {
		if errors.Is(err, es.err) {
			body := fiber.Map{"error": es.err.Error()}
			if err.Error() != es.err.Error() {
				body["cause"] = err.Error()
			}
			if es.retryable {
				body["retryable"] = true
			}
			return c.Status(es.status).JSON(body)
		}
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
		"cause": err.Error(),
	})
}
