package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
	"github.com/onepass-ch/onepass-sub008/internal/core/pass"
	"github.com/onepass-ch/onepass-sub008/internal/core/usecases"
)

type issuePassRequest struct {
	UID string `json:"uid"`
}

type passResponse struct {
	Pass   *domain.Pass `json:"pass"`
	Token  string       `json:"token"`
	Status string       `json:"status"`
}

// IssuePassHandler creates and signs a pass for a user. Requires an
// operator token.
func IssuePassHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req issuePassRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.UID == "" {
			return errBadRequest(c, "uid is required")
		}

		p, err := deps.Passes.Issue(c.Context(), req.UID)
		if err != nil {
			return errInternal(c, err.Error())
		}

		return c.Status(fiber.StatusCreated).JSON(passResponse{
			Pass:   p,
			Token:  deps.Passes.Token(p),
			Status: pass.StatusText(*p),
		})
	}
}

// GetPassHandler returns the stored pass for a user, with its rendered
// token and display status.
func GetPassHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid := c.Params("uid")
		if uid == "" {
			return errBadRequest(c, "uid is required")
		}

		p, err := deps.Passes.GetByUID(c.Context(), uid)
		if err != nil {
			return errNotFound(c, "pass not found")
		}

		return c.JSON(fiber.Map{
			"pass":         p,
			"token":        deps.Passes.Token(p),
			"status":       pass.StatusText(*p),
			"issued_at":    pass.FormatIssuedAt(*p),
			"last_scanned": pass.FormatLastScanned(*p, time.Now()),
		})
	}
}

type tokenRequest struct {
	Token string `json:"token"`
}

// DecodePassHandler parses a scanned token without signature or
// revocation checks. Used by devices to show pass contents offline.
func DecodePassHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req tokenRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Token == "" {
			return errBadRequest(c, "token is required")
		}

		p, err := deps.Passes.DecodeToken(req.Token)
		if err != nil {
			if errors.Is(err, usecases.ErrPassIncomplete) {
				// Shape-valid but missing required fields; return what
				// decoded so the caller can inspect it.
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
					"pass":  p,
					"error": "pass is incomplete",
				})
			}
			return errBadRequest(c, err.Error())
		}

		return c.JSON(fiber.Map{
			"pass":   p,
			"status": pass.StatusText(p),
		})
	}
}

// VerifyPassHandler decodes a token and checks its signature and
// revocation state against the stored pass.
func VerifyPassHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req tokenRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Token == "" {
			return errBadRequest(c, "token is required")
		}

		p, err := deps.Passes.VerifyToken(c.Context(), req.Token)
		switch {
		case err == nil:
			return c.JSON(fiber.Map{"valid": true, "pass": p})
		case errors.Is(err, usecases.ErrPassRevoked):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"valid": false,
				"pass":  p,
				"error": "pass has been revoked",
			})
		case errors.Is(err, pass.ErrBadSignature), errors.Is(err, pass.ErrUnknownKey):
			return errUnprocessable(c, err.Error())
		default:
			return errBadRequest(c, err.Error())
		}
	}
}

type scanRequest struct {
	Token    string `json:"token"`
	EventID  string `json:"event_id"`
	DeviceID string `json:"device_id"`
}

// RecordScanHandler verifies a token and records the scan outcome.
// Requires an operator token. The scan is recorded whether or not the
// pass verifies; the result field carries the outcome.
func RecordScanHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req scanRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Token == "" {
			return errBadRequest(c, "token is required")
		}

		scan, err := deps.Passes.RecordScan(c.Context(), req.Token, req.EventID, req.DeviceID)
		if err != nil && scan == nil {
			return errInternal(c, err.Error())
		}

		status := fiber.StatusOK
		if scan.Result != domain.ScanAccepted {
			status = fiber.StatusUnprocessableEntity
		}
		return c.Status(status).JSON(scan)
	}
}

// EventScansHandler returns recent scan events for an event. Requires
// an operator token.
func EventScansHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		eventID := c.Params("id")
		if eventID == "" {
			return errBadRequest(c, "event id is required")
		}
		limit := c.QueryInt("limit", 50)
		if limit <= 0 || limit > 500 {
			limit = 50
		}

		scans, err := deps.Passes.RecentScans(c.Context(), eventID, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(scans)
	}
}

// RevokePassHandler marks a pass as revoked. Requires an operator token.
func RevokePassHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid := c.Params("uid")
		if uid == "" {
			return errBadRequest(c, "uid is required")
		}

		if err := deps.Passes.Revoke(c.Context(), uid); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
