package web

import (
	"errors"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/glow/pkg/store"
)

const (
	defaultHistoryDays = 7
	maxHistoryDays     = 365
)

// handleStatus returns the full snapshot including all-time totals
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status.Snapshot(c.UserContext(), true))
}

func (s *Server) handleEmotion(c *fiber.Ctx) error {
	return c.JSON(s.status.Emotion())
}

func (s *Server) handleTouch(c *fiber.Ctx) error {
	return c.JSON(s.status.Touch())
}

// handleDailyStats returns the row for :date, or today without one
func (s *Server) handleDailyStats(c *fiber.Ctx) error {
	date := c.Params("date")
	if date == "" {
		date = store.Today()
	}
	if _, _, err := store.DayBounds(date); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(s.status.DailyStats(c.UserContext(), date))
}

// handleHistory returns ?days= daily rows ending today, oldest first
func (s *Server) handleHistory(c *fiber.Ctx) error {
	days := defaultHistoryDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryDays {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "days must be between 1 and 365",
			})
		}
		days = n
	}
	return c.JSON(s.status.History(c.UserContext(), days))
}

func (s *Server) handleTotalStats(c *fiber.Ctx) error {
	return c.JSON(s.status.TotalStats(c.UserContext()))
}

// IntensityRequest is the body of POST /api/intensity
type IntensityRequest struct {
	Intensity *float64 `json:"intensity"`
}

func (s *Server) handleSetIntensity(c *fiber.Ctx) error {
	var req IntensityRequest
	if err := c.BodyParser(&req); err != nil || req.Intensity == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": ErrInvalidIntensity.Error(),
		})
	}

	if err := s.setIntensity(*req.Intensity); err != nil {
		code := fiber.StatusBadRequest
		if errors.Is(err, ErrNoLight) {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"intensity": s.light.Intensity(),
	})
}

func (s *Server) handleGetIntensity(c *fiber.Ctx) error {
	if s.light == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": ErrNoLight.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"intensity": s.light.Intensity(),
	})
}

// setIntensity applies x; the controller clamps it into [0,1].
func (s *Server) setIntensity(x float64) error {
	if s.light == nil {
		return ErrNoLight
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return ErrInvalidIntensity
	}
	s.light.SetIntensity(x)
	return nil
}
