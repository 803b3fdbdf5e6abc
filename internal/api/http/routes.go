package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/airquality/internal/airquality"
	"github.com/i474232898/airquality/internal/location"
	"github.com/i474232898/airquality/internal/screen"
	"github.com/i474232898/airquality/internal/store"
)

var validate = validator.New()

// Screen is the part of the main screen exposed over HTTP.
type Screen interface {
	View() (screen.View, bool)
	Refresh(ctx context.Context) error
	PickLocation(ctx context.Context, lat, lon float64) error
	Closed() bool
}

// History reads stored snapshots.
type History interface {
	GetRange(ctx context.Context, loc airquality.Location, from, to time.Time) ([]airquality.Snapshot, error)
}

// ErrorHandler renders every error as {"error":true,"message":...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterMetrics serves the gatherer in Prometheus text format on /metrics.
func RegisterMetrics(app *fiber.App, gatherer prometheus.Gatherer) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, scr Screen, history History) {
	v1 := app.Group("/api/v1")

	v1.Use(func(c *fiber.Ctx) error {
		if scr.Closed() {
			return fiber.NewError(fiber.StatusGone, "screen has been closed")
		}
		return c.Next()
	})

	v1.Get("/air/current", func(c *fiber.Ctx) error {
		view, ok := scr.View()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no air quality data yet")
		}
		return c.JSON(view)
	})

	v1.Get("/air/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc := req.Location.toLocation()
		snapshots, err := history.GetRange(c.UserContext(), loc, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no air quality history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch air quality history")
		}

		return c.JSON(fiber.Map{
			"location":  loc,
			"from":      req.From,
			"to":        req.To,
			"snapshots": snapshots,
		})
	})

	v1.Post("/location", func(c *fiber.Ctx) error {
		var body locationQuery
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := scr.PickLocation(c.UserContext(), *body.Latitude, *body.Longitude); err != nil {
			return updateError(err)
		}
		return currentView(c, scr)
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		if err := scr.Refresh(c.UserContext()); err != nil {
			return updateError(err)
		}
		return currentView(c, scr)
	})

	v1.Get("/severity", func(c *fiber.Ctx) error {
		raw := c.Query("index")
		if raw == "" {
			return fiber.NewError(fiber.StatusBadRequest, "index query parameter is required")
		}
		index, err := strconv.Atoi(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "index must be an integer")
		}
		return c.JSON(fiber.Map{
			"index":    index,
			"severity": airquality.SeverityFor(index),
		})
	})
}

func currentView(c *fiber.Ctx, scr Screen) error {
	view, ok := scr.View()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no air quality data yet")
	}
	return c.JSON(view)
}

// updateError maps screen update failures onto HTTP statuses.
func updateError(err error) *fiber.Error {
	switch {
	case errors.Is(err, screen.ErrClosed),
		errors.Is(err, location.ErrPermissionDenied),
		errors.Is(err, location.ErrServiceUnavailable),
		errors.Is(err, location.ErrUserCancelled):
		return fiber.NewError(fiber.StatusGone, err.Error())
	case errors.Is(err, location.ErrPositionUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, airquality.ErrNetworkFailure):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to update air quality")
	}
}

// locationQuery identifies a coordinate pair. Pointers keep 0 distinguishable
// from a missing value.
type locationQuery struct {
	Latitude  *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"required,min=-180,max=180"`
}

func (l locationQuery) toLocation() airquality.Location {
	return airquality.Location{
		Lat: *l.Latitude,
		Lon: *l.Longitude,
	}
}

func parseLocationQuery(c *fiber.Ctx) (locationQuery, error) {
	var q locationQuery

	for _, p := range []struct {
		name string
		dst  **float64
	}{
		{"lat", &q.Latitude},
		{"lon", &q.Longitude},
	} {
		raw := c.Query(p.name)
		if raw == "" {
			return q, errors.New("lat and lon query parameters are required")
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, errors.New("lat and lon must be numbers")
		}
		*p.dst = &v
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Location locationQuery
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	h.Location = loc

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
