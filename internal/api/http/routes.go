package httpapi

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-dashboard/internal/assistant"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

var validate = validator.New()

// Dependencies are the services the HTTP layer exposes.
type Dependencies struct {
	Weather   *weather.Service
	Dashboard *weather.View
	Assistant *assistant.Assistant
	Cities    weather.Catalog
	Geocoder  weather.Geocoder // optional
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	v1 := app.Group("/api/v1")

	v1.Get("/cities", func(c *fiber.Ctx) error {
		return c.JSON(deps.Cities)
	})

	v1.Get("/weather", func(c *fiber.Ctx) error {
		q, err := parseCoordinateQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return writeResult(c, deps.Weather.Resolve(c.UserContext(), q.Lat, q.Lon))
	})

	v1.Get("/weather/city/:id", func(c *fiber.Ctx) error {
		city, ok := deps.Cities.Find(c.Params("id"))
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "unknown city")
		}
		return writeResult(c, deps.Weather.Resolve(c.UserContext(), city.Latitude, city.Longitude))
	})

	v1.Get("/weather/summary", func(c *fiber.Ctx) error {
		q, err := parseCoordinateQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		res := deps.Weather.Resolve(c.UserContext(), q.Lat, q.Lon)
		if res.State != weather.StateSuccess {
			return fiber.NewError(fiber.StatusBadGateway, res.Error)
		}
		return c.JSON(fiber.Map{
			"summary":  weather.Summarize(*res.Data),
			"degraded": res.Degraded,
			"advisory": res.Advisory,
			"cachedAt": res.CachedAt,
		})
	})

	v1.Get("/dashboard", func(c *fiber.Ctx) error {
		return c.JSON(deps.Dashboard.Snapshot())
	})

	v1.Post("/dashboard/select", func(c *fiber.Ctx) error {
		var body selectBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		city, err := body.resolve(deps.Cities)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snap, applied := deps.Dashboard.Load(c.UserContext(), city.Latitude, city.Longitude)
		if !applied {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"superseded": true,
				"dashboard":  snap,
			})
		}
		status := fiber.StatusOK
		if snap.State == weather.StateError {
			status = fiber.StatusBadGateway
		}
		return c.Status(status).JSON(snap)
	})

	v1.Post("/assistant/chat", func(c *fiber.Ctx) error {
		var body chatBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		// The limiter runs before anything that could reach an upstream service.
		reply, ok, err := deps.Assistant.Admit(body.Message)
		if err != nil {
			if errors.Is(err, assistant.ErrEmptyMessage) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return err
		}
		if !ok {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(ceilSeconds(reply.RetryAfter.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(reply)
		}

		city, err := resolveChatCity(c, deps, body)
		if err != nil {
			return err
		}

		// Missing weather is not fatal; the assistant answers with N/A values.
		var forecast *weather.Forecast
		if res := deps.Weather.Resolve(c.UserContext(), city.Latitude, city.Longitude); res.State == weather.StateSuccess {
			forecast = res.Data
		}

		reply = deps.Assistant.Answer(c.UserContext(), reply, assistant.ChatRequest{
			Message:  body.Message,
			CityName: city.Name,
			Weather:  forecast,
		})
		if !reply.Success {
			return c.Status(fiber.StatusBadGateway).JSON(reply)
		}
		return c.JSON(reply)
	})

	v1.Get("/assistant/quota", func(c *fiber.Ctx) error {
		limit, remaining, retryAfter := deps.Assistant.Quota()
		return c.JSON(fiber.Map{
			"limit":             limit,
			"remaining":         remaining,
			"retryAfterSeconds": ceilSeconds(retryAfter.Seconds()),
		})
	})
}

// writeResult maps an orchestrator result to a response. Degraded results are
// still successes; the advisory travels in the body.
func writeResult(c *fiber.Ctx, res weather.Result) error {
	if res.State != weather.StateSuccess {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"state": res.State,
			"error": res.Error,
			"data":  nil,
		})
	}
	return c.JSON(fiber.Map{
		"state":     res.State,
		"data":      res.Data,
		"degraded":  res.Degraded,
		"advisory":  res.Advisory,
		"fromCache": res.FromCache,
		"cachedAt":  res.CachedAt,
	})
}

func resolveChatCity(c *fiber.Ctx, deps Dependencies, body chatBody) (weather.City, error) {
	if body.CityID != "" {
		city, ok := deps.Cities.Find(body.CityID)
		if !ok {
			return weather.City{}, fiber.NewError(fiber.StatusNotFound, "unknown city")
		}
		return city, nil
	}
	if body.Latitude != nil && body.Longitude != nil {
		return weather.City{Name: body.CityName, Latitude: *body.Latitude, Longitude: *body.Longitude}, nil
	}
	if city, ok := deps.Cities.Find(body.CityName); ok {
		return city, nil
	}
	if deps.Geocoder != nil && body.CityName != "" {
		city, err := deps.Geocoder.Lookup(c.UserContext(), body.CityName)
		if err == nil {
			return city, nil
		}
		return weather.City{}, fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return weather.City{}, fiber.NewError(fiber.StatusBadRequest, "cityId, a known cityName, or latitude and longitude are required")
}

func ceilSeconds(s float64) int {
	n := int(s)
	if float64(n) < s {
		n++
	}
	return n
}

// ErrorHandler renders every handler error as {"error": true, "message": ...}.
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
