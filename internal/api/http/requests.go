package httpapi

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

// coordinateQuery holds query parameters for identifying a location.
type coordinateQuery struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lon float64 `validate:"gte=-180,lte=180"`
}

func parseCoordinateQuery(c *fiber.Ctx) (coordinateQuery, error) {
	var q coordinateQuery

	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" || lonStr == "" {
		return q, errors.New("lat and lon query parameters are required")
	}

	var err error
	if q.Lat, err = strconv.ParseFloat(latStr, 64); err != nil {
		return q, errors.New("lat must be a number")
	}
	if q.Lon, err = strconv.ParseFloat(lonStr, 64); err != nil {
		return q, errors.New("lon must be a number")
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// selectBody picks the dashboard location, by catalog city or by coordinates.
type selectBody struct {
	CityID    string   `json:"cityId"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

func (b selectBody) resolve(cities weather.Catalog) (weather.City, error) {
	if b.CityID != "" {
		city, ok := cities.Find(b.CityID)
		if !ok {
			return weather.City{}, errors.New("unknown city")
		}
		return city, nil
	}
	if b.Latitude == nil || b.Longitude == nil {
		return weather.City{}, errors.New("cityId or latitude and longitude are required")
	}
	if err := validate.Struct(b); err != nil {
		return weather.City{}, err
	}
	return weather.City{Latitude: *b.Latitude, Longitude: *b.Longitude}, nil
}

// chatBody is the assistant request payload.
type chatBody struct {
	Message   string   `json:"message" validate:"required,max=2000"`
	CityID    string   `json:"cityId"`
	CityName  string   `json:"cityName"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}
