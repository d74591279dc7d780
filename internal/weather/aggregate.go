package weather

// Stat is the min/max/mean of one hourly series.
type Stat struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// Summary condenses the hourly arrays of a Forecast into per-field statistics.
type Summary struct {
	Hours               int     `json:"hours"`
	From                string  `json:"from,omitempty"`
	To                  string  `json:"to,omitempty"`
	Current             Current `json:"current"`
	Temperature         Stat    `json:"temperature"`
	Humidity            Stat    `json:"humidity"`
	ApparentTemperature Stat    `json:"apparentTemperature"`
	WindSpeed           Stat    `json:"windSpeed"`
}

// Summarize aggregates the hourly series of f. Series shorter than the time
// axis are summarized over the values they have; empty series yield zeros.
func Summarize(f Forecast) Summary {
	h := f.Hourly
	s := Summary{
		Hours:               len(h.Time),
		Current:             f.Current,
		Temperature:         stat(h.Temperature2m),
		Humidity:            stat(h.RelativeHumidity2m),
		ApparentTemperature: stat(h.ApparentTemperature),
		WindSpeed:           stat(h.WindSpeed10m),
	}
	if len(h.Time) > 0 {
		s.From = h.Time[0]
		s.To = h.Time[len(h.Time)-1]
	}
	return s
}

func stat(values []float64) Stat {
	if len(values) == 0 {
		return Stat{}
	}

	st := Stat{Min: values[0], Max: values[0]}
	var sum float64
	for _, v := range values {
		sum += v
		if v < st.Min {
			st.Min = v
		}
		if v > st.Max {
			st.Max = v
		}
	}
	st.Mean = sum / float64(len(values))
	return st
}
