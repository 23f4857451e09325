package weather

// Condition is the human form of a WMO weather code.
type Condition struct {
	Description string
	Icon        string
}

// UnknownCondition is returned for codes outside the table.
var UnknownCondition = Condition{Description: "Unknown conditions", Icon: "🌡️"}

var wmoConditions = map[int]Condition{
	0:  {"Clear sky", "☀️"},
	1:  {"Mainly clear", "🌤️"},
	2:  {"Partly cloudy", "⛅"},
	3:  {"Overcast", "☁️"},
	45: {"Fog", "🌫️"},
	48: {"Icy fog", "🌫️"},
	51: {"Light drizzle", "🌦️"},
	53: {"Drizzle", "🌦️"},
	55: {"Heavy drizzle", "🌦️"},
	61: {"Light rain", "🌧️"},
	63: {"Rain", "🌧️"},
	65: {"Heavy rain", "🌧️"},
	71: {"Light snow", "🌨️"},
	73: {"Snow", "🌨️"},
	75: {"Heavy snow", "🌨️"},
	77: {"Snow grains", "🌨️"},
	80: {"Rain showers", "🌦️"},
	81: {"Moderate rain showers", "🌦️"},
	82: {"Heavy rain showers", "🌦️"},
	85: {"Snow showers", "🌨️"},
	86: {"Heavy snow showers", "🌨️"},
	95: {"Thunderstorm", "⛈️"},
	96: {"Thunderstorm w/ hail", "⛈️"},
	99: {"Thunderstorm w/ hail", "⛈️"},
}

// Translate maps a WMO weather code to its description and icon. Unknown codes
// map to UnknownCondition.
func Translate(code int) Condition {
	if c, ok := wmoConditions[code]; ok {
		return c
	}
	return UnknownCondition
}

// KnownCodes returns the codes with a fixed translation, in ascending order.
func KnownCodes() []int {
	return []int{0, 1, 2, 3, 45, 48, 51, 53, 55, 61, 63, 65, 71, 73, 75, 77, 80, 81, 82, 85, 86, 95, 96, 99}
}
