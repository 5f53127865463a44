package airquality

import "math"

// Category is the US EPA severity band of an AQI value.
type Category string

const (
	CategoryGood                        Category = "Good"
	CategoryModerate                    Category = "Moderate"
	CategoryUnhealthyForSensitiveGroups Category = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy                   Category = "Unhealthy"
	CategoryVeryUnhealthy               Category = "Very Unhealthy"
	CategoryHazardous                   Category = "Hazardous"
	CategoryUnknown                     Category = "Unknown"
)

// advisories maps categories to their health advisory text.
var advisories = map[Category]string{
	CategoryGood:                        "Air quality is satisfactory. Enjoy outdoor activities.",
	CategoryModerate:                    "Air quality is acceptable. Unusually sensitive people should consider limiting prolonged outdoor exertion.",
	CategoryUnhealthyForSensitiveGroups: "Members of sensitive groups may experience health effects. Consider reducing prolonged outdoor exertion.",
	CategoryUnhealthy:                   "Everyone may begin to experience health effects. Consider staying indoors and reducing outdoor activities.",
	CategoryVeryUnhealthy:               "Health alert: everyone may experience serious health effects. Limit outdoor exposure.",
	CategoryHazardous:                   "Health emergency: everyone may experience serious health effects. Stay indoors and avoid outdoor exposure.",
	CategoryUnknown:                     "Insufficient data for health advisory.",
}

// CategoryOf classifies an AQI value. Band upper bounds are inclusive.
func CategoryOf(aqi *float64) Category {
	if aqi == nil || math.IsNaN(*aqi) {
		return CategoryUnknown
	}

	switch v := *aqi; {
	case v <= 50:
		return CategoryGood
	case v <= 100:
		return CategoryModerate
	case v <= 150:
		return CategoryUnhealthyForSensitiveGroups
	case v <= 200:
		return CategoryUnhealthy
	case v <= 300:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}

// AdvisoryFor returns the health advisory for a category, falling back to
// the Unknown advisory for anything not in the table.
func AdvisoryFor(c Category) string {
	if msg, ok := advisories[c]; ok {
		return msg
	}
	return advisories[CategoryUnknown]
}
