package weather

import "strings"

// Condition is the general weather condition, reduced from NEA's free-text
// forecast descriptions.
type Condition string

const (
	ConditionSunny        Condition = "SUNNY"
	ConditionClearNight   Condition = "CLEAR_NIGHT"
	ConditionPartlyCloudy Condition = "PARTLY_CLOUDY"
	ConditionCloudy       Condition = "CLOUDY"
	ConditionFog          Condition = "FOG"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionRain         Condition = "RAIN"
	ConditionPouring      Condition = "POURING"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionWindy        Condition = "WINDY"
	ConditionSnow         Condition = "SNOW"
	ConditionUnknown      Condition = "UNKNOWN"
)

// descriptionConditions maps NEA forecast descriptions to conditions.
var descriptionConditions = map[string]Condition{
	"Mist":                                    ConditionFog,
	"Fog":                                     ConditionFog,
	"Hazy":                                    ConditionFog,
	"Slightly Hazy":                           ConditionFog,
	"Cloudy":                                  ConditionCloudy,
	"Overcast":                                ConditionCloudy,
	"Drizzle":                                 ConditionDrizzle,
	"Light Rain":                              ConditionDrizzle,
	"Fair":                                    ConditionSunny,
	"Fair (Day)":                              ConditionSunny,
	"Fair & Warm":                             ConditionSunny,
	"Sunny":                                   ConditionSunny,
	"Fair (Night)":                            ConditionClearNight,
	"Partly Cloudy":                           ConditionPartlyCloudy,
	"Partly Cloudy (Day)":                     ConditionPartlyCloudy,
	"Partly Cloudy (Night)":                   ConditionPartlyCloudy,
	"Light Showers":                           ConditionRain,
	"Passing Showers":                         ConditionRain,
	"Moderate Rain":                           ConditionRain,
	"Showers":                                 ConditionRain,
	"Windy, Rain":                             ConditionRain,
	"Windy, Showers":                          ConditionRain,
	"Strong Winds, Rain":                      ConditionRain,
	"Heavy Rain":                              ConditionPouring,
	"Heavy Showers":                           ConditionPouring,
	"Strong Winds, Showers":                   ConditionPouring,
	"Heavy Thundery Showers":                  ConditionThunderstorm,
	"Heavy Thundery Showers with Gusty Winds": ConditionThunderstorm,
	"Thundery Showers":                        ConditionThunderstorm,
	"Windy":                                   ConditionWindy,
	"Windy, Fair":                             ConditionWindy,
	"Windy, Cloudy":                           ConditionWindy,
	"Strong Winds":                            ConditionWindy,
	"Snow":                                    ConditionSnow,
	"Snow Showers":                            ConditionSnow,
}

// descriptionIcons maps NEA forecast descriptions to NEA's two-letter icon
// codes, used by entity adapters to build icon URLs.
var descriptionIcons = map[string]string{
	"Mist":                                    "BR",
	"Cloudy":                                  "CL",
	"Drizzle":                                 "DR",
	"Fair":                                    "FA",
	"Fair (Day)":                              "FA",
	"Fog":                                     "FG",
	"Fair (Night)":                            "FN",
	"Fair & Warm":                             "FW",
	"Heavy Thundery Showers with Gusty Winds": "HG",
	"Heavy Rain":                              "HR",
	"Heavy Showers":                           "HS",
	"Heavy Thundery Showers":                  "HT",
	"Hazy":                                    "HZ",
	"Slightly Hazy":                           "LH",
	"Light Rain":                              "LR",
	"Light Showers":                           "LS",
	"Overcast":                                "OC",
	"Partly Cloudy":                           "PC",
	"Partly Cloudy (Day)":                     "PC",
	"Partly Cloudy (Night)":                   "PN",
	"Passing Showers":                         "PS",
	"Moderate Rain":                           "RA",
	"Showers":                                 "SH",
	"Strong Winds, Showers":                   "SK",
	"Snow":                                    "SN",
	"Strong Winds, Rain":                      "SR",
	"Snow Showers":                            "SS",
	"Sunny":                                   "SU",
	"Strong Winds":                            "SW",
	"Thundery Showers":                        "TL",
	"Windy, Cloudy":                           "WC",
	"Windy":                                   "WD",
	"Windy, Fair":                             "WF",
	"Windy, Rain":                             "WR",
	"Windy, Showers":                          "WS",
}

// keywordConditions maps keywords found in the 4-day outlook's sentence-style
// forecasts. Order matters: more specific phrases are checked first.
var keywordConditions = []struct {
	keyword   string
	condition Condition
}{
	{"thundery showers", ConditionThunderstorm},
	{"partly cloudy", ConditionPartlyCloudy},
	{"rain", ConditionRain},
	{"showers", ConditionRain},
	{"fair", ConditionSunny},
	{"hazy", ConditionFog},
	{"cloudy", ConditionCloudy},
	{"overcast", ConditionCloudy},
	{"windy", ConditionWindy},
}

// MapCondition maps an exact NEA forecast description to a Condition.
// Unrecognized descriptions map to ConditionUnknown.
func MapCondition(description string) Condition {
	if c, ok := descriptionConditions[description]; ok {
		return c
	}
	return ConditionUnknown
}

// MapIconCode returns NEA's two-letter icon code for a description, empty if
// unrecognized.
func MapIconCode(description string) string {
	return descriptionIcons[description]
}

// MapForecastCondition maps a sentence-style forecast ("Afternoon thundery
// showers") to a Condition by keyword, ConditionUnknown if nothing matches.
func MapForecastCondition(forecast string) Condition {
	lower := strings.ToLower(forecast)
	for _, kc := range keywordConditions {
		if strings.Contains(lower, kc.keyword) {
			return kc.condition
		}
	}
	return ConditionUnknown
}
