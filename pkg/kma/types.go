package kma

import "encoding/json"

// apiResponse is the common envelope of the KMA API Hub services.
type apiResponse struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items struct {
				Item json.RawMessage `json:"item"`
			} `json:"items"`
			TotalCount int `json:"totalCount"`
		} `json:"body"`
	} `json:"response"`
}

const resultOK = "00"

// villageItem is one category/time cell of the short-range gridded
// forecast (getVilageFcst). All values arrive as strings.
type villageItem struct {
	BaseDate  string `json:"baseDate"`
	BaseTime  string `json:"baseTime"`
	Category  string `json:"category"`
	FcstDate  string `json:"fcstDate"`
	FcstTime  string `json:"fcstTime"`
	FcstValue string `json:"fcstValue"`
}

// Short-range forecast categories used by the client.
const (
	catTemp     = "TMP" // 1-hour temperature, °C
	catHumidity = "REH" // relative humidity, %
	catWind     = "WSD" // wind speed, m/s
	catPrecip   = "PCP" // 1-hour precipitation, mm (may be "강수없음")
	catPrecipP  = "POP" // precipitation probability, %
	catTmax     = "TMX" // daily maximum temperature, °C
	catTmin     = "TMN" // daily minimum temperature, °C
)

// midItem holds one record of the mid-range services (getMidLandFcst,
// getMidTa). Field names encode the day offset ("wf4Am", "taMax5", ...),
// so the item is kept as a loose map and probed by key.
type midItem map[string]any
