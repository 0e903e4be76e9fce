package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/obcmarine/bridgegap/internal/models"
)

type APIResponse struct {
	ResponseType string `json:"responseType"`
}

type ClearanceResponse struct {
	APIResponse
	Bridge string                  `json:"bridge"`
	Span   string                  `json:"span"`
	Result *models.ClearanceResult `json:"result"`
}

type WindowsResponse struct {
	APIResponse
	Bridge  string              `json:"bridge"`
	Span    string              `json:"span"`
	Date    string              `json:"date"`
	Windows []models.SafeWindow `json:"windows"`
}

type StatusResponse struct {
	APIResponse
	StationID string              `json:"stationId"`
	Years     []models.YearStatus `json:"years"`
}

type ErrorResponse struct {
	APIResponse
	Error string `json:"error"`
}

func NewClearanceResponse(bridgeID, spanID string, result *models.ClearanceResult) *ClearanceResponse {
	return &ClearanceResponse{
		APIResponse: APIResponse{ResponseType: "clearance"},
		Bridge:      bridgeID,
		Span:        spanID,
		Result:      result,
	}
}

func NewWindowsResponse(bridgeID, spanID string, date time.Time, windows []models.SafeWindow) *WindowsResponse {
	if windows == nil {
		windows = []models.SafeWindow{}
	}
	return &WindowsResponse{
		APIResponse: APIResponse{ResponseType: "windows"},
		Bridge:      bridgeID,
		Span:        spanID,
		Date:        date.Format("2006-01-02"),
		Windows:     windows,
	}
}

func NewStatusResponse(stationID string, years []models.YearStatus) *StatusResponse {
	return &StatusResponse{
		APIResponse: APIResponse{ResponseType: "cacheStatus"},
		StationID:   stationID,
		Years:       years,
	}
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		APIResponse: APIResponse{ResponseType: "error"},
		Error:       message,
	}
}

// Response helpers
func Success(body interface{}) (events.APIGatewayProxyResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Error("Internal Server Error", http.StatusInternalServerError)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(jsonBody),
	}, nil
}

func Error(message string, statusCode int) (events.APIGatewayProxyResponse, error) {
	body, _ := json.Marshal(NewErrorResponse(message))

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(body),
	}, nil
}

type InvalidParamError struct {
	Param string
}

func (e InvalidParamError) Error() string {
	return "invalid parameter: " + e.Param
}

// ParseClearanceParams turns query-string parameters into a ClearanceQuery.
// Required: date (2006-01-02), time (15:04), boatHeight. Optional: bridge,
// span, safetyMargin, forceRefresh.
func ParseClearanceParams(params map[string]string, defaultBridge, defaultSpan string) (*models.ClearanceQuery, error) {
	dateStr, ok := params["date"]
	if !ok {
		return nil, InvalidParamError{Param: "date"}
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, InvalidParamError{Param: "date"}
	}

	timeStr, ok := params["time"]
	if !ok {
		return nil, InvalidParamError{Param: "time"}
	}
	clock, err := time.Parse("15:04", timeStr)
	if err != nil {
		return nil, InvalidParamError{Param: "time"}
	}

	boatHeight, err := parseFloatParam(params, "boatHeight", 0)
	if err != nil || boatHeight == 0 {
		return nil, InvalidParamError{Param: "boatHeight"}
	}

	safetyMargin, err := parseFloatParam(params, "safetyMargin", 0.5)
	if err != nil {
		return nil, InvalidParamError{Param: "safetyMargin"}
	}

	query := &models.ClearanceQuery{
		Date:         date,
		MinuteOfDay:  clock.Hour()*60 + clock.Minute(),
		BridgeID:     defaultBridge,
		SpanID:       defaultSpan,
		BoatHeight:   boatHeight,
		SafetyMargin: safetyMargin,
		ForceRefresh: ParseBool(params, "forceRefresh"),
	}
	if bridgeID, ok := params["bridge"]; ok {
		query.BridgeID = bridgeID
	}
	if spanID, ok := params["span"]; ok {
		query.SpanID = spanID
	}
	return query, nil
}

// ParseBool reads a boolean flag parameter the forgiving way.
func ParseBool(params map[string]string, key string) bool {
	val, ok := params[key]
	if !ok {
		return false
	}
	return val == "true" || val == "1" || val == "yes"
}

func parseFloatParam(params map[string]string, key string, defaultVal float64) (float64, error) {
	val, ok := params[key]
	if !ok {
		return defaultVal, nil
	}
	return strconv.ParseFloat(val, 64)
}
