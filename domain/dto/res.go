package dto

// Res is the envelope used for error responses.
type Res struct {
	ResponseCode    string      `json:"responseCode"`
	ResponseMessage string      `json:"responseMessage"`
	Errors          []string    `json:"errors,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}
