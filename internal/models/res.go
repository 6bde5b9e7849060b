package models

// ErrorBody is the JSON body of every failed request and of a failed one-shot sweep.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func ErrorResponse(err string) ErrorBody {
	return ErrorBody{Error: err}
}
