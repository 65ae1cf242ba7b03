package client

import (
	"encoding/json"

	. "github.com/PelionIoT/topologyd/error"
)

// ErrorStatusCode is returned when the server responds with anything other
// than http.StatusOK
type ErrorStatusCode struct {
	StatusCode int
	Message    string
}

func (errorStatus *ErrorStatusCode) Error() string {
	return errorStatus.Message
}

// DBerror decodes the error body sent by the server, if there is one
func (errorStatus *ErrorStatusCode) DBerror() (DBerror, bool) {
	var dbError DBerror

	if err := json.Unmarshal([]byte(errorStatus.Message), &dbError); err != nil || len(dbError.Msg) == 0 {
		return DBerror{}, false
	}

	return dbError, true
}

// Is lets errors.Is match the server side error by its code
func (errorStatus *ErrorStatusCode) Is(target error) bool {
	targetError, ok := target.(DBerror)

	if !ok {
		return false
	}

	dbError, ok := errorStatus.DBerror()

	return ok && dbError.Code() == targetError.Code()
}
