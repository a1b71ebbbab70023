package algo

import "errors"

var ErrStateKeyNotFound = errors.New("requested key not found in application state")
