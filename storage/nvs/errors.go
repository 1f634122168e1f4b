package nvs

import "errors"

var errWriteFailed = errors.New("nvs: write failed")
