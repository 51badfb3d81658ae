package pathfinder

import (
	"errors"
	"fmt"
)

// ErrPageNotFound matches every NotFoundError through errors.Is
var ErrPageNotFound = errors.New("page not found")

// Endpoint names which end of a search an error refers to
type Endpoint string

const (
	EndpointStart Endpoint = "start"
	EndpointEnd   Endpoint = "end"
)

// NotFoundError reports a search endpoint that does not exist
type NotFoundError struct {
	Endpoint Endpoint
	Title    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s page %q not found", e.Endpoint, e.Title)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrPageNotFound
}
