package logger

import "errors"

// businessError is implemented by domain errors. Declared here so the logger
// does not import the domain package.
type businessError interface {
	error
	Business() bool
}

func isBusinessError(err error) bool {
	var b businessError
	return errors.As(err, &b) && b.Business()
}
