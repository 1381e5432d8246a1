package error

import "errors"

// AsGeneric returns the first GenericError found in err's chain.
func AsGeneric(err error) (GenericError, bool) {
	var ge GenericError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
