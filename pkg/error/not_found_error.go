package error

import "net/http"

type NotFoundError string

func (err NotFoundError) Error() string {
	return string(err)
}

func (err NotFoundError) ErrCode() string {
	return "NOT_FOUND_ERROR"
}

func (err NotFoundError) StatusCode() int {
	return http.StatusNotFound
}

// SessionNotFoundError is returned to the provider when a webhook names an unregistered session.
type SessionNotFoundError string

func (err SessionNotFoundError) Error() string {
	return string(err)
}

func (err SessionNotFoundError) ErrCode() string {
	return "SESSION_NOT_FOUND"
}

func (err SessionNotFoundError) StatusCode() int {
	return http.StatusNotFound
}
