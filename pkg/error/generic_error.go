package error

type GenericError interface {
	ErrCode() string
	Error() string
	StatusCode() int
}
