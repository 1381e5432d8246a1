package error

import "net/http"

// GatewayError reports a failure talking to the WhatsApp gateway or an AI provider.
type GatewayError string

func (err GatewayError) Error() string {
	return string(err)
}

func (err GatewayError) ErrCode() string {
	return "GATEWAY_ERROR"
}

func (err GatewayError) StatusCode() int {
	return http.StatusBadGateway
}
