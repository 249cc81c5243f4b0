package modelclient

import "github.com/stockgateway/stockgateway/internal/gatewayerr"

// ToGatewayErr classifies a raw provider/SDK error (as ToolErrorType
// already does by message-matching) into the shared gatewayerr taxonomy,
// so callers above this package (the orchestrator) only ever see Kinds.
func ToGatewayErr(providerName string, err error) error {
	if err == nil {
		return nil
	}
	if ge, ok := gatewayerr.As(err); ok {
		return ge
	}
	kind := gatewayerr.ModelError
	switch classifyToolError(err) {
	case ToolErrorTimeout:
		kind = gatewayerr.Timeout
	case ToolErrorRateLimit:
		kind = gatewayerr.RateLimited
	case ToolErrorNetwork:
		kind = gatewayerr.UpstreamUnavailable
	case ToolErrorInvalidInput:
		kind = gatewayerr.InvalidRequest
	}
	return gatewayerr.New(kind, providerName+" request failed", err)
}
