package lambdautils

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/apex/gateway"
	"github.com/aws/aws-lambda-go/events"
)

// runs an API Gateway proxy request through a regular http.Handler, so the same router
// serves both Lambda and the standalone server
func ServeApiGatewayProxyRequestUsingHttpHandler(
	ctx context.Context,
	proxyRequest *events.APIGatewayProxyRequest,
	httpHandler http.Handler,
) ([]byte, error) {
	request, err := gateway.NewRequest(ctx, *proxyRequest)
	if err != nil {
		return nil, err
	}

	response := gateway.NewResponse()

	httpHandler.ServeHTTP(response, request)

	proxyResponse := response.End()

	return json.Marshal(&proxyResponse)
}
