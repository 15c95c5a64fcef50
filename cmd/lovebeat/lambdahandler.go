package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/function61/gokit/logex"
	"github.com/function61/lovebeat/pkg/lambdautils"
	"github.com/function61/lovebeat/pkg/lbstate"
)

func lambdaHandler() {
	logger := logex.StandardLogger()

	restApi := newLazyRestApi(func(ctx context.Context) (*lbstate.App, error) {
		return getApp(ctx, nil, logger)
	})

	handler := func(ctx context.Context, polymorphicEvent interface{}) ([]byte, error) {
		switch event := polymorphicEvent.(type) {
		case *events.CloudWatchEvent:
			return nil, handleCloudwatchScheduledEvent(ctx, event.Time, logger)
		case *events.SNSEvent:
			return nil, handleSnsIngest(ctx, *event, logger)
		case *events.APIGatewayProxyRequest:
			return lambdautils.ServeApiGatewayProxyRequestUsingHttpHandler(
				ctx,
				event,
				restApi)
		default:
			return nil, lambdautils.ErrUnknownEventType
		}
	}

	lambda.StartHandler(lambdautils.NewMultiEventTypeHandler(handler))
}

// opens the store on first request and keeps it for as long as the Lambda container lives.
// a failed open is retried by the next request.
type lazyRestApi struct {
	open      func(ctx context.Context) (*lbstate.App, error)
	handler   http.Handler
	handlerMu sync.Mutex
}

func newLazyRestApi(open func(ctx context.Context) (*lbstate.App, error)) *lazyRestApi {
	return &lazyRestApi{open: open}
}

func (l *lazyRestApi) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler, err := l.getHandler(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	handler.ServeHTTP(w, r)
}

func (l *lazyRestApi) getHandler(ctx context.Context) (http.Handler, error) {
	l.handlerMu.Lock()
	defer l.handlerMu.Unlock()

	if l.handler == nil {
		app, err := l.open(ctx)
		if err != nil {
			return nil, err
		}

		l.handler = newRestApi(app, nil, time.Now)
	}

	return l.handler, nil
}
