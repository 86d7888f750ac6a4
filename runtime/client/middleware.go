package client

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/satishbabariya/commerce-client/internal/metrics"
	"github.com/satishbabariya/commerce-client/runtime/types"
)

// QueryEvent describes one model operation as it passes through the
// middleware chain. Result, Error, End and Duration are set once next
// returns.
type QueryEvent struct {
	Model  string
	Action types.Action
	Args   any
	// TxID is empty outside transactions.
	TxID   string
	Cached bool

	Result   any
	Error    error
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

// Middleware intercepts operations. It must call next to run the
// operation, and may replace the error next returns.
type Middleware func(ctx context.Context, event *QueryEvent, next func() error) error

// chain runs exec through middlewares in registration order.
func chain(ctx context.Context, middlewares []Middleware, event *QueryEvent, exec func() (any, error)) error {
	event.Start = time.Now()

	index := 0
	var next func() error
	next = func() error {
		if index >= len(middlewares) {
			result, err := exec()
			event.End = time.Now()
			event.Duration = event.End.Sub(event.Start)
			event.Result = result
			event.Error = err
			return err
		}
		mw := middlewares[index]
		index++
		return mw(ctx, event, next)
	}
	return next()
}

// LoggingMiddleware logs every operation through logf.
func LoggingMiddleware(logf func(format string, args ...any)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		logf("%s.%s args=%+v", event.Model, event.Action, event.Args)
		err := next()
		if err != nil {
			logf("%s.%s failed: %v", event.Model, event.Action, err)
		} else {
			logf("%s.%s completed in %v", event.Model, event.Action, event.Duration)
		}
		return err
	}
}

// TimingMiddleware reports the duration of every operation.
func TimingMiddleware(onTiming func(model string, action types.Action, d time.Duration)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if onTiming != nil {
			onTiming(event.Model, event.Action, event.Duration)
		}
		return err
	}
}

// ErrorMiddleware reports failed operations.
func ErrorMiddleware(onError func(model string, action types.Action, err error)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if err != nil && onError != nil {
			onError(event.Model, event.Action, err)
		}
		return err
	}
}

// MetricsMiddleware records operation durations and error codes in
// collectors registered with reg under namespace.
func MetricsMiddleware(namespace string, reg prometheus.Registerer) (Middleware, error) {
	m, err := metrics.New(namespace, reg)
	if err != nil {
		return nil, err
	}
	return metricsMiddleware(m), nil
}

func metricsMiddleware(m *metrics.Metrics) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		code := ""
		if err != nil {
			code = errorCode(err)
		}
		m.ObserveQuery(event.Model, string(event.Action), event.Duration, code)
		return err
	}
}

func errorCode(err error) string {
	var te *types.Error
	if errors.As(err, &te) && te.Code != "" {
		return te.Code
	}
	return "unknown"
}
