package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/arenahub/playground-client/internal/dispatch"
	apperrors "github.com/arenahub/playground-client/internal/errors"
)

// API is the dispatcher surface the feature wrappers use.
type API interface {
	Do(ctx context.Context, method, path string, body, out any, opts ...dispatch.Option) error
	Dispatch(ctx context.Context, method, path string, body any, opts ...dispatch.Option) (*dispatch.Response, error)
}

// Result is what feature calls hand to the UI layer. Canceled marks a call
// that was superseded or abandoned by its caller; it carries no error.
type Result[T any] struct {
	Success  bool
	Data     T
	Error    *apperrors.AppError
	Canceled bool
}

func ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func fail[T any](err error) Result[T] {
	if errors.Is(err, context.Canceled) {
		return Result[T]{Canceled: true}
	}
	if appErr, isApp := apperrors.AsAppError(err); isApp {
		return Result[T]{Error: appErr}
	}
	return Result[T]{Error: apperrors.Wrap(apperrors.ErrCodeHTTP, err.Error(), err)}
}

// call runs fn and converts its outcome into a Result.
func call[T any](fn func() (T, error)) Result[T] {
	data, err := fn()
	if err != nil {
		return fail[T](err)
	}
	return ok(data)
}

func post(ctx context.Context, api API, path string, body, out any, opts ...dispatch.Option) error {
	return api.Do(ctx, http.MethodPost, path, body, out, opts...)
}

func get(ctx context.Context, api API, path string, out any, opts ...dispatch.Option) error {
	return api.Do(ctx, http.MethodGet, path, nil, out, opts...)
}
