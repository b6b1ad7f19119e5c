package middlewares_test

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/middlewares"
)

func TestRecover(t *testing.T) {
	t.Parallel()

	t.Run("recovers from panic and responds 500", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewTextHandler(&buf, nil))

		var recovered *middlewares.PanicError
		mw := middlewares.Recover(log, middlewares.WithRecoverHook(func(_ *http.Request, pe *middlewares.PanicError) {
			recovered = pe
		}))
		h := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("test panic")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.NotNil(t, recovered)
		require.Equal(t, "test panic", recovered.Value)
		require.NotEmpty(t, recovered.Stack)
		require.Contains(t, buf.String(), "panic recovered")
		require.Contains(t, buf.String(), "path=/boom")
		require.Contains(t, buf.String(), "stack=")

		pe, ok := middlewares.AsPanicError(error(recovered))
		require.True(t, ok)
		require.Equal(t, "panic: test panic", pe.Error())
	})

	t.Run("passes through when no panic", func(t *testing.T) {
		t.Parallel()

		h := middlewares.Recover(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("respects DisablePrintStack option", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewTextHandler(&buf, nil))

		var recovered *middlewares.PanicError
		mw := middlewares.Recover(log,
			middlewares.WithRecoverDisablePrintStack(),
			middlewares.WithRecoverHook(func(_ *http.Request, pe *middlewares.PanicError) { recovered = pe }),
		)
		h := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic(errors.New("error panic"))
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotNil(t, recovered)
		require.Nil(t, recovered.Stack)
		require.NotContains(t, buf.String(), "stack=")
	})

	t.Run("re-panics on ErrAbortHandler", func(t *testing.T) {
		t.Parallel()

		h := middlewares.Recover(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic(http.ErrAbortHandler)
		}))

		require.PanicsWithValue(t, http.ErrAbortHandler, func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})

	t.Run("custom stack size", func(t *testing.T) {
		t.Parallel()

		var recovered *middlewares.PanicError
		mw := middlewares.Recover(nil,
			middlewares.WithRecoverStackSize(64),
			middlewares.WithRecoverHook(func(_ *http.Request, pe *middlewares.PanicError) { recovered = pe }),
		)
		h := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("small") }))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotNil(t, recovered)
		require.LessOrEqual(t, len(recovered.Stack), 64)
	})
}
