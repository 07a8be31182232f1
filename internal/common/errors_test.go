package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestHTTPStatusFromError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found wrapped", fmt.Errorf("repo: %w", ErrNotFound), http.StatusNotFound},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"validation", ErrValidation, http.StatusBadRequest},
		{"field errors", validation.Errors{"end_time": errors.New("must not be before start_time")}, http.StatusBadRequest},
		{"conflict", ErrConflict, http.StatusConflict},
		{"unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), http.StatusConflict},
		{"queue down", fmt.Errorf("enqueue: %w", ErrServiceUnavailable), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HTTPStatusFromError(tc.err); got != tc.want {
				t.Fatalf("HTTPStatusFromError(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestPublicMessageHidesInternals(t *testing.T) {
	if got := PublicMessage(errors.New("dial tcp 10.0.0.1:5432: refused")); got != ErrInternalServer.Error() {
		t.Fatalf("PublicMessage = %q", got)
	}
	if got := PublicMessage(fmt.Errorf("submission 3: %w", ErrNotFound)); got != "not found" {
		t.Fatalf("PublicMessage = %q", got)
	}
}

func TestRespondWithErrValidation(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithErr(rec, validation.Errors{"slug": errors.New("must be in a valid format")})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Fields["slug"] == "" {
		t.Fatalf("fields = %v", body.Fields)
	}
}
