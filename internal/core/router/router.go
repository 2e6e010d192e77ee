// Package router holds the JSON handlers of the search API.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mohammed-shakir/food-facility-search/internal/core/apperr"
	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
	"github.com/mohammed-shakir/food-facility-search/internal/core/observability"
)

const (
	HomeMessage    = "Just to check the service is working"
	MsgInvalidJSON = "invalid JSON body"
	MsgStatuses    = "statuses must be a list"

	maxBodyBytes = 1 << 20
)

// Searcher runs the two searches behind the API.
type Searcher interface {
	SearchApplicant(ctx context.Context, q model.ApplicantQuery) ([]model.FoodTruck, error)
	SearchNearby(ctx context.Context, q model.NearbyQuery) ([]model.NearbyResult, error)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type applicantRequest struct {
	Applicant string          `json:"applicant" validate:"max=200"`
	Address   string          `json:"address" validate:"max=200"`
	Statuses  json.RawMessage `json:"statuses"`
}

type nearbyRequest struct {
	Latitude  coordinate      `json:"latitude" validate:"max=32"`
	Longitude coordinate      `json:"longitude" validate:"max=32"`
	Statuses  json.RawMessage `json:"statuses"`
}

// coordinate accepts a JSON string or number and keeps it as text. A numeric
// zero counts as missing, like null; the text "0" is kept.
type coordinate string

func (c *coordinate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*c = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("coordinate: %w", err)
		}
		*c = coordinate(s)
	default:
		if f, err := strconv.ParseFloat(string(b), 64); err == nil && f == 0 {
			*c = ""
			return nil
		}
		*c = coordinate(b)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Home answers the root route so deployments can be smoke tested.
func Home() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": HomeMessage})
	}
}

func SearchApplicant(logger *slog.Logger, s Searcher) http.HandlerFunc {
	return instrument("/search_applicant", func(w http.ResponseWriter, r *http.Request) {
		var req applicantRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, logger, r, err)
			return
		}
		statuses, err := parseStatuses(req.Statuses)
		if err != nil {
			writeError(w, logger, r, err)
			return
		}

		out, err := s.SearchApplicant(r.Context(), model.ApplicantQuery{
			Applicant: req.Applicant,
			Address:   req.Address,
			Statuses:  statuses,
		})
		if err != nil {
			writeError(w, logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})
}

func SearchNearby(logger *slog.Logger, s Searcher) http.HandlerFunc {
	return instrument("/search_nearby", func(w http.ResponseWriter, r *http.Request) {
		var req nearbyRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, logger, r, err)
			return
		}
		statuses, err := parseStatuses(req.Statuses)
		if err != nil {
			writeError(w, logger, r, err)
			return
		}

		out, err := s.SearchNearby(r.Context(), model.NearbyQuery{
			Latitude:  string(req.Latitude),
			Longitude: string(req.Longitude),
			Statuses:  statuses,
		})
		if err != nil {
			writeError(w, logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})
}

func decodeBody(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, MsgInvalidJSON, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Validation(MsgInvalidJSON)
	}
	if err := validate.Struct(dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, validationMessage(err), err)
	}
	return nil
}

// parseStatuses applies the APPROVED default when the field is absent.
// A present value must be an array of strings.
func parseStatuses(raw json.RawMessage) (model.Statuses, error) {
	if len(raw) == 0 {
		return model.DefaultStatuses(), nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, apperr.Validation(MsgStatuses)
	}
	var list []string
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, MsgStatuses, err)
	}
	for _, s := range list {
		if len(s) > 32 {
			return nil, apperr.Validation("status values must be at most 32 characters")
		}
	}
	return model.NormalizeStatuses(list), nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	code, msg := apperr.StatusAndMessage(err)
	if code >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", code, "err", err)
	} else {
		logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", code, "err", err)
	}
	writeJSON(w, code, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		code = http.StatusInternalServerError
		b, _ = json.Marshal(ErrorResponse{Error: "internal server error"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(b, '\n'))
}

func instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
