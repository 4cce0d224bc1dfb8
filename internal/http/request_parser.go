// Package http provides HTTP server and handler implementations.
//
// This file implements request body binding and query parameter parsing.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"ledger/internal/core"
	"ledger/internal/ingest"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// errMalformedBody marks bodies that are not valid JSON for the target type.
var errMalformedBody = errors.New("malformed request body")

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// bindAndValidate decodes the JSON body into T and validates it. An empty
// body is accepted when allowEmpty is set and yields the zero T.
func bindAndValidate[T any](r *http.Request, v *validator.Validate, allowEmpty bool) (*T, error) {
	var input T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return nil, fmt.Errorf("%w: %v", errMalformedBody, err)
		}
	}
	if err := v.Struct(input); err != nil {
		return nil, err
	}
	return &input, nil
}

// bindError renders a bindAndValidate failure.
func bindError(err error) *JSONResponseBuilder {
	if errors.Is(err, errMalformedBody) {
		return BadRequestError(err.Error())
	}
	return ErrorFor(err)
}

// optionalInt64 reads an optional positive integer query parameter.
func optionalInt64(q url.Values, key string) (*int64, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return nil, core.Invalidf("%s must be a positive integer", key)
	}
	return &n, nil
}

// requiredInt reads a mandatory integer query parameter.
func requiredInt(q url.Values, key string) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, core.Invalidf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.Invalidf("%s must be an integer", key)
	}
	return n, nil
}

// optionalDate parses an optional YYYY-MM-DD value.
func optionalDate(key string, v *string) (*core.Date, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	d, err := ingest.ParseDate(*v)
	if err != nil {
		return nil, core.Invalidf("%s: %v", key, err)
	}
	return &d, nil
}

// transactionFilter builds a filter from account_id/from/to values.
func transactionFilter(accountID *int64, from, to *string) (core.TransactionFilter, error) {
	f := core.TransactionFilter{AccountID: accountID}
	var err error
	if f.From, err = optionalDate("from", from); err != nil {
		return f, err
	}
	if f.To, err = optionalDate("to", to); err != nil {
		return f, err
	}
	return f, nil
}

// filterFromQuery reads account_id, from and to from the query string.
func filterFromQuery(q url.Values) (core.TransactionFilter, error) {
	accountID, err := optionalInt64(q, "account_id")
	if err != nil {
		return core.TransactionFilter{}, err
	}
	from, to := q.Get("from"), q.Get("to")
	return transactionFilter(accountID, &from, &to)
}
