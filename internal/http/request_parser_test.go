package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func newRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestBindAndValidate(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name       string
		body       string
		allowEmpty bool
		wantStatus int
	}{
		{name: "valid", body: `{"name":"A","institution":"TD"}`},
		{name: "missing field", body: `{"name":"A"}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "unknown field", body: `{"name":"A","institution":"TD","iban":"x"}`, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{"name":`, wantStatus: http.StatusBadRequest},
		{name: "empty not allowed", body: ``, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bindAndValidate[accountRequest](newRequest(tt.body), v, tt.allowEmpty)
			if tt.wantStatus == 0 {
				require.NoError(t, err)
				assert.Equal(t, "TD", got.Institution)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, bindError(err).StatusCode())
		})
	}
}

func TestBindAndValidateAllowsEmptyBody(t *testing.T) {
	got, err := bindAndValidate[applyRulesRequest](newRequest(""), newValidator(), true)
	require.NoError(t, err)
	assert.Nil(t, got.AccountID)
	assert.Nil(t, got.From)
}

func TestValidatorUsesJSONNames(t *testing.T) {
	err := newValidator().Struct(budgetRequest{Bucket: "x", Currency: "CA"})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "currency", verrs[0].Field())
}

func TestQueryHelpers(t *testing.T) {
	q := url.Values{"year": {"2024"}, "month": {"x"}, "account_id": {"-1"}}

	year, err := requiredInt(q, "year")
	require.NoError(t, err)
	assert.Equal(t, 2024, year)

	_, err = requiredInt(q, "month")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = requiredInt(q, "day")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = optionalInt64(q, "account_id")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	id, err := optionalInt64(url.Values{}, "account_id")
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestFilterFromQuery(t *testing.T) {
	f, err := filterFromQuery(url.Values{"account_id": {"3"}, "from": {"2024-03-01"}})
	require.NoError(t, err)
	require.NotNil(t, f.AccountID)
	assert.Equal(t, int64(3), *f.AccountID)
	require.NotNil(t, f.From)
	assert.Equal(t, "2024-03-01", f.From.String())
	assert.Nil(t, f.To)

	_, err = filterFromQuery(url.Values{"to": {"yesterday"}})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
