package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOwnerAuthorizer(t *testing.T) {
	authorizer := NewOwnerAuthorizer([]string{"heathcliff26", " Octo-Org ", ""})

	tMatrix := []struct {
		Name   string
		Owner  string
		Result Result
	}{
		{"Allowed", "heathcliff26", Allowed},
		{"AllowedCaseInsensitive", "HeathCliff26", Allowed},
		{"AllowedTrimmedEntry", "octo-org", Allowed},
		{"Denied", "mallory", Denied},
		{"Missing", "", MissingOwner},
		{"Whitespace", "   ", MissingOwner},
	}

	for _, tCase := range tMatrix {
		t.Run(tCase.Name, func(t *testing.T) {
			assert := assert.New(t)

			decision := authorizer.Authorize(tCase.Owner)
			assert.Equal(tCase.Result, decision.Result)
			assert.Equal(tCase.Result == Allowed, decision.IsAllowed())
			assert.Equal(tCase.Result == Allowed, authorizer.IsAuthorizedOwner(tCase.Owner))
			if tCase.Result != Allowed {
				assert.NotEmpty(decision.Reason)
			}
		})
	}
}

func TestOwnerAuthorizerEmptyList(t *testing.T) {
	authorizer := NewOwnerAuthorizer(nil)
	assert.Equal(t, Denied, authorizer.Authorize("heathcliff26").Result)
}

func TestResultString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("allowed", Allowed.String())
	assert.Equal("denied", Denied.String())
	assert.Equal("missing-owner", MissingOwner.String())
	assert.Equal("unknown", Result(42).String())
}
