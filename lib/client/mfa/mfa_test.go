package mfa

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openconnect-tools/gp-okta/lib/client/types"
)

func factorList(factorTypes ...string) []types.OktaUserAuthnFactor {
	factors := make([]types.OktaUserAuthnFactor, len(factorTypes))
	for i, ft := range factorTypes {
		factors[i] = types.OktaUserAuthnFactor{Id: ft + "-id", FactorType: ft}
	}
	return factors
}

func factorTypes(factors []types.OktaUserAuthnFactor) []string {
	out := make([]string, len(factors))
	for i, f := range factors {
		out[i] = f.FactorType
	}
	return out
}

func TestSortDescendingByPriority(t *testing.T) {
	factors := factorList("sms", "push", "token:software:totp")
	priorities := map[string]int{"token:software:totp": 2, "push": 1, "sms": 0}

	sorted := Sort(factors, priorities)

	assert.Equal(t, []string{"token:software:totp", "push", "sms"}, factorTypes(sorted))
}

func TestSortIsStableOnTies(t *testing.T) {
	factors := factorList("sms", "token:hardware", "question", "push")

	// everything ranks 0 except push
	sorted := Sort(factors, map[string]int{"push": 1})

	assert.Equal(t, []string{"push", "sms", "token:hardware", "question"}, factorTypes(sorted))
}

func TestSortDoesNotMutateInput(t *testing.T) {
	factors := factorList("sms", "push")

	Sort(factors, map[string]int{"push": 5})

	assert.Equal(t, []string{"sms", "push"}, factorTypes(factors))
}

func TestSortUnknownTypesRankZero(t *testing.T) {
	factors := factorList("call", "push", "u2f")

	sorted := Sort(factors, map[string]int{"push": 1})

	assert.Equal(t, "push", sorted[0].FactorType)
	assert.Equal(t, []string{"call", "u2f"}, factorTypes(sorted[1:]))
}
