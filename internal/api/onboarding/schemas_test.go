package onboarding

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/onelink-market/internal/types"
)

func TestValidateStepData(t *testing.T) {
	validBasic := `{"name":"Jane","displayName":"janedoe","country":"PT","phone":"+351912345678","preferredLanguage":"en"}`
	tests := []struct {
		name      string
		role      types.Role
		step      int
		data      string
		strict    bool
		wantField string
	}{
		{name: "basic complete", step: 1, data: validBasic, strict: true},
		{name: "basic draft missing fields", step: 1, data: `{"phone":"+351912345678"}`},
		{name: "basic completed missing fields", step: 1, data: `{"phone":"+351912345678"}`, strict: true, wantField: "name"},
		{name: "basic draft bad format", step: 1, data: `{"displayName":"j"}`, wantField: "displayName"},
		{name: "influencer ok", role: types.RoleInfluencer, step: 2, data: `{"socialLinks":{"instagram":"https://instagram.com/jane"},"bio":"Travel"}`, strict: true},
		{name: "influencer no links", role: types.RoleInfluencer, step: 2, data: `{"bio":"Travel"}`, strict: true, wantField: "socialLinks.youtube"},
		{name: "influencer bad url", role: types.RoleInfluencer, step: 2, data: `{"socialLinks":{"tiktok":"not a url"}}`, wantField: "socialLinks.tiktok"},
		{name: "brand ok", role: types.RoleSupplier, step: 2, data: `{"companyName":"Acme","industry":"Beauty"}`, strict: true},
		{name: "brand missing industry", role: types.RoleBrand, step: 2, data: `{"companyName":"Acme"}`, strict: true, wantField: "industry"},
		{name: "step 2 without role", role: types.RoleCustomer, step: 2, data: `{}`, wantField: "role"},
		{name: "free form", step: 4, data: `{"anything":[1,2,3]}`, strict: true},
		{name: "empty body", step: 3, data: ``, strict: true},
		{name: "not an object", step: 3, data: `[1,2]`, wantField: "data"},
		{name: "wrong type", step: 1, data: `{"name":5}`, wantField: "data"},
		{name: "step out of range", step: 6, data: `{}`, wantField: "step"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateStepData(tc.role, tc.step, json.RawMessage(tc.data), tc.strict)
			if tc.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var ve *types.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tc.wantField)
		})
	}
}
