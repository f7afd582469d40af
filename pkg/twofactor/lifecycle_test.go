package twofactor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

func TestNext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from    twofactor.State
		event   twofactor.Event
		want    twofactor.State
		wantErr error
	}{
		{twofactor.StateNotEnrolled, twofactor.EventBeginSetup, twofactor.StatePendingVerification, nil},
		{twofactor.StatePendingVerification, twofactor.EventCompleteSetup, twofactor.StateEnabled, nil},
		{twofactor.StateEnabled, twofactor.EventVerifyLogin, twofactor.StateEnabled, nil},
		{twofactor.StateEnabled, twofactor.EventRegenerateCodes, twofactor.StateEnabled, nil},
		{twofactor.StateEnabled, twofactor.EventDisable, twofactor.StateNotEnrolled, nil},
		{twofactor.StateEnabled, twofactor.EventBeginSetup, twofactor.StateEnabled, twofactor.ErrAlreadyEnabled},
		{twofactor.StateEnabled, twofactor.EventCompleteSetup, twofactor.StateEnabled, twofactor.ErrAlreadyEnabled},
		{twofactor.StateNotEnrolled, twofactor.EventVerifyLogin, twofactor.StateNotEnrolled, twofactor.ErrNotEnabled},
		{twofactor.StateNotEnrolled, twofactor.EventRegenerateCodes, twofactor.StateNotEnrolled, twofactor.ErrNotEnabled},
		{twofactor.StateNotEnrolled, twofactor.EventDisable, twofactor.StateNotEnrolled, twofactor.ErrNotEnabled},
		{twofactor.StatePendingVerification, twofactor.EventVerifyLogin, twofactor.StatePendingVerification, twofactor.ErrNotEnabled},
		{twofactor.StateEnabled, twofactor.Event("bogus"), twofactor.StateEnabled, twofactor.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			t.Parallel()
			got, err := twofactor.Next(tt.from, tt.event)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCredentialState(t *testing.T) {
	t.Parallel()

	var nilCred *twofactor.Credential
	assert.Equal(t, twofactor.StateNotEnrolled, nilCred.State())
	assert.Equal(t, twofactor.StateNotEnrolled, (&twofactor.Credential{}).State())
	assert.Equal(t, twofactor.StateEnabled, (&twofactor.Credential{Enabled: true}).State())
}
