package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credscope/credscope/pkg/scoring"
)

func TestTargetRoundTrip(t *testing.T) {
	targets := []scoring.Target{
		scoring.AddressTarget("0x8ba1f109551bd432803012645ac136ddd64dba72"),
		scoring.ProfileTarget(42),
		scoring.ServiceAccountTarget("x.com", "1234567"),
		scoring.ServiceUsernameTarget("x.com", "alice"),
	}
	for _, want := range targets {
		t.Run(want.String(), func(t *testing.T) {
			got, err := scoring.ParseTarget(want.String())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseTargetErrors(t *testing.T) {
	for _, s := range []string{"", "address:", "profileId:abc", "profileId:0", "service:x.com", "email:a@b"} {
		_, err := scoring.ParseTarget(s)
		assert.Error(t, err, s)
	}
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "profileId:9", scoring.ProfileTarget(9).String())
	assert.Equal(t, "service:x.com:username:bob", scoring.ServiceUsernameTarget("x.com", "bob").String())
}

func TestParseSignalName(t *testing.T) {
	n, err := scoring.ParseSignalName(" Review_Impact ")
	require.NoError(t, err)
	assert.Equal(t, scoring.SignalReviewImpact, n)
	assert.Equal(t, "Review impact", n.Label())

	_, err = scoring.ParseSignalName("karma")
	assert.Error(t, err)
}

func TestAddressTargetIgnoresCase(t *testing.T) {
	checksum := scoring.AddressTarget("0x8BA1f109551bD432803012645Ac136ddd64DBA72")
	lower := scoring.AddressTarget("0x8ba1f109551bd432803012645ac136ddd64dba72")
	assert.Equal(t, lower, checksum)

	parsed, err := scoring.ParseTarget("address:0x8BA1f109551bD432803012645Ac136ddd64DBA72")
	require.NoError(t, err)
	assert.Equal(t, "address:0x8ba1f109551bd432803012645ac136ddd64dba72", parsed.String())
}
