package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
)

func testSet() *Set {
	categories := []config.Category{
		{Name: "crypto", Kind: config.CategoryExclusive, Mandatory: true},
		{Name: "dns", Kind: config.CategoryExclusive},
		{Name: "transport", Kind: config.CategoryAdditive},
	}
	features := []config.Feature{
		{Name: "openssl", Category: "crypto"},
		{Name: "tongsuo", Category: "crypto", Platform: []string{"linux"}},
		{Name: "c-ares", Category: "dns"},
		{Name: "hickory", Category: "dns"},
		{Name: "quic", Category: "transport"},
		{Name: "h3", Category: "transport", Requires: []string{"quic"}},
	}
	return NewSet(categories, features)
}

var (
	linux   = config.Target{Name: "linux-amd64", OS: "linux", Arch: "amd64"}
	windows = config.Target{Name: "windows-amd64", OS: "windows", Arch: "amd64"}
)

func rejectionCodes(rs []Rejection) []ReasonCode {
	codes := make([]ReasonCode, 0, len(rs))
	for _, r := range rs {
		codes = append(codes, r.Code)
	}
	return codes
}

func TestValidate_LegalCombination(t *testing.T) {
	s := testSet()

	assert.Empty(t, s.Validate(config.Combination{"openssl", "quic"}, linux))
	assert.Empty(t, s.Validate(config.Combination{"openssl", "hickory", "quic", "h3"}, windows))
	assert.True(t, s.Valid(config.Combination{"tongsuo", "c-ares"}, linux))
}

func TestValidate_ConflictingExclusiveToggles(t *testing.T) {
	s := testSet()

	rs := s.Validate(config.Combination{"openssl", "tongsuo", "quic"}, linux)
	require.Len(t, rs, 1)
	assert.Equal(t, ReasonConflict, rs[0].Code)
	assert.Equal(t, "crypto", rs[0].Category)
	assert.Contains(t, rs[0].Detail, "conflicting toggles in category crypto")
}

func TestValidate_MissingCompanion(t *testing.T) {
	s := testSet()

	rs := s.Validate(config.Combination{"openssl", "h3"}, linux)
	require.Len(t, rs, 1)
	assert.Equal(t, ReasonMissingCompanion, rs[0].Code)
	assert.Equal(t, "h3", rs[0].Toggle)
	assert.Contains(t, rs[0].Detail, `requires companion "quic"`)
}

func TestValidate_UnsupportedPlatform(t *testing.T) {
	s := testSet()

	rs := s.Validate(config.Combination{"tongsuo"}, windows)
	require.Len(t, rs, 1)
	assert.Equal(t, ReasonUnsupportedPlatform, rs[0].Code)
	assert.Equal(t, "tongsuo", rs[0].Toggle)

	// Same combination is fine on linux.
	assert.Empty(t, s.Validate(config.Combination{"tongsuo"}, linux))
}

func TestValidate_UnknownToggle(t *testing.T) {
	s := testSet()

	rs := s.Validate(config.Combination{"openssl", "nosuch"}, linux)
	require.Len(t, rs, 1)
	assert.Equal(t, ReasonUnknownToggle, rs[0].Code)
}

func TestValidate_MandatoryCategory(t *testing.T) {
	s := testSet()

	// No crypto backend selected.
	rs := s.Validate(config.Combination{"quic"}, linux)
	assert.Contains(t, rejectionCodes(rs), ReasonMissingMandatory)

	// Empty combination is rejected because crypto is mandatory.
	rs = s.Validate(config.Combination{}, linux)
	require.Len(t, rs, 1)
	assert.Equal(t, ReasonMissingMandatory, rs[0].Code)
}

func TestValidate_EmptyComboNoMandatoryCategories(t *testing.T) {
	s := NewSet(
		[]config.Category{{Name: "transport", Kind: config.CategoryAdditive}},
		[]config.Feature{{Name: "quic", Category: "transport"}},
	)

	assert.Empty(t, s.Validate(config.Combination{}, linux))
}

func TestValidate_MultipleReasons(t *testing.T) {
	s := testSet()

	rs := s.Validate(config.Combination{"openssl", "tongsuo", "h3"}, windows)
	codes := rejectionCodes(rs)
	assert.Contains(t, codes, ReasonConflict)
	assert.Contains(t, codes, ReasonMissingCompanion)
	assert.Contains(t, codes, ReasonUnsupportedPlatform)
}

func TestCanonicalKey(t *testing.T) {
	assert.Equal(t, "openssl+quic", CanonicalKey(config.Combination{"quic", "openssl"}))
	assert.Equal(t, "openssl+quic", CanonicalKey(config.Combination{"openssl", "quic", "openssl"}))
	assert.Equal(t, "", CanonicalKey(config.Combination{}))
}

func TestValidate_ConflictOrderIsStable(t *testing.T) {
	s := testSet()
	combo := config.Combination{"openssl", "tongsuo", "c-ares", "hickory"}

	for range 50 {
		rs := s.Validate(combo, linux)
		require.Len(t, rs, 2)
		assert.Equal(t, "crypto", rs[0].Category)
		assert.Equal(t, "dns", rs[1].Category)
	}
}
