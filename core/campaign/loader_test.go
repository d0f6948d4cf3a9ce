package campaign

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"rewardcampaign/crypto"
)

func testAccount(seed byte) crypto.AccountID {
	var id crypto.AccountID
	for i := range id {
		id[i] = seed + byte(i)
	}
	return id
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func campaignJSON(contributers string) string {
	return fmt.Sprintf(`{
  "campaignId": 7,
  "instantPercentage": [1, 4],
  "startsFrom": 100,
  "endsAt": 5000,
  "hoster": %q,
  "contributers": %q
}`, testAccount(1).String(), contributers)
}

func requireLoadKind(t *testing.T, err error, kind LoadErrorKind) *LoadError {
	t.Helper()
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr), "expected LoadError, got %v", err)
	require.Equal(t, kind, loadErr.Kind, "error: %v", err)
	return loadErr
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data/contributors.json", fmt.Sprintf(`[
  {"who": %q, "contributed": "100"},
  {"who": %q, "contributed": "340282366920938463463374607431768211455"}
]`, testAccount(10).String(), testAccount(20).SS58(crypto.SubstrateFormat)))
	path := writeFile(t, dir, "campaign.json", campaignJSON("data/contributors.json"))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(7), c.ID)
	require.Equal(t, Fraction{Numerator: 1, Denominator: 4}, c.InstantPercentage)
	require.Equal(t, uint32(100), c.StartsFrom)
	require.Equal(t, uint32(5000), c.EndsAt)
	require.Equal(t, testAccount(1), c.Hoster)
	require.Len(t, c.Contributors, 2)
	require.Equal(t, testAccount(10), c.Contributors[0].Who)
	require.Equal(t, "100", c.Contributors[0].Contributed.Dec())
	require.Equal(t, testAccount(20), c.Contributors[1].Who)
	require.Equal(t, maxBalance(), c.Contributors[1].Contributed)
	require.NotEqual(t, [32]byte{}, c.Fingerprint())
}

func TestLoadFingerprintTracksContributorFile(t *testing.T) {
	dir := t.TempDir()
	contributors := writeFile(t, dir, "contributors.json", fmt.Sprintf(`[{"who": %q, "contributed": "1"}]`, testAccount(3)))
	path := writeFile(t, dir, "campaign.json", campaignJSON("contributors.json"))

	first, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(contributors, []byte(fmt.Sprintf(`[{"who": %q, "contributed": "2"}]`, testAccount(3))), 0o600))
	second, err := Load(path)
	require.NoError(t, err)
	require.NotEqual(t, first.Fingerprint(), second.Fingerprint())
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "contributors.toml", fmt.Sprintf(`
[[contributers]]
who = %q
contributed = "250"

[[contributers]]
who = %q
contributed = "750"
`, testAccount(4), testAccount(5)))
	path := writeFile(t, dir, "campaign.toml", fmt.Sprintf(`
campaignId = 2
instantPercentage = [3, 10]
startsFrom = 1
endsAt = 1
hoster = %q
contributers = "contributors.toml"
`, testAccount(6)))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(2), c.ID)
	require.Equal(t, Fraction{Numerator: 3, Denominator: 10}, c.InstantPercentage)
	require.Len(t, c.Contributors, 2)
	require.Equal(t, "750", c.Contributors[1].Contributed.Dec())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "contributors.yaml", fmt.Sprintf(`
- who: %s
  contributed: "42"
`, testAccount(8)))
	path := writeFile(t, dir, "campaign.yml", fmt.Sprintf(`
campaignId: 9
instantPercentage: [0, 1]
startsFrom: 10
endsAt: 20
hoster: %s
contributers: contributors.yaml
`, testAccount(9)))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(9), c.ID)
	require.Equal(t, testAccount(8), c.Contributors[0].Who)
	require.Equal(t, "42", c.Contributors[0].Contributed.Dec())
}

func TestLoadMissingCampaignFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	requireLoadKind(t, err, KindNotFound)
}

func TestLoadMissingContributorFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "campaign.json", campaignJSON("nowhere.json"))

	c, err := Load(path)
	require.Nil(t, c)
	loadErr := requireLoadKind(t, err, KindNotFound)
	require.Equal(t, filepath.Join(dir, "nowhere.json"), loadErr.Path)
}

func TestLoadEmptyContributorList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "contributors.json", `[]`)
	path := writeFile(t, dir, "campaign.json", campaignJSON("contributors.json"))

	c, err := Load(path)
	require.Nil(t, c)
	requireLoadKind(t, err, KindMalformed)
	require.ErrorIs(t, err, ErrNoContributors)
}

func TestLoadUnparseableAmount(t *testing.T) {
	for name, amount := range map[string]string{
		"negative":  "-5",
		"fraction":  "1.5",
		"hex":       "0x10",
		"empty":     "",
		"too-large": "340282366920938463463374607431768211456",
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "contributors.json", fmt.Sprintf(`[{"who": %q, "contributed": %q}]`, testAccount(2), amount))
			path := writeFile(t, dir, "campaign.json", campaignJSON("contributors.json"))

			c, err := Load(path)
			require.Nil(t, c)
			requireLoadKind(t, err, KindInvalidNumber)
		})
	}
}

func TestLoadMalformedInputs(t *testing.T) {
	hoster := testAccount(1).String()
	cases := map[string]struct {
		campaign     string
		contributors string
	}{
		"not json": {
			campaign: `{"campaignId": `,
		},
		"unknown field": {
			campaign: fmt.Sprintf(`{"campaignId": 1, "instantPercentage": [1, 2], "startsFrom": 1, "endsAt": 2, "hoster": %q, "contributers": "c.json", "extra": true}`, hoster),
		},
		"missing id": {
			campaign: fmt.Sprintf(`{"instantPercentage": [1, 2], "startsFrom": 1, "endsAt": 2, "hoster": %q, "contributers": "c.json"}`, hoster),
		},
		"zero denominator": {
			campaign: fmt.Sprintf(`{"campaignId": 1, "instantPercentage": [1, 0], "startsFrom": 1, "endsAt": 2, "hoster": %q, "contributers": "c.json"}`, hoster),
		},
		"percentage arity": {
			campaign: fmt.Sprintf(`{"campaignId": 1, "instantPercentage": [1], "startsFrom": 1, "endsAt": 2, "hoster": %q, "contributers": "c.json"}`, hoster),
		},
		"ends before start": {
			campaign: fmt.Sprintf(`{"campaignId": 1, "instantPercentage": [1, 2], "startsFrom": 10, "endsAt": 2, "hoster": %q, "contributers": "c.json"}`, hoster),
		},
		"bad hoster": {
			campaign: `{"campaignId": 1, "instantPercentage": [1, 2], "startsFrom": 1, "endsAt": 2, "hoster": "alice", "contributers": "c.json"}`,
		},
		"missing contributor path": {
			campaign: fmt.Sprintf(`{"campaignId": 1, "instantPercentage": [1, 2], "startsFrom": 1, "endsAt": 2, "hoster": %q}`, hoster),
		},
		"numeric amount": {
			campaign:     campaignJSON("c.json"),
			contributors: fmt.Sprintf(`[{"who": %q, "contributed": 100}]`, hoster),
		},
		"bad contributor account": {
			campaign:     campaignJSON("c.json"),
			contributors: `[{"who": "5Grwva", "contributed": "1"}]`,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			contributors := tc.contributors
			if contributors == "" {
				contributors = fmt.Sprintf(`[{"who": %q, "contributed": "1"}]`, hoster)
			}
			writeFile(t, dir, "c.json", contributors)
			path := writeFile(t, dir, "campaign.json", tc.campaign)

			c, err := Load(path)
			require.Nil(t, c)
			requireLoadKind(t, err, KindMalformed)
		})
	}
}

func TestParseBalance(t *testing.T) {
	v, err := ParseBalance(" 1000 ")
	require.NoError(t, err)
	require.Equal(t, uint64(1000), v.Uint64())

	v, err = ParseBalance("007")
	require.NoError(t, err)
	require.Equal(t, uint64(7), v.Uint64())

	v, err = ParseBalance("\t0\n")
	require.NoError(t, err)
	require.True(t, v.IsZero())

	v, err = ParseBalance("000340282366920938463463374607431768211455")
	require.NoError(t, err)
	require.Equal(t, BalanceBits, v.BitLen())

	for _, raw := range []string{"", "   ", "+5", "-1", "1_000", "1e3", "0x10", "1 000", "340282366920938463463374607431768211456"} {
		_, err = ParseBalance(raw)
		require.Error(t, err, "input %q", raw)
	}
}
