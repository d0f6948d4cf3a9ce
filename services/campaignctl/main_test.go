package campaignctl_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"rewardcampaign/core/campaign"
	"rewardcampaign/crypto"
	"rewardcampaign/services/campaignctl"
)

func writeCampaign(t *testing.T, contributors string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contributors.json"), []byte(contributors), 0o600))
	body := fmt.Sprintf(`{
  "campaignId": 9,
  "instantPercentage": [1, 2],
  "startsFrom": 1,
  "endsAt": 100,
  "hoster": %q,
  "contributers": "contributors.json"
}`, account(0xAA).String())
	path := filepath.Join(dir, "campaign.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runMain(t *testing.T, args []string, env map[string]string, opts ...campaignctl.MainOption) (string, error) {
	t.Helper()
	logs := &bytes.Buffer{}
	base := []campaignctl.MainOption{
		campaignctl.WithGetenv(func(key string) string { return env[key] }),
		campaignctl.WithLogOutput(logs),
		campaignctl.WithRegistry(prometheus.NewRegistry()),
	}
	err := campaignctl.Main(args, append(base, opts...)...)
	return logs.String(), err
}

func TestMainDryRun(t *testing.T) {
	path := writeCampaign(t, fmt.Sprintf(`[
  {"who": %q, "contributed": "100"},
  {"who": %q, "contributed": "200"},
  {"who": %q, "contributed": "700"}
]`, account(1).String(), account(2).String(), account(3).String()))
	logs, err := runMain(t, []string{path}, map[string]string{
		campaignctl.EnvDryRun:   "true",
		campaignctl.EnvLogLevel: "debug",
	})
	require.NoError(t, err)
	require.Equal(t, 4, strings.Count(logs, `"message":"dry run call"`))
	require.Contains(t, logs, `"run_id"`)
	require.Contains(t, logs, `"fingerprint"`)
	require.Contains(t, logs, "210000000000000000000000")
	require.Contains(t, logs, `"skipped":0`)
}

func TestMainWritesMetricsTextfile(t *testing.T) {
	path := writeCampaign(t, fmt.Sprintf(`[{"who": %q, "contributed": "5"}]`, account(1).String()))
	textfile := filepath.Join(t.TempDir(), "campaign.prom")
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("dry_run: true\nlock_after_populate: true\nmetrics_textfile: "+textfile+"\n"), 0o600))

	logs, err := runMain(t, []string{path}, map[string]string{campaignctl.EnvConfigPath: cfg})
	require.NoError(t, err)
	require.Contains(t, logs, "Reward.lock_campaign")

	contents, err := os.ReadFile(textfile)
	require.NoError(t, err)
	require.Contains(t, string(contents), "dhx_reward_campaign_submissions_total")
	require.Contains(t, string(contents), `outcome="confirmed"`)
}

func TestMainMissingCampaignFile(t *testing.T) {
	_, err := runMain(t, []string{filepath.Join(t.TempDir(), "nope.json")}, map[string]string{campaignctl.EnvDryRun: "true"})
	var loadErr *campaign.LoadError
	require.ErrorAs(t, err, &loadErr)
	require.Equal(t, campaign.KindNotFound, loadErr.Kind)
}

func TestMainMissingContributorFile(t *testing.T) {
	path := writeCampaign(t, "[]")
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(path), "contributors.json")))

	logs, err := runMain(t, []string{path}, map[string]string{campaignctl.EnvDryRun: "true"})
	var loadErr *campaign.LoadError
	require.ErrorAs(t, err, &loadErr)
	require.Equal(t, campaign.KindNotFound, loadErr.Kind)
	require.NotContains(t, logs, "dry run call")
}

func TestMainRejectsExtraArguments(t *testing.T) {
	_, err := runMain(t, []string{"a.json", "b.json"}, map[string]string{campaignctl.EnvDryRun: "true"})
	require.ErrorContains(t, err, "usage")
}

func TestMainPassphraseFailure(t *testing.T) {
	path := writeCampaign(t, fmt.Sprintf(`[{"who": %q, "contributed": "5"}]`, account(1).String()))
	denied := errors.New("no tty")

	logs, err := runMain(t, []string{path}, map[string]string{
		campaignctl.EnvKeystore: filepath.Join(t.TempDir(), "signer.json"),
	}, campaignctl.WithPassphrase(func(envVar string) (string, error) {
		require.Equal(t, "CAMPAIGN_KEYSTORE_PASSPHRASE", envVar)
		return "", denied
	}))
	require.ErrorIs(t, err, denied)
	require.NotContains(t, logs, "dry run call")
}

func TestMainLoadsKeystoreBeforeDialling(t *testing.T) {
	path := writeCampaign(t, fmt.Sprintf(`[{"who": %q, "contributed": "5"}]`, account(1).String()))
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	ks := keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
	signer, err := ks.ImportECDSA(key.PrivateKey, "hunter2")
	require.NoError(t, err)

	logs, err := runMain(t, []string{path}, map[string]string{
		campaignctl.EnvKeystore:        signer.URL.Path,
		campaignctl.EnvRPCURL:          "ws://127.0.0.1:1",
		"CAMPAIGN_KEYSTORE_PASSPHRASE": "hunter2",
	})
	require.ErrorContains(t, err, "connect to ws://127.0.0.1:1")
	require.NotContains(t, err.Error(), "load signer key")
	require.NotContains(t, logs, "hunter2")
	require.NotContains(t, logs, "dry run call")
}

func TestMainWrongPassphrase(t *testing.T) {
	path := writeCampaign(t, fmt.Sprintf(`[{"who": %q, "contributed": "5"}]`, account(1).String()))
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	ks := keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
	signer, err := ks.ImportECDSA(key.PrivateKey, "hunter2")
	require.NoError(t, err)

	_, err = runMain(t, []string{path}, map[string]string{
		campaignctl.EnvKeystore:        signer.URL.Path,
		"CAMPAIGN_KEYSTORE_PASSPHRASE": "wrong",
	})
	require.ErrorContains(t, err, "load signer key")
}
