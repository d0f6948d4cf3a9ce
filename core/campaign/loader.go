package campaign

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"

	"rewardcampaign/crypto"
)

type campaignFile struct {
	CampaignID        *uint32  `json:"campaignId" toml:"campaignId" yaml:"campaignId"`
	InstantPercentage []uint32 `json:"instantPercentage" toml:"instantPercentage" yaml:"instantPercentage"`
	StartsFrom        uint32   `json:"startsFrom" toml:"startsFrom" yaml:"startsFrom"`
	EndsAt            uint32   `json:"endsAt" toml:"endsAt" yaml:"endsAt"`
	Hoster            string   `json:"hoster" toml:"hoster" yaml:"hoster"`
	Contributers      string   `json:"contributers" toml:"contributers" yaml:"contributers"`
}

type contributorRecord struct {
	Who         string `json:"who" toml:"who" yaml:"who"`
	Contributed string `json:"contributed" toml:"contributed" yaml:"contributed"`
}

// TOML has no top-level arrays, so contributor lists in TOML live under a
// [[contributers]] table array.
type contributorTOML struct {
	Contributers []contributorRecord `toml:"contributers"`
}

// Load reads the campaign descriptor at path and the contributor list it
// references. The contributor path is resolved relative to the descriptor's
// directory unless it is absolute. Either a fully populated campaign or a
// *LoadError is returned.
func Load(path string) (*Campaign, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, loadErr(KindNotFound, path, errors.New("campaign path required"))
	}
	rawCampaign, err := readInput(path)
	if err != nil {
		return nil, err
	}
	var file campaignFile
	if err := decodeInput(path, rawCampaign, &file); err != nil {
		return nil, loadErr(KindMalformed, path, err)
	}
	descriptor, err := file.descriptor()
	if err != nil {
		return nil, loadErr(KindMalformed, path, err)
	}

	contributorsPath := strings.TrimSpace(file.Contributers)
	if contributorsPath == "" {
		return nil, loadErr(KindMalformed, path, errors.New("contributers path is required"))
	}
	if !filepath.IsAbs(contributorsPath) {
		contributorsPath = filepath.Join(filepath.Dir(path), contributorsPath)
	}
	rawContributors, err := readInput(contributorsPath)
	if err != nil {
		return nil, err
	}
	contributors, err := parseContributors(contributorsPath, rawContributors)
	if err != nil {
		return nil, err
	}

	hasher := blake3.New(32, nil)
	_, _ = hasher.Write(rawCampaign)
	_, _ = hasher.Write(rawContributors)
	out := &Campaign{Descriptor: descriptor, Contributors: contributors}
	copy(out.fingerprint[:], hasher.Sum(nil))
	return out, nil
}

func (f campaignFile) descriptor() (Descriptor, error) {
	if f.CampaignID == nil {
		return Descriptor{}, errors.New("campaignId is required")
	}
	if len(f.InstantPercentage) != 2 {
		return Descriptor{}, fmt.Errorf("instantPercentage must hold exactly two integers, got %d", len(f.InstantPercentage))
	}
	hoster, err := crypto.ParseAccountID(strings.TrimSpace(f.Hoster))
	if err != nil {
		return Descriptor{}, fmt.Errorf("hoster: %w", err)
	}
	d := Descriptor{
		ID: *f.CampaignID,
		InstantPercentage: Fraction{
			Numerator:   f.InstantPercentage[0],
			Denominator: f.InstantPercentage[1],
		},
		StartsFrom: f.StartsFrom,
		EndsAt:     f.EndsAt,
		Hoster:     hoster,
	}
	if err := d.validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

func parseContributors(path string, data []byte) ([]Contributor, error) {
	var records []contributorRecord
	if isTOML(path) {
		var wrapped contributorTOML
		if err := decodeInput(path, data, &wrapped); err != nil {
			return nil, loadErr(KindMalformed, path, err)
		}
		records = wrapped.Contributers
	} else if err := decodeInput(path, data, &records); err != nil {
		return nil, loadErr(KindMalformed, path, err)
	}
	if len(records) == 0 {
		return nil, loadErr(KindMalformed, path, ErrNoContributors)
	}

	contributors := make([]Contributor, 0, len(records))
	for i, rec := range records {
		who, err := crypto.ParseAccountID(strings.TrimSpace(rec.Who))
		if err != nil {
			return nil, loadErr(KindMalformed, path, fmt.Errorf("contributor %d: who: %w", i, err))
		}
		amount, err := ParseBalance(rec.Contributed)
		if err != nil {
			return nil, loadErr(KindInvalidNumber, path, fmt.Errorf("contributor %d (%s): %w", i, who, err))
		}
		contributors = append(contributors, Contributor{Who: who, Contributed: amount})
	}
	return contributors, nil
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, loadErr(KindNotFound, path, err)
		}
		return nil, loadErr(KindUnreadable, path, err)
	}
	return data, nil
}

func isTOML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".tml":
		return true
	}
	return false
}

// decodeInput picks a decoder from the file extension; anything that is not
// TOML or YAML is read as JSON. Unknown fields are rejected in every format.
func decodeInput(path string, data []byte, out any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".tml":
		meta, err := toml.NewDecoder(bytes.NewReader(data)).Decode(out)
		if err != nil {
			return fmt.Errorf("decode toml: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("decode toml: unknown field %q", undecoded[0].String())
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(out); err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("decode yaml: document is empty")
			}
			return fmt.Errorf("decode yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(out); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
		if dec.More() {
			return errors.New("decode json: trailing data after document")
		}
	}
	return nil
}
