package plotgeom

import (
	"fmt"
	"regexp"
	"strconv"
)

// Info describes the four fields encoded in a plot's canonical filename.
type Info struct {
	Key        uint64
	StartNonce uint64
	Nonces     uint32
	Stagger    uint32 // 0 means POC2 (optimized)
}

// poc1Pattern and poc2Pattern match the two canonical plot filename shapes
// from spec §6: "{key}_{startNonce}_{nonces}_{stagger}" and
// "{key}_{startNonce}_{nonces}".
var (
	poc1Pattern = regexp.MustCompile(`^([0-9]+)_([0-9]+)_([0-9]+)_([0-9]+)$`)
	poc2Pattern = regexp.MustCompile(`^([0-9]+)_([0-9]+)_([0-9]+)$`)
)

// ParseFilename validates name against the POC1/POC2 filename grammar and
// extracts its fields. Any other shape (extensions, wrong field count,
// non-decimal fields) is rejected, matching the original tooling's
// `"." in fileName or fileName.count("_") != 3` filters.
func ParseFilename(name string) (Info, error) {

	if m := poc1Pattern.FindStringSubmatch(name); m != nil {
		return buildInfo(m[1], m[2], m[3], m[4])
	}

	if m := poc2Pattern.FindStringSubmatch(name); m != nil {
		info, err := buildInfo(m[1], m[2], m[3], "0")
		if err != nil {
			return Info{}, err
		}
		return info, nil
	}

	return Info{}, fmt.Errorf("invalid plot filename: %q", name)
}

func buildInfo(keyS, startS, noncesS, staggerS string) (Info, error) {

	key, err := strconv.ParseUint(keyS, 10, 64)
	if err != nil {
		return Info{}, fmt.Errorf("invalid key: %w", err)
	}

	start, err := strconv.ParseUint(startS, 10, 64)
	if err != nil {
		return Info{}, fmt.Errorf("invalid start nonce: %w", err)
	}

	nonces, err := strconv.ParseUint(noncesS, 10, 32)
	if err != nil {
		return Info{}, fmt.Errorf("invalid nonce count: %w", err)
	}

	stagger, err := strconv.ParseUint(staggerS, 10, 32)
	if err != nil {
		return Info{}, fmt.Errorf("invalid stagger: %w", err)
	}

	if stagger != 0 && uint32(nonces)%uint32(stagger) != 0 {
		return Info{}, fmt.Errorf("stagger %d does not divide nonces %d", stagger, nonces)
	}

	return Info{Key: key, StartNonce: start, Nonces: uint32(nonces), Stagger: uint32(stagger)}, nil
}

// Filename renders the canonical on-disk name for this plot: POC2 when
// Stagger is 0, POC1 otherwise.
func (i Info) Filename() string {
	if i.Stagger == 0 {
		return fmt.Sprintf("%d_%d_%d", i.Key, i.StartNonce, i.Nonces)
	}
	return fmt.Sprintf("%d_%d_%d_%d", i.Key, i.StartNonce, i.Nonces, i.Stagger)
}

// Size returns the exact expected file size in bytes for this plot.
func (i Info) Size() int64 {
	return NonceBytes(i.Nonces)
}

// IsPOC2 reports whether this plot is already in optimized (POC2) layout.
func (i Info) IsPOC2() bool {
	return IsPOC2(i.Stagger)
}

// EndNonce returns the first nonce past this plot's range.
func (i Info) EndNonce() uint64 {
	return i.StartNonce + uint64(i.Nonces)
}

// EffectiveStagger returns Stagger, or Nonces when Stagger is 0 (POC2):
// POC2 is a single group spanning the whole file, exactly as a POC1 file
// with stagger == nonces would be.
func (i Info) EffectiveStagger() uint32 {
	if i.Stagger == 0 {
		return i.Nonces
	}
	return i.Stagger
}
