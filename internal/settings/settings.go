// Package settings persists user preferences in the agent's key/value store.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/simplecut/simplecut-agent/internal/cuts"
	"github.com/simplecut/simplecut-agent/internal/ffmpeg"
)

// Store is the key/value backend. Missing keys read as "".
type Store interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

const (
	MinSeparatorDuration     = 0.5
	MaxSeparatorDuration     = 10.0
	DefaultSeparatorDuration = 2.0
	DefaultVolume            = 70
)

const (
	keyTheme             = "theme/mode"
	keyMode              = "export/mode"
	keySeparatorEnabled  = "separator/enabled"
	keySeparatorDuration = "separator/duration"
	keySeparatorColor    = "separator/color"
	keyLastOutputDir     = "export/last_output_dir"
	keyVolume            = "player/volume"
)

var ErrInvalid = errors.New("invalid preferences")

// Preferences are the user-facing choices that survive restarts.
type Preferences struct {
	Theme         Theme            `json:"theme"`
	Mode          cuts.Mode        `json:"mode"`
	Separator     ffmpeg.Separator `json:"separator"`
	LastOutputDir string           `json:"last_output_dir"`
	Volume        int              `json:"volume"`
}

// Defaults returns the first-run preferences.
func Defaults() Preferences {
	return Preferences{
		Theme: ThemeDark,
		Mode:  cuts.ModeKeep,
		Separator: ffmpeg.Separator{
			Enabled:  false,
			Duration: DefaultSeparatorDuration,
			Color:    ffmpeg.SeparatorBlack,
		},
		Volume: DefaultVolume,
	}
}

// Validate rejects values the UI could not have produced.
func (p Preferences) Validate() error {
	if p.Theme != ThemeDark && p.Theme != ThemeLight {
		return fmt.Errorf("%w: theme %q", ErrInvalid, p.Theme)
	}
	if p.Mode != cuts.ModeKeep && p.Mode != cuts.ModeCut {
		return fmt.Errorf("%w: mode %q", ErrInvalid, p.Mode)
	}
	if err := ValidateSeparator(p.Separator); err != nil {
		return err
	}
	if p.Volume < 0 || p.Volume > 100 {
		return fmt.Errorf("%w: volume %d", ErrInvalid, p.Volume)
	}
	return nil
}

// ValidateSeparator checks the separator duration bounds and colour.
func ValidateSeparator(sep ffmpeg.Separator) error {
	if sep.Duration < MinSeparatorDuration || sep.Duration > MaxSeparatorDuration {
		return fmt.Errorf("%w: separator duration %.2f outside %.1f..%.1f s",
			ErrInvalid, sep.Duration, MinSeparatorDuration, MaxSeparatorDuration)
	}
	if sep.Color != ffmpeg.SeparatorBlack && sep.Color != ffmpeg.SeparatorWhite {
		return fmt.Errorf("%w: separator color %q", ErrInvalid, sep.Color)
	}
	return nil
}

// ToggleTheme flips between dark and light.
func (p *Preferences) ToggleTheme() {
	if p.Theme == ThemeDark {
		p.Theme = ThemeLight
	} else {
		p.Theme = ThemeDark
	}
}

// Load reads preferences, falling back to defaults for missing or
// unreadable values.
func Load(ctx context.Context, store Store) (Preferences, error) {
	p := Defaults()
	values := make(map[string]string)
	for _, key := range []string{keyTheme, keyMode, keySeparatorEnabled, keySeparatorDuration, keySeparatorColor, keyLastOutputDir, keyVolume} {
		v, err := store.GetConfig(ctx, key)
		if err != nil {
			return p, fmt.Errorf("failed to read %s: %w", key, err)
		}
		values[key] = v
	}

	switch Theme(values[keyTheme]) {
	case ThemeDark, ThemeLight:
		p.Theme = Theme(values[keyTheme])
	}
	if v := values[keyMode]; v != "" {
		p.Mode = cuts.ParseMode(v)
	}
	if b, err := strconv.ParseBool(values[keySeparatorEnabled]); err == nil {
		p.Separator.Enabled = b
	}
	if d, err := strconv.ParseFloat(values[keySeparatorDuration], 64); err == nil &&
		d >= MinSeparatorDuration && d <= MaxSeparatorDuration {
		p.Separator.Duration = d
	}
	if v := values[keySeparatorColor]; v != "" {
		p.Separator.Color = ffmpeg.ParseSeparatorColor(v)
	}
	p.LastOutputDir = values[keyLastOutputDir]
	if n, err := strconv.Atoi(values[keyVolume]); err == nil && n >= 0 && n <= 100 {
		p.Volume = n
	}
	return p, nil
}

// Save validates and writes every preference.
func Save(ctx context.Context, store Store, p Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	values := []struct{ key, value string }{
		{keyTheme, string(p.Theme)},
		{keyMode, string(p.Mode)},
		{keySeparatorEnabled, strconv.FormatBool(p.Separator.Enabled)},
		{keySeparatorDuration, strconv.FormatFloat(p.Separator.Duration, 'f', -1, 64)},
		{keySeparatorColor, string(p.Separator.Color)},
		{keyLastOutputDir, p.LastOutputDir},
		{keyVolume, strconv.Itoa(p.Volume)},
	}
	for _, kv := range values {
		if err := store.SetConfig(ctx, kv.key, kv.value); err != nil {
			return fmt.Errorf("failed to write %s: %w", kv.key, err)
		}
	}
	return nil
}
