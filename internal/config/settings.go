package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"regexp"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Settings are the runtime knobs read from the environment.
type Settings struct {
	BaseURL       string `env:"IETFDATA_DT_URL" env-default:"https://datatracker.ietf.org/" env-description:"Datatracker instance to mirror"`
	Authorization string `env:"IETFDATA_DT_AUTH" env-description:"Authorization header value; anonymous when empty"`
	PageLimit     int    `env:"IETFDATA_PAGE_LIMIT" env-default:"500" env-description:"records requested per page"`
	SampleLimit   int    `env:"IETFDATA_SAMPLE_LIMIT" env-default:"0" env-description:"records scanned per endpoint to resolve relations; 0 scans until resolved"`
	TablePrefix   string `env:"IETFDATA_TABLE_PREFIX" env-default:"ietf_dt" env-description:"prefix of every table name"`
	MirrorConfig  string `env:"IETFDATA_MIRROR_CONFIG" env-description:"CUE mirror table replacing the built-in one"`
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadSettings reads Settings from the environment. When dotenv names a
// file, its variables are loaded first without overriding the environment;
// a missing file is not an error.
func LoadSettings(dotenv string) (*Settings, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", dotenv, err)
		}
	}

	s := &Settings{}
	if err := cleanenv.ReadEnv(s); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks value ranges.
func (s *Settings) Validate() error {
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &LoadError{Code: ErrCodeInvalidSetting, Message: fmt.Sprintf("IETFDATA_DT_URL must be an absolute URL, got %q", s.BaseURL)}
	}
	if s.PageLimit <= 0 {
		return &LoadError{Code: ErrCodeInvalidSetting, Message: fmt.Sprintf("page limit must be positive, got %d", s.PageLimit)}
	}
	if s.SampleLimit < 0 {
		return &LoadError{Code: ErrCodeInvalidSetting, Message: fmt.Sprintf("sample limit must not be negative, got %d", s.SampleLimit)}
	}
	if !identifier.MatchString(s.TablePrefix) {
		return &LoadError{Code: ErrCodeInvalidSetting, Message: fmt.Sprintf("table prefix %q is not an SQL identifier", s.TablePrefix)}
	}
	return nil
}

// Usage describes the environment variables.
func Usage() string {
	text, err := cleanenv.GetDescription(&Settings{}, nil)
	if err != nil {
		return ""
	}
	return text
}
