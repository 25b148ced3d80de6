package config

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// KeyInfo is one row of `flowcraft config show`.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll lists every key with its effective value. Secrets are masked.
func ShowAll(cfg Config) []KeyInfo {
	out := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		v := fmt.Sprint(s.extract(cfg))
		if s.secret {
			v = Mask(v)
		}
		out = append(out, KeyInfo{Key: s.key, EnvVar: s.env, Value: v})
	}
	return out
}

// Mask keeps the last four characters of a secret.
func Mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 4:
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// SetKey validates value and persists it. Provider keys go to the secret
// store, everything else to the config file.
func SetKey(key, value string) error {
	return setKeyWith(newPlatformBackend(), NewSecretStore(), key, value)
}

func lookupSpec(key string) (keySpec, bool) {
	i := slices.IndexFunc(specs, func(s keySpec) bool { return s.key == key })
	if i < 0 {
		return keySpec{}, false
	}
	return specs[i], true
}

func setKeyWith(b ConfigBackend, secrets SecretStore, key, value string) error {
	s, ok := lookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(ValidKeys(), ", "))
	}
	if s.validate != nil {
		if err := s.validate(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	if s.secret {
		return SetSecret(secrets, key, value)
	}
	if s.typ == kInt {
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		return b.SetInt(key, i)
	}
	return b.SetString(key, value)
}

func ValidKeys() []string {
	keys := make([]string, 0, len(specs))
	for _, s := range specs {
		keys = append(keys, s.key)
	}
	return keys
}

func portNumber(raw string) error {
	p, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	if p < 1 || p > 65535 {
		return fmt.Errorf("port %d out of range", p)
	}
	return nil
}

func positiveDuration(raw string) error {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	return nil
}

func oneOf(allowed ...string) func(string) error {
	return func(raw string) error {
		if !slices.Contains(allowed, strings.ToLower(raw)) {
			return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
		}
		return nil
	}
}

// urlWithScheme accepts an empty value, which restores the default.
func urlWithScheme(schemes ...string) func(string) error {
	return func(raw string) error {
		if raw == "" {
			return nil
		}
		u, err := url.Parse(raw)
		if err != nil {
			return err
		}
		if !slices.Contains(schemes, u.Scheme) || u.Host == "" {
			return fmt.Errorf("want a %s URL", strings.Join(schemes, " or "))
		}
		return nil
	}
}

// originList checks a comma-separated CORS origin list. "*" is allowed.
func originList(raw string) error {
	check := urlWithScheme("http", "https")
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimSpace(o)
		if o == "" || o == "*" {
			continue
		}
		if err := check(o); err != nil {
			return fmt.Errorf("origin %q: %w", o, err)
		}
	}
	return nil
}
