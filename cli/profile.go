package cli

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/shuntaka9576/ddbload"
)

// Profile holds capacity and backoff settings loaded from a TOML file.
// Command line flags take precedence.
//
//	[write]
//	capacity_units_per_second = 500
//	number_indices = 2
//	cooldown = "1s"
//
//	[write.unprocessed_backoff]
//	num_of_attempts = 8
//	starting_delay = "2s"
//	jitter = "full"
type Profile struct {
	Write OperationProfile `toml:"write"`
	Read  OperationProfile `toml:"read"`
}

type OperationProfile struct {
	CapacityUnitsPerSecond float64         `toml:"capacity_units_per_second"`
	NumberIndices          int             `toml:"number_indices"`
	BatchSize              int             `toml:"batch_size"`
	MaxConcurrency         int             `toml:"max_concurrency"`
	Cooldown               duration        `toml:"cooldown"`
	RequestBackOff         *BackOffProfile `toml:"request_backoff"`
	UnprocessedBackOff     *BackOffProfile `toml:"unprocessed_backoff"`
}

type BackOffProfile struct {
	NumOfAttempts int      `toml:"num_of_attempts"`
	StartingDelay duration `toml:"starting_delay"`
	MaxDelay      duration `toml:"max_delay"`
	TimeMultiple  float64  `toml:"time_multiple"`
	Jitter        string   `toml:"jitter"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// LoadProfile reads a profile file. Unknown keys are rejected so that a
// typo does not silently fall back to a default.
func LoadProfile(path string) (*Profile, error) {
	p := &Profile{}
	md, err := toml.DecodeFile(path, p)
	if err != nil {
		return nil, errors.Wrapf(err, "load profile %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Wrapf(ErrorOptInputError, "unknown profile keys %v in %s", undecoded, path)
	}
	return p, nil
}

func (b *BackOffProfile) requestBackOff() *ddbload.RequestBackOff {
	if b == nil {
		return nil
	}
	return &ddbload.RequestBackOff{
		NumOfAttempts: b.NumOfAttempts,
		StartingDelay: b.StartingDelay.Duration,
		MaxDelay:      b.MaxDelay.Duration,
		TimeMultiple:  b.TimeMultiple,
		Jitter:        ddbload.Jitter(b.Jitter),
	}
}

// SequentialOption converts the profile section into library options.
// Zero values keep the library defaults.
func (p OperationProfile) SequentialOption() *ddbload.SequentialOption {
	return &ddbload.SequentialOption{
		BatchSize:              p.BatchSize,
		NumberIndices:          p.NumberIndices,
		CapacityUnitsPerSecond: p.CapacityUnitsPerSecond,
		RequestBackOff:         p.RequestBackOff.requestBackOff(),
		UnprocessedBackOff:     p.UnprocessedBackOff.requestBackOff(),
		Cooldown:               p.Cooldown.Duration,
		MaxConcurrency:         p.MaxConcurrency,
	}
}
