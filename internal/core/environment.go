package core

import "strings"

// Environment is the deployment stage the concierge runs in. It picks the
// log format and whether seeded demo data is acceptable.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

var environmentAliases = map[string]Environment{
	"dev":   Development,
	"local": Development,
	"stage": Staging,
	"test":  Testing,
	"ci":    Testing,
	"prod":  Production,
	"live":  Production,
}

func (e Environment) String() string {
	return string(e)
}

func (e Environment) IsProduction() bool {
	return e == Production
}

// DefaultLogLevel is the zerolog level used when LOG_LEVEL is unset.
func (e Environment) DefaultLogLevel() string {
	switch e {
	case Production, Staging:
		return "info"
	case Testing:
		return "warn"
	default:
		return "debug"
	}
}

// ParseEnvironment accepts the canonical names and a few short aliases,
// case-insensitively. Anything else is Development.
func ParseEnvironment(v string) Environment {
	v = strings.ToLower(strings.TrimSpace(v))
	switch env := Environment(v); env {
	case Development, Staging, Testing, Production:
		return env
	}
	if env, ok := environmentAliases[v]; ok {
		return env
	}
	return Development
}

// Decode lets envconfig populate an Environment field directly.
func (e *Environment) Decode(value string) error {
	*e = ParseEnvironment(value)
	return nil
}
