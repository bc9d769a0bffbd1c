package config

import (
	"strings"
)

// Resolver supplies case options by section name. Keys a section leaves out,
// and lists it leaves empty, inherit from defaults.
type Resolver interface {
	Resolve(section string, defaults CaseOptions) (CaseOptions, error)
}

// ResolvedSuite is a suite paired with the options its section resolved to.
type ResolvedSuite struct {
	Name    string
	Section string
	Options CaseOptions
}

// Resolve looks up a section from the sections table. A section that does
// not exist is a ConfigurationError.
func (c *Config) Resolve(section string, defaults CaseOptions) (CaseOptions, error) {
	key := strings.ToLower(strings.TrimSpace(section))
	opts, ok := c.Sections[key]
	if !ok {
		return CaseOptions{}, &ConfigurationError{Section: section, Err: ErrSectionNotFound}
	}
	return opts.WithDefaults(defaults), nil
}

// DefaultOptions resolves the defaults section against the built-in option
// set.
func (c *Config) DefaultOptions() CaseOptions {
	return c.Defaults.WithDefaults(BuiltinCaseOptions())
}

// ResolveSuites resolves every configured suite in declaration order. With no
// suites configured a single suite named "default" runs the defaults section.
func (c *Config) ResolveSuites() ([]ResolvedSuite, error) {
	defaults := c.DefaultOptions()
	if len(c.Suites) == 0 {
		return []ResolvedSuite{{Name: DefaultSuiteName, Options: defaults}}, nil
	}
	return ResolveAll(c, c.Suites, defaults)
}

// ResolveAll resolves each suite through r, failing on the first section that
// cannot be resolved.
func ResolveAll(r Resolver, suites []SuiteConfig, defaults CaseOptions) ([]ResolvedSuite, error) {
	out := make([]ResolvedSuite, 0, len(suites))
	for _, s := range suites {
		section := s.SectionName()
		opts, err := r.Resolve(section, defaults)
		if err != nil {
			return nil, err
		}
		out = append(out, ResolvedSuite{
			Name:    strings.TrimSpace(s.Name),
			Section: section,
			Options: opts,
		})
	}
	return out, nil
}
