// Package rule compiles declarative matching rules into executable form
// and builds measurement points from matched messages.
package rule

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/GabrielNunesIT/go-libs/logger"
)

// MatchSpec names the message key a rule matches and the pattern applied
// to its value.
type MatchSpec struct {
	Key   string `koanf:"key"`
	Regex string `koanf:"regex"`
}

// Definition is the declarative form of a rule as it appears in
// configuration. Field and tag lookups arrive untyped (a bare string or a
// {lookup, type} map) and are normalized during compilation.
type Definition struct {
	Name   string         `koanf:"name"`
	Match  MatchSpec      `koanf:"match"`
	Fields map[string]any `koanf:"fields"`
	Tags   map[string]any `koanf:"tags"`
}

// Rule is the compiled, immutable form of a Definition. Rules are built
// once at startup (or on a config reload) and shared read-only across all
// concurrent handlers.
type Rule struct {
	Name    string
	Key     string
	Pattern string

	re     *regexp.Regexp
	Fields map[string]Lookup
	Tags   map[string]Lookup
}

// Compile turns an ordered list of definitions into an ordered list of
// compiled rules. Any pattern or lookup spec that fails to compile is an
// error: rules are a startup-time contract, not a runtime-recoverable
// condition. One diagnostic line is emitted per rule.
func Compile(defs []Definition, log logger.ILogger) ([]*Rule, error) {
	log.Info("compiling rule regular expressions...")

	rules := make([]*Rule, 0, len(defs))
	for _, def := range defs {
		r, err := compileOne(def)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", def.Name, err)
		}
		log.Infof("%s: '%s' regexp: %s", r.Name, r.Key, r.Pattern)
		rules = append(rules, r)
	}

	log.Info("done")
	return rules, nil
}

// compileOne compiles a single definition.
func compileOne(def Definition) (*Rule, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("rule name is required")
	}
	if def.Match.Key == "" {
		return nil, fmt.Errorf("match key is required")
	}

	// Anchor to the start of the value; trailing unmatched text is allowed.
	re, err := regexp.Compile(`\A(?:` + def.Match.Regex + `)`)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", def.Match.Regex, err)
	}

	fields, err := parseLookups(def.Fields)
	if err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	tags, err := parseLookups(def.Tags)
	if err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}

	return &Rule{
		Name:    def.Name,
		Key:     def.Match.Key,
		Pattern: def.Match.Regex,
		re:      re,
		Fields:  fields,
		Tags:    tags,
	}, nil
}

// Match exposes the named capture groups of one rule evaluation. It exists
// only while a single message is processed against a single rule.
type Match struct {
	groups map[string]string
}

// Group returns the named capture group's value and whether the group
// participated in the match.
func (m *Match) Group(name string) (string, bool) {
	v, ok := m.groups[name]
	return v, ok
}

// Groups returns all participating named capture groups.
func (m *Match) Groups() map[string]string {
	return m.groups
}

// Eval evaluates the rule's pattern against a message field value using
// match-from-start semantics. Surrounding whitespace is trimmed first.
// Returns nil if the value does not match.
func (r *Rule) Eval(value string) *Match {
	v := strings.TrimSpace(value)

	idx := r.re.FindStringSubmatchIndex(v)
	if idx == nil {
		return nil
	}

	groups := make(map[string]string)
	for i, name := range r.re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		// Non-participating groups stay absent.
		if 2*i+1 < len(idx) && idx[2*i] >= 0 {
			groups[name] = v[idx[2*i]:idx[2*i+1]]
		}
	}
	return &Match{groups: groups}
}
