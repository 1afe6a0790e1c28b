package flags

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// DefaultModeKey is the environment key holding the deployment mode.
	DefaultModeKey = "NODE_ENV"
	// DefaultMode is applied when the mode is unset and not required.
	DefaultMode = "development"

	fieldEnvironment = "environment"
	fieldWidth       = "width"
	fieldHeight      = "height"
)

var (
	namePattern     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	reservedNames   = map[string]struct{}{fieldEnvironment: {}, fieldWidth: {}, fieldHeight: {}}
	unsetModeValues = map[string]struct{}{"undefined": {}, "null": {}}
)

// LocatorSpec binds a payload field name to the environment key it is read from.
type LocatorSpec struct {
	Name string `yaml:"name"`
	Key  string `yaml:"env"`
}

// DefaultLocators returns the locators read when none are configured.
func DefaultLocators() []LocatorSpec {
	return []LocatorSpec{
		{Name: "mealsUrl", Key: "ELM_APP_MEALS_URL"},
		{Name: "recipesUrl", Key: "ELM_APP_RECIPES_URL"},
	}
}

// Policy fixes how the resolver treats absent and malformed values.
type Policy struct {
	// ModeKey is the environment key of the deployment mode.
	ModeKey string
	// DefaultMode is used when the mode is unset, unless RequireMode is true.
	DefaultMode string
	// RequireMode makes an unset mode fail with ErrMissingRequiredConfig.
	RequireMode bool
	// Locators are resolved in order and appear in the payload in that order.
	Locators []LocatorSpec
	// Lenient degrades malformed locators to absent instead of failing.
	// Empty values are never malformed; they stay present and empty.
	Lenient bool
}

// DefaultPolicy defaults the mode to "development" and reads DefaultLocators.
func DefaultPolicy() Policy {
	return Policy{
		ModeKey:     DefaultModeKey,
		DefaultMode: DefaultMode,
		Locators:    DefaultLocators(),
	}
}

// Resolver turns environment inputs into Flags.
type Resolver struct {
	policy Policy
	logger *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used to report defaults and degraded values.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver validates policy and returns a Resolver bound to a copy of it.
func NewResolver(policy Policy, opts ...Option) (*Resolver, error) {
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	locators := make([]LocatorSpec, len(policy.Locators))
	copy(locators, policy.Locators)
	policy.Locators = locators

	r := &Resolver{
		policy: policy,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve reads the mode, every locator and, when metrics is non-nil, the
// viewport. Every invalid field is reported; the returned error unwraps to
// ErrMissingRequiredConfig or ErrMalformedConfig through a *FieldError per key.
// A nil source behaves as an empty one.
func (r *Resolver) Resolve(source Source, metrics MetricsProvider) (Flags, error) {
	if source == nil {
		source = NewMapSource(nil)
	}

	var errs error

	mode, err := r.resolveMode(source)
	errs = multierr.Append(errs, err)

	locators := make([]namedLocator, 0, len(r.policy.Locators))
	for _, spec := range r.policy.Locators {
		loc, err := r.resolveLocator(source, spec)
		errs = multierr.Append(errs, err)
		locators = append(locators, namedLocator{name: spec.Name, locator: loc})
	}

	viewport, hasViewport, err := r.resolveViewport(metrics)
	errs = multierr.Append(errs, err)

	if errs != nil {
		return Flags{}, errs
	}

	resolved := Flags{
		environment: mode,
		locators:    locators,
		viewport:    viewport,
		hasViewport: hasViewport,
	}

	r.logger.Debug("flags resolved",
		zap.String("environment", mode),
		zap.Int("locators_present", countPresent(locators)),
		zap.Bool("viewport", hasViewport),
	)
	return resolved, nil
}

// resolveMode trims the value; blank, "undefined" and "null" count as unset.
// Any other name is accepted as long as it has no control characters.
func (r *Resolver) resolveMode(source Source) (string, error) {
	raw, ok := source.Lookup(r.policy.ModeKey)
	mode := strings.TrimSpace(raw)
	if _, placeholder := unsetModeValues[strings.ToLower(mode)]; placeholder {
		mode = ""
	}

	if !ok || mode == "" {
		if r.policy.RequireMode {
			return "", missing(r.policy.ModeKey)
		}
		r.logger.Info("deployment mode unset, applying default",
			zap.String("key", r.policy.ModeKey),
			zap.String("default", r.policy.DefaultMode),
		)
		return r.policy.DefaultMode, nil
	}

	if err := validateMode(mode); err != nil {
		return "", malformed(r.policy.ModeKey, "%v", err)
	}
	return mode, nil
}

func (r *Resolver) resolveLocator(source Source, spec LocatorSpec) (Locator, error) {
	raw, ok := source.Lookup(spec.Key)
	if !ok {
		return Absent(), nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return LocatorOf(""), nil
	}
	if err := validateLocator(value); err != nil {
		if r.policy.Lenient {
			r.logger.Warn("ignoring malformed locator",
				zap.String("key", spec.Key),
				zap.String("field", spec.Name),
				zap.Error(err),
			)
			return Absent(), nil
		}
		return Absent(), malformed(spec.Key, "%v", err)
	}
	return LocatorOf(value), nil
}

func (r *Resolver) resolveViewport(metrics MetricsProvider) (Viewport, bool, error) {
	if metrics == nil {
		return Viewport{}, false, nil
	}

	vp, err := metrics.Viewport()
	if err != nil {
		if !errors.Is(err, ErrNoViewport) {
			r.logger.Warn("viewport unavailable", zap.Error(err))
		}
		return Viewport{}, false, nil
	}

	var errs error
	if vp.Width < 0 {
		errs = multierr.Append(errs, malformed(fieldWidth, "negative width %d", vp.Width))
	}
	if vp.Height < 0 {
		errs = multierr.Append(errs, malformed(fieldHeight, "negative height %d", vp.Height))
	}
	if errs != nil {
		return Viewport{}, false, errs
	}
	return vp, true, nil
}

// validateMode accepts any printable name; modes form an open set.
func validateMode(mode string) error {
	for _, r := range mode {
		if unicode.IsControl(r) {
			return fmt.Errorf("mode %q contains control characters", mode)
		}
	}
	return nil
}

// validateLocator accepts absolute http(s) URLs with a host and root-relative paths.
func validateLocator(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}

	if strings.HasPrefix(value, "/") && !strings.HasPrefix(value, "//") {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func validatePolicy(p Policy) error {
	if strings.TrimSpace(p.ModeKey) == "" {
		return fmt.Errorf("%w: mode key is empty", ErrInvalidPolicy)
	}
	if !p.RequireMode {
		if strings.TrimSpace(p.DefaultMode) == "" {
			return fmt.Errorf("%w: default mode is empty", ErrInvalidPolicy)
		}
		if err := validateMode(p.DefaultMode); err != nil {
			return fmt.Errorf("%w: default %v", ErrInvalidPolicy, err)
		}
	}

	names := make(map[string]struct{}, len(p.Locators))
	keys := map[string]struct{}{p.ModeKey: {}}
	for _, spec := range p.Locators {
		if !namePattern.MatchString(spec.Name) {
			return fmt.Errorf("%w: locator name %q must match %s", ErrInvalidPolicy, spec.Name, namePattern)
		}
		if _, reserved := reservedNames[spec.Name]; reserved {
			return fmt.Errorf("%w: locator name %q is reserved", ErrInvalidPolicy, spec.Name)
		}
		if _, dup := names[spec.Name]; dup {
			return fmt.Errorf("%w: duplicate locator name %q", ErrInvalidPolicy, spec.Name)
		}
		if strings.TrimSpace(spec.Key) == "" {
			return fmt.Errorf("%w: locator %q has no environment key", ErrInvalidPolicy, spec.Name)
		}
		if _, dup := keys[spec.Key]; dup {
			return fmt.Errorf("%w: environment key %q is used twice", ErrInvalidPolicy, spec.Key)
		}
		names[spec.Name] = struct{}{}
		keys[spec.Key] = struct{}{}
	}
	return nil
}

func countPresent(locators []namedLocator) int {
	n := 0
	for _, l := range locators {
		if l.locator.Present() {
			n++
		}
	}
	return n
}
