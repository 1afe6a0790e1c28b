package flags

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
)

type failingMetrics struct {
	err error
}

func (f failingMetrics) Viewport() (Viewport, error) {
	return Viewport{}, f.err
}

type countingMetrics struct {
	calls int
	vp    Viewport
}

func (c *countingMetrics) Viewport() (Viewport, error) {
	c.calls++
	return c.vp, nil
}

func newTestResolver(t *testing.T, policy Policy) *Resolver {
	t.Helper()

	r, err := NewResolver(policy, WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}
	return r
}

func marshal(t *testing.T, f Flags) string {
	t.Helper()

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal flags: %v", err)
	}
	return string(data)
}

func TestResolveProductionWithoutMetrics(t *testing.T) {
	r := newTestResolver(t, DefaultPolicy())
	src := NewMapSource(map[string]string{
		"NODE_ENV":          "production",
		"ELM_APP_MEALS_URL": "https://api.example.com/meals",
	})

	got, err := r.Resolve(src, nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if got.Environment() != "production" {
		t.Fatalf("expected production, got %q", got.Environment())
	}
	meals, known := got.Locator("mealsUrl")
	if !known {
		t.Fatalf("expected mealsUrl to be a known locator")
	}
	if v, ok := meals.Value(); !ok || v != "https://api.example.com/meals" {
		t.Fatalf("unexpected mealsUrl: %s", meals)
	}
	recipes, _ := got.Locator("recipesUrl")
	if recipes.Present() {
		t.Fatalf("expected recipesUrl to be absent, got %s", recipes)
	}
	if _, ok := got.Viewport(); ok {
		t.Fatalf("expected no viewport without a metrics provider")
	}

	want := `{"environment":"production","mealsUrl":"https://api.example.com/meals","recipesUrl":null}`
	if payload := marshal(t, got); payload != want {
		t.Fatalf("unexpected payload:\n got %s\nwant %s", payload, want)
	}
}

func TestResolveEmptySourceAppliesDefaultMode(t *testing.T) {
	r := newTestResolver(t, DefaultPolicy())

	got, err := r.Resolve(NewMapSource(nil), nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	want := `{"environment":"development","mealsUrl":null,"recipesUrl":null}`
	if payload := marshal(t, got); payload != want {
		t.Fatalf("unexpected payload:\n got %s\nwant %s", payload, want)
	}
}

func TestResolveWithViewport(t *testing.T) {
	r := newTestResolver(t, DefaultPolicy())
	src := NewMapSource(map[string]string{"NODE_ENV": "production"})

	got, err := r.Resolve(src, StaticMetrics{Width: 1440, Height: 900})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	vp, ok := got.Viewport()
	if !ok || vp.Width != 1440 || vp.Height != 900 {
		t.Fatalf("unexpected viewport %+v (known=%v)", vp, ok)
	}
	payload := marshal(t, got)
	if !strings.HasSuffix(payload, `"width":1440,"height":900}`) {
		t.Fatalf("expected width and height in payload, got %s", payload)
	}
}

func TestResolveRequiredModeMissing(t *testing.T) {
	policy := DefaultPolicy()
	policy.RequireMode = true
	r := newTestResolver(t, policy)

	_, err := r.Resolve(NewMapSource(map[string]string{"ELM_APP_MEALS_URL": "https://api.example.com"}), nil)
	if !errors.Is(err, ErrMissingRequiredConfig) {
		t.Fatalf("expected ErrMissingRequiredConfig, got %v", err)
	}

	var fieldErr *FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Key != DefaultModeKey {
		t.Fatalf("expected field error for %s, got %v", DefaultModeKey, err)
	}
}

func TestResolveModeNormalization(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  string
	}{
		{name: "exact", value: "staging", want: "staging"},
		{name: "inner space kept", value: "staging eu", want: "staging eu"},
		{name: "punctuation kept", value: `qa"blue`, want: `qa"blue`},
		{name: "trimmed", value: "  production\n", want: "production"},
		{name: "blank", value: "   ", want: DefaultMode},
		{name: "undefined literal", value: "undefined", want: DefaultMode},
		{name: "null literal", value: "NULL", want: DefaultMode},
	}

	r := newTestResolver(t, DefaultPolicy())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Resolve(NewMapSource(map[string]string{"NODE_ENV": tc.value}), nil)
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}
			if got.Environment() != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got.Environment())
			}
			if strings.Contains(marshal(t, got), "undefined") {
				t.Fatalf("payload leaked undefined")
			}
		})
	}
}

func TestResolveBlankModeRequired(t *testing.T) {
	policy := DefaultPolicy()
	policy.RequireMode = true
	r := newTestResolver(t, policy)

	for _, value := range []string{"", "  ", "undefined"} {
		if _, err := r.Resolve(NewMapSource(map[string]string{"NODE_ENV": value}), nil); !errors.Is(err, ErrMissingRequiredConfig) {
			t.Fatalf("value %q: expected ErrMissingRequiredConfig, got %v", value, err)
		}
	}
}

func TestResolveMalformedMode(t *testing.T) {
	r := newTestResolver(t, DefaultPolicy())

	_, err := r.Resolve(NewMapSource(map[string]string{"NODE_ENV": "prod\x00uction"}), nil)
	if !errors.Is(err, ErrMalformedConfig) {
		t.Fatalf("expected ErrMalformedConfig, got %v", err)
	}
}

func TestResolveLocatorValidation(t *testing.T) {
	valid := []string{
		"https://api.example.com/meals",
		"http://localhost:8080",
		"/api/meals",
		"https://api.example.com/meals?q=\"quoted\"",
	}
	invalid := []string{
		"api.example.com",
		"ftp://files.example.com",
		"https://",
		"//cdn.example.com/meals",
		"undefined",
	}

	r := newTestResolver(t, DefaultPolicy())

	for _, value := range valid {
		got, err := r.Resolve(NewMapSource(map[string]string{"ELM_APP_MEALS_URL": value}), nil)
		if err != nil {
			t.Fatalf("value %q: unexpected error %v", value, err)
		}
		if loc, _ := got.Locator("mealsUrl"); !loc.Present() {
			t.Fatalf("value %q: expected present locator", value)
		}
	}

	for _, value := range invalid {
		_, err := r.Resolve(NewMapSource(map[string]string{"ELM_APP_MEALS_URL": value}), nil)
		if !errors.Is(err, ErrMalformedConfig) {
			t.Fatalf("value %q: expected ErrMalformedConfig, got %v", value, err)
		}
	}
}

func TestResolveEmptyLocatorStaysPresent(t *testing.T) {
	for _, lenient := range []bool{false, true} {
		policy := DefaultPolicy()
		policy.Lenient = lenient
		r := newTestResolver(t, policy)

		got, err := r.Resolve(NewMapSource(map[string]string{
			"NODE_ENV":            "production",
			"ELM_APP_MEALS_URL":   "",
			"ELM_APP_RECIPES_URL": "   ",
		}), nil)
		if err != nil {
			t.Fatalf("lenient=%v: Resolve returned error: %v", lenient, err)
		}

		for _, name := range []string{"mealsUrl", "recipesUrl"} {
			loc, _ := got.Locator(name)
			if v, ok := loc.Value(); !ok || v != "" {
				t.Fatalf("lenient=%v: expected %s present and empty, got %s", lenient, name, loc)
			}
			if loc == Absent() {
				t.Fatalf("lenient=%v: %s must differ from the absent marker", lenient, name)
			}
		}

		want := `{"environment":"production","mealsUrl":"","recipesUrl":""}`
		if payload := marshal(t, got); payload != want {
			t.Fatalf("lenient=%v: unexpected payload:\n got %s\nwant %s", lenient, payload, want)
		}
	}
}

func TestResolveLenientDegradesMalformedLocator(t *testing.T) {
	policy := DefaultPolicy()
	policy.Lenient = true
	r := newTestResolver(t, policy)

	got, err := r.Resolve(NewMapSource(map[string]string{
		"ELM_APP_MEALS_URL":   "not a url",
		"ELM_APP_RECIPES_URL": "https://recipes.example.com",
	}), nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if loc, _ := got.Locator("mealsUrl"); loc.Present() {
		t.Fatalf("expected malformed locator to degrade to absent")
	}
	if loc, _ := got.Locator("recipesUrl"); !loc.Present() {
		t.Fatalf("expected valid locator to stay present")
	}
}

func TestResolveReportsEveryBadField(t *testing.T) {
	policy := DefaultPolicy()
	policy.RequireMode = true
	r := newTestResolver(t, policy)

	_, err := r.Resolve(NewMapSource(map[string]string{
		"ELM_APP_MEALS_URL":   "nope",
		"ELM_APP_RECIPES_URL": "ftp://x",
	}), StaticMetrics{Width: -1, Height: 10})

	errs := multierr.Errors(err)
	if len(errs) != 4 {
		t.Fatalf("expected 4 field errors, got %d: %v", len(errs), err)
	}
	keys := make([]string, 0, len(errs))
	for _, e := range errs {
		var fieldErr *FieldError
		if !errors.As(e, &fieldErr) {
			t.Fatalf("expected *FieldError, got %T", e)
		}
		keys = append(keys, fieldErr.Key)
	}
	if got := strings.Join(keys, ","); got != "NODE_ENV,ELM_APP_MEALS_URL,ELM_APP_RECIPES_URL,width" {
		t.Fatalf("unexpected keys %s", got)
	}
}

func TestResolveViewportProviders(t *testing.T) {
	r := newTestResolver(t, DefaultPolicy())

	t.Run("no viewport", func(t *testing.T) {
		got, err := r.Resolve(NewMapSource(nil), failingMetrics{err: ErrNoViewport})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := got.Viewport(); ok {
			t.Fatalf("expected unknown viewport")
		}
		if strings.Contains(marshal(t, got), "width") {
			t.Fatalf("expected width to be omitted")
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		got, err := r.Resolve(NewMapSource(nil), failingMetrics{err: errors.New("boom")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := got.Viewport(); ok {
			t.Fatalf("expected unknown viewport")
		}
	})

	t.Run("read once", func(t *testing.T) {
		metrics := &countingMetrics{vp: Viewport{Width: 80, Height: 24}}
		if _, err := r.Resolve(NewMapSource(nil), metrics); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if metrics.calls != 1 {
			t.Fatalf("expected a single viewport read, got %d", metrics.calls)
		}
	})

	t.Run("zero is known", func(t *testing.T) {
		got, err := r.Resolve(NewMapSource(nil), StaticMetrics{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := got.Viewport(); !ok {
			t.Fatalf("expected zero viewport to be reported as known")
		}
	})
}

func TestResolveIsDeterministic(t *testing.T) {
	r := newTestResolver(t, DefaultPolicy())
	src := NewMapSource(map[string]string{
		"NODE_ENV":            "production",
		"ELM_APP_RECIPES_URL": "https://recipes.example.com",
	})

	first, err := r.Resolve(src, StaticMetrics{Width: 10, Height: 20})
	if err != nil {
		t.Fatalf("first Resolve returned error: %v", err)
	}
	second, err := r.Resolve(src, StaticMetrics{Width: 10, Height: 20})
	if err != nil {
		t.Fatalf("second Resolve returned error: %v", err)
	}

	if !first.Equal(second) {
		t.Fatalf("expected equal flags, got %s and %s", marshal(t, first), marshal(t, second))
	}
	if marshal(t, first) != marshal(t, second) {
		t.Fatalf("expected identical payloads")
	}
}

func TestResolveNilSource(t *testing.T) {
	r := newTestResolver(t, DefaultPolicy())

	got, err := r.Resolve(nil, nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got.Environment() != DefaultMode {
		t.Fatalf("expected default mode, got %q", got.Environment())
	}
}

func TestNewResolverRejectsInvalidPolicy(t *testing.T) {
	cases := map[string]Policy{
		"empty mode key":   {DefaultMode: "development"},
		"bad default mode": {ModeKey: "NODE_ENV", DefaultMode: ""},
		"reserved name": {ModeKey: "NODE_ENV", DefaultMode: "development",
			Locators: []LocatorSpec{{Name: "width", Key: "WIDTH"}}},
		"duplicate name": {ModeKey: "NODE_ENV", DefaultMode: "development",
			Locators: []LocatorSpec{{Name: "a", Key: "A"}, {Name: "a", Key: "B"}}},
		"duplicate key": {ModeKey: "NODE_ENV", DefaultMode: "development",
			Locators: []LocatorSpec{{Name: "a", Key: "NODE_ENV"}}},
		"missing key": {ModeKey: "NODE_ENV", DefaultMode: "development",
			Locators: []LocatorSpec{{Name: "a"}}},
		"bad name": {ModeKey: "NODE_ENV", DefaultMode: "development",
			Locators: []LocatorSpec{{Name: "meals-url", Key: "A"}}},
	}

	for name, policy := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewResolver(policy); !errors.Is(err, ErrInvalidPolicy) {
				t.Fatalf("expected ErrInvalidPolicy, got %v", err)
			}
		})
	}
}

func TestNewResolverAllowsEmptyDefaultWhenRequired(t *testing.T) {
	if _, err := NewResolver(Policy{ModeKey: "APP_ENV", RequireMode: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
