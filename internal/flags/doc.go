// Package flags resolves the start-up flags handed to the front-end
// application. It reads named variables from an injected Source, applies the
// deployment-mode policy, validates optional resource locators and, when a host
// can report one, records the viewport size. The result is an immutable Flags
// value that serializes to the JSON object the front-end init call expects.
package flags
