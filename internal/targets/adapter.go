// Package targets defines the closed set of chatbot adapters the
// benchmark can drive. An adapter carries the UI contract for one
// chatbot: entry URL, input/submit/response selectors, and wait
// budget. Adding a chatbot means adding a variant here, not switching
// on target names elsewhere.
package targets

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/microsoft/chatbench/internal/config"
)

// Selectors is the DOM contract for one chatbot UI. Each field is a
// CSS selector list; the first match wins.
type Selectors struct {
	Input    string   `mapstructure:"input_selector"`
	Submit   string   `mapstructure:"submit_selector"`
	Response string   `mapstructure:"response_selector"`
	Consent  []string `mapstructure:"consent_selectors"`
}

// genericConsentSelectors dismiss the common cookie banner shapes.
var genericConsentSelectors = []string{
	`button[id*="accept"]`,
	`button[aria-label*="Accept"]`,
	`button[data-testid*="accept"]`,
	`#onetrust-accept-btn-handler`,
}

// Adapter binds one configured target to its UI contract.
type Adapter struct {
	id        string
	kind      string
	url       string
	selectors Selectors
	maxWait   time.Duration
}

// Built-in adapter kinds with selector defaults tuned per chatbot.
// Params in the target config override individual fields.
var builtins = map[string]struct {
	url       string
	selectors Selectors
}{
	"copilot": {
		url: "https://copilot.microsoft.com/",
		selectors: Selectors{
			Input:    `textarea, [contenteditable="true"], #userInput, .cib-serp-main textarea`,
			Submit:   `button[aria-label*="Submit"], button[aria-label*="Send"], button[type="submit"], .submit-button`,
			Response: `.ac-textBlock, [class*="text-message-content"], .response-message-group, cib-message-group[source="bot"]`,
		},
	},
	"chatgpt": {
		url: "https://chatgpt.com/",
		selectors: Selectors{
			Input:    `#prompt-textarea, textarea[placeholder*="Message"], div[contenteditable="true"], textarea`,
			Submit:   `button[data-testid="send-button"], button[aria-label*="Send message"], form button[type="submit"]`,
			Response: `[data-message-author-role="assistant"], div[class*="markdown"], .prose, article[data-testid*="conversation"]`,
		},
	},
	"gemini": {
		url: "https://gemini.google.com/app",
		selectors: Selectors{
			Input:    `.ql-editor, rich-textarea div[contenteditable="true"], div[contenteditable="true"], textarea`,
			Submit:   `button[aria-label*="Send"], button.send-button, button[mattooltip*="Send"]`,
			Response: `.model-response-text, .response-container, message-content, .markdown-main-panel`,
		},
	},
	"claude": {
		url: "https://claude.ai/new",
		selectors: Selectors{
			Input:    `div[contenteditable="true"], .ProseMirror, textarea, [data-testid="chat-input"]`,
			Submit:   `button[aria-label*="Send"], button[type="submit"], [data-testid="send-button"]`,
			Response: `[data-testid="assistant-message"], .font-claude-message, .prose`,
		},
	},
}

// Kinds returns the built-in adapter variant names, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(builtins))
	for k := range builtins {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// New builds the adapter for one target config. The adapter kind must
// be one of the built-in variants; params may override any selector.
func New(cfg config.TargetConfig) (*Adapter, error) {
	builtin, ok := builtins[cfg.Adapter]
	if !ok {
		return nil, fmt.Errorf("targets: unknown adapter %q (supported: copilot, chatgpt, gemini, claude)", cfg.Adapter)
	}

	a := &Adapter{
		id:        cfg.ID,
		kind:      cfg.Adapter,
		url:       builtin.url,
		selectors: builtin.selectors,
		maxWait:   cfg.MaxWait(),
	}
	a.selectors.Consent = append([]string(nil), genericConsentSelectors...)

	if cfg.URL != "" {
		a.url = cfg.URL
	}

	if len(cfg.Params) > 0 {
		var overrides Selectors
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:      &overrides,
			ErrorUnused: true,
		})
		if err != nil {
			return nil, fmt.Errorf("targets: %s: %w", cfg.ID, err)
		}
		if err := decoder.Decode(cfg.Params); err != nil {
			return nil, fmt.Errorf("targets: %s: invalid params: %w", cfg.ID, err)
		}
		if overrides.Input != "" {
			a.selectors.Input = overrides.Input
		}
		if overrides.Submit != "" {
			a.selectors.Submit = overrides.Submit
		}
		if overrides.Response != "" {
			a.selectors.Response = overrides.Response
		}
		if len(overrides.Consent) > 0 {
			a.selectors.Consent = overrides.Consent
		}
	}

	return a, nil
}

// ID returns the configured target identifier.
func (a *Adapter) ID() string { return a.id }

// Kind returns the adapter variant name.
func (a *Adapter) Kind() string { return a.kind }

// URL returns the conversation entry point.
func (a *Adapter) URL() string { return a.url }

// Selectors returns the effective DOM contract.
func (a *Adapter) Selectors() Selectors { return a.selectors }

// MaxWait returns the response wait budget.
func (a *Adapter) MaxWait() time.Duration { return a.maxWait }
