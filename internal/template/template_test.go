package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    string
		ctx     *Context
		want    string
		wantErr bool
	}{
		{
			name: "run var PromptID",
			tmpl: "Answering {{.PromptID}}",
			ctx:  &Context{PromptID: "qa-001"},
			want: "Answering qa-001",
		},
		{
			name: "run var RunID",
			tmpl: "Run: {{.RunID}}",
			ctx:  &Context{RunID: "abc-123"},
			want: "Run: abc-123",
		},
		{
			name: "run var Intent and TargetID",
			tmpl: "intent={{.Intent}} target={{.TargetID}}",
			ctx:  &Context{Intent: "factual", TargetID: "chatgpt"},
			want: "intent=factual target=chatgpt",
		},
		{
			name: "prompt vars from context columns",
			tmpl: "See {{.Vars.context_url}} about {{.Vars.topic}}",
			ctx: &Context{
				Vars: map[string]string{
					"context_url": "https://example.com/doc",
					"topic":       "dns",
				},
			},
			want: "See https://example.com/doc about dns",
		},
		{
			name: "no templates passthrough",
			tmpl: "plain prompt with no templates",
			ctx:  &Context{PromptID: "ignored"},
			want: "plain prompt with no templates",
		},
		{
			name: "empty string input",
			tmpl: "",
			ctx:  &Context{},
			want: "",
		},
		{
			name:    "missing run variable",
			tmpl:    "{{.NoSuchField}}",
			ctx:     &Context{},
			wantErr: true,
		},
		{
			name:    "missing Vars key",
			tmpl:    "{{.Vars.missing}}",
			ctx:     &Context{Vars: map[string]string{}},
			wantErr: true,
		},
		{
			name:    "nil Vars map with Vars access",
			tmpl:    "{{.Vars.key}}",
			ctx:     &Context{},
			wantErr: true,
		},
		{
			name: "complex expression with conditional",
			tmpl: `{{if eq .Intent "adversarial"}}HARD{{else}}EASY{{end}}`,
			ctx:  &Context{Intent: "adversarial"},
			want: "HARD",
		},
		{
			name: "mixed run and prompt vars",
			tmpl: "{{.PromptID}}: {{.Vars.lang}} for {{.TargetID}}",
			ctx: &Context{
				PromptID: "code-001",
				TargetID: "claude",
				Vars:     map[string]string{"lang": "go"},
			},
			want: "code-001: go for claude",
		},
		{
			name:    "invalid template syntax",
			tmpl:    "bad {{.Unclosed",
			ctx:     &Context{},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Render(tc.tmpl, tc.ctx)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "template:")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
