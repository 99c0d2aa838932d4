package action

import (
	"testing"

	"github.com/xraph/beacon/condition"
)

func TestRender(t *testing.T) {
	env := condition.Env{
		Subject: map[string]any{
			"first_name": "Ada",
			"score":      72.5,
			"company":    map[string]any{"name": "Analytical"},
			"nothing":    nil,
		},
		Variables: map[string]any{
			"branch": "vip",
			"event":  map[string]any{"data": map[string]any{"plan": "pro"}},
		},
	}

	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"Hi {{first_name}}!", "Hi Ada!"},
		{"Hi {{ first_name }}", "Hi Ada"},
		{"score {{score}}", "score 72.5"},
		{"at {{company.name}}", "at Analytical"},
		{"path {{vars.branch}}", "path vip"},
		{"plan {{vars.event.data.plan}}", "plan pro"},
		{"[{{missing}}]", "[]"},
		{"[{{nothing}}]", "[]"},
		{"[{{vars.missing}}]", "[]"},
		{"{{first_name}} & {{vars.branch}}", "Ada & vip"},
		{"{{not closed", "{{not closed"},
	}
	for _, tt := range tests {
		if got := Render(tt.in, env); got != tt.want {
			t.Errorf("Render(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
