package action

import (
	"context"

	"github.com/xraph/beacon/workflow"
)

// Branch picks the first branch whose conditions all hold, or the default.
// Order is significant: this is first match, not best match.
type Branch struct{ deps Deps }

// Kind implements Action.
func (a *Branch) Kind() workflow.ActionKind { return workflow.ActionBranch }

// Execute implements Action.
func (a *Branch) Execute(_ context.Context, req *Request) (Result, error) {
	var cfg workflow.BranchConfig
	if err := workflow.DecodeConfig(req.Step.Config, &cfg); err != nil {
		return Result{}, err
	}

	for i, b := range cfg.Branches {
		ok, err := a.deps.Evaluator.All(b.Conditions, req.Env)
		if err != nil {
			return Result{}, err
		}
		if ok {
			res := Succeeded("matched branch "+b.Name, map[string]any{"branch": b.Name, "index": i})
			res.BranchPath = b.Name
			return res, nil
		}
	}

	if cfg.Default == "" {
		return Succeeded("no branch matched", map[string]any{"branch": ""}), nil
	}
	res := Succeeded("default branch "+cfg.Default, map[string]any{"branch": cfg.Default, "default": true})
	res.BranchPath = cfg.Default
	return res, nil
}
