package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/contentbuilder/internal/config"
	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
)

// ValidateCmd implements the 'validate' command.
type ValidateCmd struct {
	FailFast bool `name:"fail-fast" help:"Stop at the first invalid document instead of reporting all of them"`
}

func (v *ValidateCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	return RunValidate(context.Background(), g, cfg, v.FailFast)
}

// RunValidate checks every content file against its schema. Unless failFast
// is set, all invalid documents are reported before failing.
func RunValidate(ctx context.Context, g *Global, cfg *config.Config, failFast bool) error {
	cfg.Build.FailurePolicy = config.FailurePolicySkipInvalid
	if failFast {
		cfg.Build.FailurePolicy = config.FailurePolicyFailFast
	}
	rt, err := newRuntime(cfg, g.Logger, runtimeValidate)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	result, err := rt.builder.Validate(ctx)
	printResult(g.Stdout, "Validated", result)
	if err != nil {
		return err
	}
	if n := len(result.Failures); n > 0 {
		return errors.ValidationError(fmt.Sprintf("%d invalid documents", n)).
			WithContext("count", n).
			Build()
	}
	return nil
}
