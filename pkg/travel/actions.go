package travel

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// ErrNoPassenger is returned by passenger-scoped actions on a thread without a user.
var ErrNoPassenger = errors.New("no passenger ID configured")

// actionEntry binds one action kind to its metadata and implementation.
type actionEntry struct {
	spec domain.ToolSpec
	run  func(s *Service, ctx context.Context, call domain.ToolCall) (any, error)
}

// bind turns a dispatch table into the service's toolset.
// The array length pins the number of entries; a hole in the table panics here.
func (s *Service) bind(table []actionEntry) []domain.Tool {
	tools := make([]domain.Tool, len(table))
	for i, entry := range table {
		if entry.spec.Name == "" || entry.run == nil {
			panic(fmt.Sprintf("travel: action %d has no table entry", i))
		}
		run := entry.run
		tools[i] = domain.Tool{
			ToolSpec: entry.spec,
			Run: func(ctx context.Context, call domain.ToolCall) (any, error) {
				return run(s, ctx, call)
			},
		}
	}
	return tools
}

// decodeArgs maps proposal arguments onto a typed struct.
// Models send numbers as floats and sometimes as strings; both decode into ints.
func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func passenger(call domain.ToolCall) (string, error) {
	if call.UserID == "" {
		return "", ErrNoPassenger
	}
	return call.UserID, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func safe(name, description string, params ...domain.Param) domain.ToolSpec {
	return domain.ToolSpec{Name: name, Description: description, Params: params, Risk: domain.RiskSafe}
}

func sensitive(name, description string, params ...domain.Param) domain.ToolSpec {
	return domain.ToolSpec{Name: name, Description: description, Params: params, Risk: domain.RiskSensitive}
}

func str(name, description string) domain.Param {
	return domain.Param{Name: name, Type: domain.ParamString, Description: description}
}

func integer(name, description string) domain.Param {
	return domain.Param{Name: name, Type: domain.ParamInteger, Description: description}
}

func required(p domain.Param) domain.Param {
	p.Required = true
	return p
}
