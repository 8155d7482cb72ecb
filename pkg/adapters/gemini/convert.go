package gemini

import (
	"strings"

	"github.com/aretw0/handoff/pkg/domain"
	"google.golang.org/genai"
)

var paramTypes = map[domain.ParamType]genai.Type{
	domain.ParamString:  genai.TypeString,
	domain.ParamInteger: genai.TypeInteger,
	domain.ParamNumber:  genai.TypeNumber,
	domain.ParamBoolean: genai.TypeBoolean,
}

// declarations converts a toolset into function declarations.
func declarations(tools []domain.ToolSpec) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		if len(t.Params) > 0 {
			schema := &genai.Schema{
				Type:       genai.TypeObject,
				Properties: make(map[string]*genai.Schema, len(t.Params)),
			}
			for _, p := range t.Params {
				typ, ok := paramTypes[p.Type]
				if !ok {
					typ = genai.TypeString
				}
				schema.Properties[p.Name] = &genai.Schema{Type: typ, Description: p.Description}
				schema.PropertyOrdering = append(schema.PropertyOrdering, p.Name)
				if p.Required {
					schema.Required = append(schema.Required, p.Name)
				}
			}
			decl.Parameters = schema
		}
		out = append(out, decl)
	}
	return out
}

// systemInstruction joins the speaker's instructions with the thread context.
func systemInstruction(req domain.ProposeRequest) *genai.Content {
	text := req.Instructions
	if req.State != nil && req.State.Context != "" {
		text = strings.TrimSpace(text + "\n\nCustomer context:\n" + req.State.Context)
	}
	if text == "" {
		return nil
	}
	return genai.NewContentFromText(text, genai.RoleUser)
}

// contents converts the conversation log. Consecutive messages of the same
// role are merged, so the results of one batch travel together right after
// the proposals they answer.
func contents(req domain.ProposeRequest) []*genai.Content {
	var out []*genai.Content
	add := func(role string, parts ...*genai.Part) {
		if len(parts) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
			return
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}

	if req.State != nil {
		for _, m := range req.State.Messages {
			switch m.Role {
			case domain.RoleUser:
				add(genai.RoleUser, genai.NewPartFromText(m.Content))
			case domain.RoleAssistant:
				var parts []*genai.Part
				if m.Content != "" {
					parts = append(parts, genai.NewPartFromText(m.Content))
				}
				for _, p := range m.Proposals {
					parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
						ID:   p.ID,
						Name: p.Name,
						Args: p.Args,
					}})
				}
				add(genai.RoleModel, parts...)
			case domain.RoleTool:
				if m.Result != nil {
					add(genai.RoleUser, &genai.Part{FunctionResponse: functionResponse(m.Result)})
				}
			}
		}
	}

	if req.Corrective != "" {
		add(genai.RoleUser, genai.NewPartFromText(req.Corrective))
	}
	return out
}

func functionResponse(r *domain.Result) *genai.FunctionResponse {
	key := "output"
	if r.IsError || r.IsDenied {
		key = "error"
	}
	return &genai.FunctionResponse{
		ID:       r.ProposalID,
		Name:     r.Name,
		Response: map[string]any{key: r.Content},
	}
}

// response extracts text and proposals from the first candidate.
// Thought parts are not part of the reply.
func response(resp *genai.GenerateContentResponse) *domain.ModelResponse {
	out := &domain.ModelResponse{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
		if fc := part.FunctionCall; fc != nil {
			out.Proposals = append(out.Proposals, domain.Proposal{
				ID:   fc.ID,
				Name: fc.Name,
				Args: fc.Args,
			})
		}
	}
	out.Text = strings.TrimSpace(text.String())
	return out
}
