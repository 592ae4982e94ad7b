package gemini

import (
	"context"
	"io"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// citationInstruction asks the model to mark claims with the numbers that
// chat.CitationsFrom assigns to the grounding sources. The service does not
// add markers on its own.
const citationInstruction = "When a statement relies on a search result, cite it inline with a marker " +
	"such as [S1] or [S2], where the number is the 1-based position of the source in the search " +
	"results. Put markers right after the statement and never invent a marker for a source you " +
	"did not use."

// systemInstruction appends the citation rule to the caller's instruction.
func systemInstruction(system string) string {
	system = strings.TrimSpace(system)
	if system == "" {
		return citationInstruction
	}
	return system + "\n\n" + citationInstruction
}

// StreamChat opens a grounded chat exchange. Service errors surface from the
// first Next call.
func (p *Provider) StreamChat(ctx context.Context, req core.ChatRequest) (core.FragmentStream, error) {
	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, core.NewInvalidRequestError("prompt must not be empty")
	}

	cfg := &genai.GenerateContentConfig{
		Tools:             []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		SystemInstruction: genai.NewContentFromText(systemInstruction(req.System), genai.RoleUser),
	}

	p.logger.Debug("chat stream", "model", p.chatModel, "history", len(req.History))
	streamCtx, cancel := context.WithCancel(ctx)
	next, stop := iter.Pull2(c.Models.GenerateContentStream(streamCtx, p.chatModel, buildContents(req), cfg))
	return &fragmentStream{next: next, stop: stop, cancel: cancel}, nil
}

func buildContents(req core.ChatRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := genai.Role(genai.RoleUser)
		if turn.Role == types.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	return append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))
}

// fragmentStream adapts the SDK's push iterator to core.FragmentStream.
type fragmentStream struct {
	next   func() (*genai.GenerateContentResponse, error, bool)
	stop   func()
	cancel context.CancelFunc
	done   bool
}

func (s *fragmentStream) Next() (core.Fragment, error) {
	for !s.done {
		resp, err, ok := s.next()
		if !ok {
			s.done = true
			break
		}
		if err != nil {
			s.done = true
			return core.Fragment{}, mapError("stream chat", err)
		}
		if frag, ok := fragmentFrom(resp); ok {
			return frag, nil
		}
	}
	return core.Fragment{}, io.EOF
}

func (s *fragmentStream) Close() error {
	s.done = true
	s.cancel()
	s.stop()
	return nil
}

// fragmentFrom extracts text, grounding sources, and usage from one streamed
// response. It reports false for chunks that carry none of them.
func fragmentFrom(resp *genai.GenerateContentResponse) (core.Fragment, bool) {
	var frag core.Fragment
	if resp == nil {
		return frag, false
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		cand := resp.Candidates[0]
		if cand.Content != nil {
			var sb strings.Builder
			for _, part := range cand.Content.Parts {
				if part == nil || part.Thought {
					continue
				}
				sb.WriteString(part.Text)
			}
			frag.Text = sb.String()
		}
		frag.Grounding = groundingFrom(cand.GroundingMetadata)
	}

	if u := resp.UsageMetadata; u != nil {
		frag.Usage = &types.Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}

	return frag, frag.Text != "" || frag.Grounding != nil || frag.Usage != nil
}

func groundingFrom(md *genai.GroundingMetadata) *core.Grounding {
	if md == nil || len(md.GroundingChunks) == 0 {
		return nil
	}
	g := &core.Grounding{}
	for _, chunk := range md.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		domain := chunk.Web.Domain
		if domain == "" {
			// The Gemini API puts the source site in the title.
			domain = chunk.Web.Title
		}
		g.Sources = append(g.Sources, core.Source{
			URL:    chunk.Web.URI,
			Title:  chunk.Web.Title,
			Domain: domain,
		})
	}
	if len(g.Sources) == 0 {
		return nil
	}
	return g
}
