package pipeline

import (
	"context"
	"strings"
	"unicode/utf8"

	"frameworks/truthcheck/internal/pipelinestate"
)

const (
	nonWikiTextMaxLen = 50
	nonWikiMinTokens  = 2
)

var requiredIntents = []string{"official_statement", "fact_check", "origin_trace"}

// querygenLLMResult is the shape asked of the querygen client.
type querygenLLMResult struct {
	Queries []struct {
		Type   string `json:"type"`
		Text   string `json:"text"`
		Intent string `json:"intent"`
		Stance string `json:"stance"`
	} `json:"queries"`
}

const querygenSystemPrompt = `You generate search queries to fact-check a claim.
Respond with ONLY JSON: {"queries": [{"type": "news"|"web"|"verification"|"direct", "text": "...", "intent": "official_statement"|"fact_check"|"origin_trace"|"general", "stance": "support"|"skeptic"}]}
Each query's text must be under 50 characters, contain no ':' ',' '.' characters, and have at least 2 words.
Do not include a "wiki" type query; that is generated separately.`

// querygen implements S2. It asks the LLM for candidate query
// variants, then enforces the structural rules itself, whatever the
// model returned: exactly one wiki query, the length/token/punctuation
// constraints on non-wiki text, required intents, dual support/skeptic
// stance for news/verification types, and a cap on non-wiki queries.
// The cap is applied last: the first query of each required intent is
// kept ahead of the others, and stance-fill variants beyond the cap are
// dropped, so dual stance is not guaranteed once the cap is reached.
func (p *Pipeline) querygen(ctx context.Context, state *pipelinestate.State) error {
	if state.HasStage(StageQuerygen) {
		return nil
	}

	variants := []pipelinestate.QueryVariant{{
		Type:       "wiki",
		Text:       state.ClaimText,
		SearchMode: "vector",
		Meta: pipelinestate.QueryVariantMeta{
			ClaimID:       state.AnalysisID,
			Mode:          string(state.ClaimMode),
			QueryStrategy: "wiki_vector_single",
		},
	}}

	queryCap := nonWikiCap(p)
	candidates := p.generateNonWikiCandidates(ctx, state)
	candidates = enforceNonWikiRules(candidates, state)
	candidates = ensureRequiredIntents(candidates, state)
	candidates = ensureDualStance(candidates)
	if len(candidates) > queryCap {
		var first, rest []pipelinestate.QueryVariant
		kept := map[string]bool{}
		for _, v := range candidates {
			required := false
			for _, intent := range requiredIntents {
				required = required || v.Meta.Intent == intent
			}
			if required && !kept[v.Meta.Intent] {
				kept[v.Meta.Intent] = true
				first = append(first, v)
			} else {
				rest = append(rest, v)
			}
		}
		candidates = append(first, rest...)[:queryCap]
	}
	variants = append(variants, candidates...)

	state.QueryVariants = variants
	state.LogStage(StageQuerygen, map[string]any{"query_count": len(variants)}, variants)
	return nil
}

func nonWikiCap(p *Pipeline) int {
	if p.Config.Stage3WebQueryCapPerClaim > 0 {
		return p.Config.Stage3WebQueryCapPerClaim
	}
	return 3
}

func (p *Pipeline) generateNonWikiCandidates(ctx context.Context, state *pipelinestate.State) []pipelinestate.QueryVariant {
	if p.LLM == nil || p.LLM.Querygen == nil {
		return fallbackQueryVariants(state)
	}
	var out querygenLLMResult
	if _, err := p.LLM.Querygen.CallJSON(ctx, querygenSystemPrompt, state.ClaimText, 512, 0.3, &out); err != nil {
		return fallbackQueryVariants(state)
	}
	variants := make([]pipelinestate.QueryVariant, 0, len(out.Queries))
	for _, q := range out.Queries {
		if q.Type == "" || q.Type == "wiki" {
			continue
		}
		stance := pipelinestate.StanceNeutral
		if q.Stance == "support" {
			stance = pipelinestate.StanceSupport
		} else if q.Stance == "skeptic" {
			stance = pipelinestate.StanceSkeptic
		}
		variants = append(variants, pipelinestate.QueryVariant{
			Type: q.Type,
			Text: q.Text,
			Meta: pipelinestate.QueryVariantMeta{
				ClaimID: state.AnalysisID,
				Intent:  q.Intent,
				Mode:    string(state.ClaimMode),
				Stance:  stance,
			},
		})
	}
	if len(variants) == 0 {
		return fallbackQueryVariants(state)
	}
	return variants
}

// fallbackQueryVariants builds a minimal valid candidate set directly
// from claim keywords when the LLM is unavailable or returns nothing
// usable.
func fallbackQueryVariants(state *pipelinestate.State) []pipelinestate.QueryVariant {
	keywords := strings.Fields(state.ClaimText)
	text := strings.Join(truncateWords(keywords, 4), " ")
	if text == "" {
		text = "claim verification"
	}
	return []pipelinestate.QueryVariant{
		{
			Type: "news",
			Text: sanitizeQueryText(text),
			Meta: pipelinestate.QueryVariantMeta{ClaimID: state.AnalysisID, Intent: "fact_check", Stance: pipelinestate.StanceSkeptic},
		},
		{
			Type: "verification",
			Text: sanitizeQueryText(text),
			Meta: pipelinestate.QueryVariantMeta{ClaimID: state.AnalysisID, Intent: "official_statement", Stance: pipelinestate.StanceSupport},
		},
	}
}

func truncateWords(words []string, n int) []string {
	if len(words) <= n {
		return words
	}
	return words[:n]
}

// sanitizeQueryText enforces non-wiki text constraints: strip
// punctuation the spec forbids, collapse whitespace, and truncate to
// the max length.
func sanitizeQueryText(text string) string {
	replacer := strings.NewReplacer(":", " ", ",", " ", ".", " ")
	cleaned := strings.Join(strings.Fields(replacer.Replace(text)), " ")
	if utf8.RuneCountInString(cleaned) > nonWikiTextMaxLen {
		runes := []rune(cleaned)
		cleaned = strings.TrimSpace(string(runes[:nonWikiTextMaxLen]))
	}
	return cleaned
}

func enforceNonWikiRules(variants []pipelinestate.QueryVariant, state *pipelinestate.State) []pipelinestate.QueryVariant {
	out := make([]pipelinestate.QueryVariant, 0, len(variants))
	for _, v := range variants {
		v.Text = sanitizeQueryText(v.Text)
		if v.Text == "" || len(strings.Fields(v.Text)) < nonWikiMinTokens {
			continue
		}
		if v.Meta.ClaimID == "" {
			v.Meta.ClaimID = state.AnalysisID
		}
		out = append(out, v)
	}
	return out
}

// ensureRequiredIntents appends a fallback query for any of
// {official_statement, fact_check, origin_trace} missing from the
// candidate set, built from the claim's own keywords so it still
// passes enforceNonWikiRules's constraints.
func ensureRequiredIntents(variants []pipelinestate.QueryVariant, state *pipelinestate.State) []pipelinestate.QueryVariant {
	present := map[string]bool{}
	for _, v := range variants {
		present[v.Meta.Intent] = true
	}
	base := sanitizeQueryText(state.ClaimText)
	for _, intent := range requiredIntents {
		if present[intent] {
			continue
		}
		text := base
		if len(strings.Fields(text)) < nonWikiMinTokens {
			text = sanitizeQueryText(state.ClaimText + " verification")
		}
		if text == "" {
			continue
		}
		variants = append(variants, pipelinestate.QueryVariant{
			Type: "verification",
			Text: text,
			Meta: pipelinestate.QueryVariantMeta{
				ClaimID: state.AnalysisID,
				Intent:  intent,
				Mode:    string(state.ClaimMode),
				Stance:  pipelinestate.StanceNeutral,
			},
		})
	}
	return variants
}

// ensureDualStance guarantees that for every news/verification query
// text, both a support and a skeptic stance variant exist (§4.6's
// "duplication across stance is permitted; dedup keeps
// same-text-different-stance").
func ensureDualStance(variants []pipelinestate.QueryVariant) []pipelinestate.QueryVariant {
	type key struct{ typ, text string }
	stances := map[key]map[pipelinestate.Stance]bool{}
	for _, v := range variants {
		if v.Type != "news" && v.Type != "verification" {
			continue
		}
		k := key{v.Type, v.Text}
		if stances[k] == nil {
			stances[k] = map[pipelinestate.Stance]bool{}
		}
		stances[k][v.Meta.Stance] = true
	}
	for k, seen := range stances {
		for _, want := range []pipelinestate.Stance{pipelinestate.StanceSupport, pipelinestate.StanceSkeptic} {
			if seen[want] {
				continue
			}
			variants = append(variants, pipelinestate.QueryVariant{
				Type: k.typ,
				Text: k.text,
				Meta: pipelinestate.QueryVariantMeta{Stance: want, QueryStrategy: "dual_stance_fill"},
			})
		}
	}
	return variants
}
