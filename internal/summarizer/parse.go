package summarizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wolfman30/triage-ai-platform/internal/consultation"
)

type payload struct {
	Summary    *summaryPayload      `json:"summary"`
	Urgency    *string              `json:"urgency"`
	Hypotheses *[]hypothesisPayload `json:"hypotheses"`
}

type summaryPayload struct {
	SOAP            *consultation.SOAP `json:"soap"`
	QueixaPrincipal string             `json:"queixa_principal"`
	ResumoGeral     string             `json:"resumo_geral"`
}

type hypothesisPayload struct {
	Hypothesis    string `json:"hypothesis"`
	Probability   string `json:"probability"`
	Justification string `json:"justification"`
}

// Parse validates raw model output into an Analysis. The model response is
// untrusted: the shape must match exactly and urgency must be a known level.
// Unknown hypothesis probabilities are cleared and nameless hypotheses dropped.
func Parse(raw string) (consultation.Analysis, error) {
	text := stripCodeFence(raw)
	if text == "" {
		return consultation.Analysis{}, fail(ReasonEmpty, nil)
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	var p payload
	if err := dec.Decode(&p); err != nil {
		return consultation.Analysis{}, fail(ReasonMalformed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return consultation.Analysis{}, fail(ReasonMalformed, errors.New("trailing data after JSON value"))
	}
	if p.Summary == nil || p.Summary.SOAP == nil {
		return consultation.Analysis{}, fail(ReasonMalformed, errors.New("summary.soap is missing"))
	}
	if p.Hypotheses == nil {
		return consultation.Analysis{}, fail(ReasonMalformed, errors.New("hypotheses is missing"))
	}
	if p.Urgency == nil {
		return consultation.Analysis{}, fail(ReasonInvalidUrgency, errors.New("urgency is missing"))
	}
	urgency, ok := consultation.ParseUrgency(*p.Urgency)
	if !ok {
		return consultation.Analysis{}, fail(ReasonInvalidUrgency, fmt.Errorf("unknown urgency %q", *p.Urgency))
	}

	summary := consultation.ClinicalSummary{
		SOAP: consultation.SOAP{
			Subjetivo: strings.TrimSpace(p.Summary.SOAP.Subjetivo),
			Objetivo:  strings.TrimSpace(p.Summary.SOAP.Objetivo),
			Avaliacao: strings.TrimSpace(p.Summary.SOAP.Avaliacao),
			Plano:     strings.TrimSpace(p.Summary.SOAP.Plano),
		},
		QueixaPrincipal: strings.TrimSpace(p.Summary.QueixaPrincipal),
		ResumoGeral:     strings.TrimSpace(p.Summary.ResumoGeral),
	}
	if missing := missingSummaryFields(summary); len(missing) > 0 {
		return consultation.Analysis{}, fail(ReasonInvalidSummary, fmt.Errorf("empty fields: %s", strings.Join(missing, ", ")))
	}

	hypotheses := make([]consultation.Hypothesis, 0, len(*p.Hypotheses))
	for _, h := range *p.Hypotheses {
		name := strings.TrimSpace(h.Hypothesis)
		if name == "" {
			continue
		}
		probability, _ := consultation.ParseProbability(h.Probability)
		hypotheses = append(hypotheses, consultation.Hypothesis{
			Hypothesis:    name,
			Probability:   probability,
			Justification: strings.TrimSpace(h.Justification),
		})
	}

	return consultation.Analysis{
		Summary:    summary,
		Hypotheses: hypotheses,
		Urgency:    urgency,
	}, nil
}

func missingSummaryFields(s consultation.ClinicalSummary) []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"soap.subjetivo", s.SOAP.Subjetivo},
		{"soap.objetivo", s.SOAP.Objetivo},
		{"soap.avaliacao", s.SOAP.Avaliacao},
		{"soap.plano", s.SOAP.Plano},
		{"queixa_principal", s.QueixaPrincipal},
		{"resumo_geral", s.ResumoGeral},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// stripCodeFence removes a leading ``` or ```json marker and a trailing ```.
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(text, "```"); ok {
		if len(rest) >= 4 && strings.EqualFold(rest[:4], "json") {
			rest = rest[4:]
		}
		text = strings.TrimSpace(rest)
	}
	text, _ = strings.CutSuffix(text, "```")
	return strings.TrimSpace(text)
}
