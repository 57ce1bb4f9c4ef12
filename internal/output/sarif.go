package output

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"

	"github.com/facetlabs/facet/internal/errs"
	"github.com/facetlabs/facet/internal/review"
)

// SARIFWriter outputs findings in SARIF 2.1.0 format for CI integration.
type SARIFWriter struct{}

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine,omitempty"`
}

func (s *SARIFWriter) Write(w io.Writer, summary *review.Summary) error {
	run := sarifRun{
		Tool: sarifTool{
			Driver: sarifDriver{
				Name:           "facet",
				InformationURI: "https://github.com/facetlabs/facet",
			},
		},
		Results: []sarifResult{},
	}

	seenRules := make(map[string]bool)
	for _, f := range summary.Findings {
		ruleID := findingRuleID(f)
		if !seenRules[ruleID] {
			seenRules[ruleID] = true
			run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
				ID:               ruleID,
				ShortDescription: sarifMessage{Text: f.Title},
			})
		}
		run.Results = append(run.Results, sarifResult{
			RuleID:    ruleID,
			Level:     priorityToLevel(f.Priority),
			Message:   sarifMessage{Text: f.Body},
			Locations: findingLocations(f),
		})
	}

	log := sarifLog{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Runs:    []sarifRun{run},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(log); err != nil {
		return errs.ExecFailureWrap(err, "encode SARIF output")
	}
	return nil
}

func priorityToLevel(p review.Priority) string {
	switch p {
	case review.PriorityP0, review.PriorityP1:
		return "error"
	case review.PriorityP2:
		return "warning"
	default:
		return "note"
	}
}

// findingRuleID derives a stable rule identifier from the finding's
// priority and title so repeated runs map the same finding to the
// same rule.
func findingRuleID(f review.Finding) string {
	h := sha256.Sum256([]byte(string(f.Priority) + "/" + f.Title))
	return fmt.Sprintf("facet/%s/%x", f.Priority, h[:4])
}

func findingLocations(f review.Finding) []sarifLocation {
	loc := f.CodeLocation
	if loc.RepoRelativePath == "" {
		return nil
	}
	phys := sarifPhysicalLocation{
		ArtifactLocation: sarifArtifactLocation{URI: loc.RepoRelativePath},
	}
	if loc.LineRange.Start > 0 {
		phys.Region = &sarifRegion{StartLine: loc.LineRange.Start, EndLine: loc.LineRange.End}
	}
	return []sarifLocation{{PhysicalLocation: phys}}
}
