package report

import (
	"fmt"
	"io"
	"strings"
)

// SARIF 2.1.0 output, so CI systems can annotate focus problems like any other finding.
const (
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	ToolInfoURI  = "https://github.com/xkilldash9x/focusmap"
)

// Rule IDs, one per kind of problem.
const (
	RuleOutOfOrder = "focus-order/out-of-order"
	RuleUnexpected = "focus-order/unexpected-stop"
	RuleMissing    = "focus-order/missing-stop"
	RuleScanError  = "focus-order/scan-error"
)

// Pointers are used for optional fields. Required fields use value types.

type sarifLog struct {
	Version string      `json:"version"`
	Schema  string      `json:"$schema"`
	Runs    []*sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool          `json:"tool"`
	Invocations []*sarifInvocation `json:"invocations,omitempty"`
	Results     []*sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifToolComponent `json:"driver"`
}

type sarifToolComponent struct {
	Name           string                      `json:"name"`
	Version        *string                     `json:"version,omitempty"`
	InformationURI *string                     `json:"informationUri,omitempty"`
	Rules          []*sarifReportingDescriptor `json:"rules"`
}

type sarifReportingDescriptor struct {
	ID               string           `json:"id"`
	Name             *string          `json:"name,omitempty"`
	ShortDescription *sarifMessage    `json:"shortDescription,omitempty"`
	DefaultConfig    *sarifRuleConfig `json:"defaultConfiguration,omitempty"`
	Properties       map[string]any   `json:"properties,omitempty"`
}

type sarifRuleConfig struct {
	Level sarifLevel `json:"level"`
}

type sarifInvocation struct {
	ExecutionSuccessful bool   `json:"executionSuccessful"`
	StartTimeUTC        string `json:"startTimeUtc,omitempty"`
}

type sarifResult struct {
	RuleID     string           `json:"ruleId"`
	Level      sarifLevel       `json:"level,omitempty"`
	Message    sarifMessage     `json:"message"`
	Locations  []*sarifLocation `json:"locations,omitempty"`
	Properties map[string]any   `json:"properties,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation *sarifPhysicalLocation `json:"physicalLocation,omitempty"`
	LogicalLocations []*sarifLogical        `json:"logicalLocations,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifLogical struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
	Kind               string `json:"kind,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLevel string

const (
	levelError   sarifLevel = "error"
	levelWarning sarifLevel = "warning"
)

type sarifRule struct {
	id, name, description string
	level                 sarifLevel
}

var sarifRules = []sarifRule{
	{RuleOutOfOrder, "TabStopOutOfOrder", "Focus reached an element before an element that precedes it in the expected tab order.", levelError},
	{RuleUnexpected, "UnexpectedTabStop", "Focus reached an element that is not in the expected tab order.", levelWarning},
	{RuleMissing, "MissingTabStop", "An element in the expected tab order was never focused.", levelError},
	{RuleScanError, "ScanError", "The page could not be analysed.", levelError},
}

type sarifEncoder struct{}

func (sarifEncoder) Encode(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newSARIFLog(r))
}

// newSARIFLog converts r into a SARIF log with one result per problem.
func newSARIFLog(r *Report) *sarifLog {
	rules := make([]*sarifReportingDescriptor, 0, len(sarifRules))
	for _, rule := range sarifRules {
		rules = append(rules, &sarifReportingDescriptor{
			ID:               rule.id,
			Name:             pString(rule.name),
			ShortDescription: &sarifMessage{Text: rule.description},
			DefaultConfig:    &sarifRuleConfig{Level: rule.level},
			Properties:       map[string]any{"tags": []string{"accessibility", "keyboard"}},
		})
	}

	run := &sarifRun{
		Tool: sarifTool{Driver: sarifToolComponent{
			Name:           r.Tool,
			Version:        pString(r.Version),
			InformationURI: pString(ToolInfoURI),
			Rules:          rules,
		}},
		Invocations: []*sarifInvocation{{
			ExecutionSuccessful: r.Summary.Errored == 0,
			StartTimeUTC:        r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}},
		// Empty rather than nil so a clean scan still encodes "results": [].
		Results: []*sarifResult{},
	}
	for _, p := range r.Pages {
		run.Results = append(run.Results, pageResults(p)...)
	}

	return &sarifLog{Version: SARIFVersion, Schema: SARIFSchema, Runs: []*sarifRun{run}}
}

func pageResults(p PageReport) []*sarifResult {
	uri := p.Location
	if uri == "" {
		uri = p.Target
	}
	at := func(selector []string) []*sarifLocation {
		loc := &sarifLocation{PhysicalLocation: &sarifPhysicalLocation{ArtifactLocation: sarifArtifactLocation{URI: uri}}}
		if len(selector) > 0 {
			loc.LogicalLocations = []*sarifLogical{{FullyQualifiedName: strings.Join(selector, " >> "), Kind: "element"}}
		}
		return []*sarifLocation{loc}
	}

	if p.Error != "" {
		return []*sarifResult{{
			RuleID:    RuleScanError,
			Level:     levelError,
			Message:   sarifMessage{Text: fmt.Sprintf("%s could not be analysed: %s", p.Target, p.Error)},
			Locations: at(nil),
		}}
	}

	var results []*sarifResult
	for _, s := range p.Stops {
		var rule string
		var level sarifLevel
		switch s.Problem {
		case ProblemOutOfOrder:
			rule, level = RuleOutOfOrder, levelError
		case ProblemUnexpected:
			rule, level = RuleUnexpected, levelWarning
		default:
			continue
		}
		results = append(results, &sarifResult{
			RuleID:     rule,
			Level:      level,
			Message:    sarifMessage{Text: fmt.Sprintf("Tab stop %d (%s) is %s.", s.Position, strings.Join(s.Target, " >> "), strings.ReplaceAll(s.Problem, "_", " "))},
			Locations:  at(s.Target),
			Properties: map[string]any{"position": s.Position, "mode": string(p.Mode)},
		})
	}
	for _, m := range p.Missing {
		results = append(results, &sarifResult{
			RuleID:     RuleMissing,
			Level:      levelError,
			Message:    sarifMessage{Text: fmt.Sprintf("%s never received focus.", m)},
			Locations:  at([]string{m}),
			Properties: map[string]any{"mode": string(p.Mode)},
		})
	}
	return results
}

func pString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
