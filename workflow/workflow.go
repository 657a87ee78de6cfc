// Package workflow sequences retrieval and generation steps into contract
// analysis and drafting operations over the session's documents.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gamma-omg/procurement-mcp/llm"
)

var (
	// ErrMissingInput: neither an initial draft nor contract parameters
	// were supplied.
	ErrMissingInput = errors.New("either initial_draft or contract_params must be provided")
	// ErrNoPolicies: the session holds no documents; no model call is
	// made in this case.
	ErrNoPolicies = errors.New("no policies uploaded, upload policy documents first")
	// ErrNoRelevantContext: retrieval produced an empty context for a
	// step that requires one.
	ErrNoRelevantContext = errors.New("no relevant policies found in uploaded documents")
)

// Retriever is the session store read path the workflow consumes.
type Retriever interface {
	RelevantContext(ctx context.Context, query string, topK int) (string, error)
	DocumentCount() int
}

// Completer is the generative model boundary.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Request starts one workflow run. Either InitialDraft or a non-empty
// ContractParams is required; ContractType seeds the retrieval queries.
type Request struct {
	InitialDraft   string
	ContractParams map[string]any
	ContractType   string
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Step records the outcome of one workflow step.
type Step struct {
	Name   string `json:"step"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Run is the immutable result of one workflow invocation.
type Run struct {
	Steps            []Step `json:"steps"`
	FinalContract    string `json:"final_contract"`
	ImprovedContract string `json:"improved_contract,omitempty"`
}

// Retrieval and generation tuning, per step.
const (
	generateTopK   = 15
	complianceTopK = 10
	clausesTopK    = 12
	fixTopK        = 10

	generateMaxTokens   = 8000
	complianceMaxTokens = 4000
	clausesMaxTokens    = 5000
	improveMaxTokens    = 8000
	grammarMaxTokens    = 4000

	generateTemperature   = 0.3
	complianceTemperature = 0.3
	clausesTemperature    = 0.4
	improveTemperature    = 0.3
	grammarTemperature    = 0.2
)

// Orchestrator runs retrieval + generation operations against the session
// store and the generative model.
type Orchestrator struct {
	log   *slog.Logger
	store Retriever
	model Completer
}

func NewOrchestrator(log *slog.Logger, store Retriever, model Completer) *Orchestrator {
	return &Orchestrator{
		log:   log,
		store: store,
		model: model,
	}
}

// guard rejects operations on an empty session before any model call is
// spent.
func (o *Orchestrator) guard() error {
	if o.store.DocumentCount() == 0 {
		return ErrNoPolicies
	}

	return nil
}

func (o *Orchestrator) retrieveContext(ctx context.Context, query string, topK int) (string, error) {
	policyContext, err := o.store.RelevantContext(ctx, query, topK)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve policy context: %w", err)
	}
	if strings.TrimSpace(policyContext) == "" {
		return "", ErrNoRelevantContext
	}

	return policyContext, nil
}

// GenerateContract drafts a contract from structured parameters using the
// session's policies as retrieval context.
func (o *Orchestrator) GenerateContract(ctx context.Context, params map[string]any, contractType string) (string, error) {
	if err := o.guard(); err != nil {
		return "", err
	}

	policyContext, err := o.retrieveContext(ctx,
		fmt.Sprintf("%s contract template structure required clauses", contractType),
		generateTopK)
	if err != nil {
		return "", err
	}

	paramsText, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode contract params: %w", err)
	}

	return o.model.Complete(ctx, llm.Request{
		Prompt:      generatePrompt(policyContext, string(paramsText), contractType),
		MaxTokens:   generateMaxTokens,
		Temperature: generateTemperature,
	})
}

// CheckCompliance analyzes contract text against the session's policies.
// The model's output is opaque free text; it is captured verbatim.
func (o *Orchestrator) CheckCompliance(ctx context.Context, contractText, contractType string) (string, error) {
	if err := o.guard(); err != nil {
		return "", err
	}

	policyContext, err := o.retrieveContext(ctx,
		fmt.Sprintf("%s contract requirements policies compliance", contractType),
		complianceTopK)
	if err != nil {
		return "", err
	}

	return o.model.Complete(ctx, llm.Request{
		Prompt:      compliancePrompt(policyContext, contractText),
		MaxTokens:   complianceMaxTokens,
		Temperature: complianceTemperature,
	})
}

// SuggestClauses identifies clauses the policies require but the contract
// lacks.
func (o *Orchestrator) SuggestClauses(ctx context.Context, contractText, contractType string) (string, error) {
	if err := o.guard(); err != nil {
		return "", err
	}

	policyContext, err := o.retrieveContext(ctx,
		fmt.Sprintf("%s contract required clauses terms conditions", contractType),
		clausesTopK)
	if err != nil {
		return "", err
	}

	return o.model.Complete(ctx, llm.Request{
		Prompt:      missingClausesPrompt(policyContext, contractText),
		MaxTokens:   clausesMaxTokens,
		Temperature: clausesTemperature,
	})
}

// GrammarCheck reviews contract text for grammar and clarity. It needs no
// retrieval context and works on an empty session.
func (o *Orchestrator) GrammarCheck(ctx context.Context, contractText string) (string, error) {
	return o.model.Complete(ctx, llm.Request{
		Prompt:      grammarPrompt(contractText),
		MaxTokens:   grammarMaxTokens,
		Temperature: grammarTemperature,
	})
}

// FixContract rewrites contract text into a corrected, policy-compliant
// version.
func (o *Orchestrator) FixContract(ctx context.Context, contractText, contractType string) (string, error) {
	if err := o.guard(); err != nil {
		return "", err
	}

	policyContext, err := o.retrieveContext(ctx,
		fmt.Sprintf("%s contract requirements policies compliance", contractType),
		fixTopK)
	if err != nil {
		return "", err
	}

	return o.model.Complete(ctx, llm.Request{
		Prompt:      fixPrompt(policyContext, contractText),
		MaxTokens:   improveMaxTokens,
		Temperature: improveTemperature,
	})
}

// Run executes the full contract workflow: obtain a draft, check its
// compliance, analyze missing clauses, and conditionally produce an
// improved version.
//
// Only entry failures abort the run: missing input, an empty session, and
// a failed initial generation. Compliance and clause analysis are best
// effort; their failures are recorded as error steps and the run proceeds
// with empty analysis text. A failed improvement is likewise recorded but
// the run still completes without an improved contract.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Run, error) {
	if req.InitialDraft == "" && len(req.ContractParams) == 0 {
		return nil, ErrMissingInput
	}
	if err := o.guard(); err != nil {
		return nil, err
	}

	run := &Run{}

	var contractText string
	if req.InitialDraft != "" {
		o.log.Info("using provided contract draft")
		contractText = req.InitialDraft
		run.Steps = append(run.Steps, Step{Name: "initial_draft_provided", Status: StatusSuccess})
	} else {
		o.log.Info("generating contract draft", slog.String("contract_type", req.ContractType))
		generated, err := o.GenerateContract(ctx, req.ContractParams, req.ContractType)
		if err != nil {
			return nil, fmt.Errorf("contract generation failed: %w", err)
		}

		contractText = generated
		run.Steps = append(run.Steps, Step{Name: "contract_generation", Status: StatusSuccess})
	}

	analysis := o.bestEffort(run, "compliance_check", func() (string, error) {
		return o.CheckCompliance(ctx, contractText, req.ContractType)
	})

	suggestions := o.bestEffort(run, "missing_clause_analysis", func() (string, error) {
		return o.SuggestClauses(ctx, contractText, req.ContractType)
	})

	if needsImprovement(analysis, suggestions) {
		o.log.Info("generating improved contract version")
		improved, err := o.model.Complete(ctx, llm.Request{
			Prompt:      improvementPrompt(contractText, analysis, suggestions),
			MaxTokens:   improveMaxTokens,
			Temperature: improveTemperature,
		})
		if err != nil {
			o.log.Warn("could not generate improved version", slog.String("error", err.Error()))
			run.Steps = append(run.Steps, Step{Name: "contract_improvement", Status: StatusError, Error: err.Error()})
		} else {
			run.ImprovedContract = improved
			run.Steps = append(run.Steps, Step{Name: "contract_improvement", Status: StatusSuccess})
		}
	}

	run.FinalContract = contractText
	if run.ImprovedContract != "" {
		run.FinalContract = run.ImprovedContract
	}

	return run, nil
}

func (o *Orchestrator) bestEffort(run *Run, name string, fn func() (string, error)) string {
	text, err := fn()
	if err != nil {
		o.log.Warn("workflow step failed",
			slog.String("step", name),
			slog.String("error", err.Error()))
		run.Steps = append(run.Steps, Step{Name: name, Status: StatusError, Error: err.Error()})
		return ""
	}

	run.Steps = append(run.Steps, Step{Name: name, Status: StatusSuccess})

	return text
}

func needsImprovement(complianceAnalysis, clauseSuggestions string) bool {
	return strings.Contains(strings.ToLower(complianceAnalysis), "non-compliant") ||
		strings.Contains(strings.ToLower(clauseSuggestions), "missing critical")
}
