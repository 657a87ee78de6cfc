package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gamma-omg/procurement-mcp/docstore"
	"github.com/gamma-omg/procurement-mcp/workflow"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type sessionStore interface {
	Search(ctx context.Context, q docstore.Query) ([]docstore.SearchResult, error)
	List() []docstore.ManifestEntry
	Delete(ctx context.Context, documentID string) (int, error)
	Reset(ctx context.Context) error
	Info() docstore.SessionInfo
}

type contractWorkflow interface {
	Run(ctx context.Context, req workflow.Request) (*workflow.Run, error)
	GenerateContract(ctx context.Context, params map[string]any, contractType string) (string, error)
	CheckCompliance(ctx context.Context, contractText, contractType string) (string, error)
	SuggestClauses(ctx context.Context, contractText, contractType string) (string, error)
	GrammarCheck(ctx context.Context, contractText string) (string, error)
	FixContract(ctx context.Context, contractText, contractType string) (string, error)
}

type ragServer struct {
	store     sessionStore
	flow      contractWorkflow
	extractor Extractor
	ingestor  DocIngestor
	topK      int
}

// NewRagServer builds the MCP tool surface over the session store and the
// contract workflow.
func NewRagServer(store sessionStore, flow contractWorkflow, extractor Extractor, ingestor DocIngestor, topK int) *server.MCPServer {
	rs := &ragServer{
		store:     store,
		flow:      flow,
		extractor: extractor,
		ingestor:  ingestor,
		topK:      topK,
	}

	srv := server.NewMCPServer("Procurement RAG", "0.1.0", server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Search the session's uploaded procurement documents and get ranked matches"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithString("category", mcp.Description("Limit search to one category: policy, vendor or compliance")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of results")),
		mcp.WithObject("filters", mcp.Description("Exact-match metadata filters, ANDed together")),
	), rs.searchDocuments)

	srv.AddTool(mcp.NewTool("ingest_document",
		mcp.WithDescription("Extract text from a file and store it in the session for retrieval"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to a pdf, docx, odt or txt file")),
		mcp.WithString("category", mcp.Description("Document category; auto-detected when omitted")),
	), rs.ingestDocument)

	srv.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List documents uploaded in this session, in upload order"),
	), rs.listDocuments)

	srv.AddTool(mcp.NewTool("delete_document",
		mcp.WithDescription("Delete a document and all its chunks by document id"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Content hash of the document")),
	), rs.deleteDocument)

	srv.AddTool(mcp.NewTool("session_info",
		mcp.WithDescription("Summarize the current session: document counts per category"),
	), rs.sessionInfo)

	srv.AddTool(mcp.NewTool("clear_session",
		mcp.WithDescription("Remove every uploaded document from the session"),
	), rs.clearSession)

	srv.AddTool(mcp.NewTool("generate_contract",
		mcp.WithDescription("Generate a contract from structured parameters using uploaded policies"),
		mcp.WithObject("contract_params", mcp.Required(), mcp.Description("Structured contract fields")),
		mcp.WithString("contract_type", mcp.Description("Contract type, e.g. service or procurement")),
	), rs.generateContract)

	srv.AddTool(mcp.NewTool("check_compliance",
		mcp.WithDescription("Analyze contract text for compliance with uploaded policies"),
		mcp.WithString("contract_text", mcp.Required(), mcp.Description("Contract text to analyze")),
		mcp.WithString("contract_type", mcp.Description("Contract type")),
	), rs.checkCompliance)

	srv.AddTool(mcp.NewTool("suggest_missing_clauses",
		mcp.WithDescription("Identify clauses the uploaded policies require but the contract lacks"),
		mcp.WithString("contract_text", mcp.Required(), mcp.Description("Contract text to analyze")),
		mcp.WithString("contract_type", mcp.Description("Contract type")),
	), rs.suggestClauses)

	srv.AddTool(mcp.NewTool("run_contract_workflow",
		mcp.WithDescription("Run the full workflow: draft or generate a contract, check compliance, analyze missing clauses and produce an improved version when needed"),
		mcp.WithString("initial_draft", mcp.Description("Existing contract draft; skips generation")),
		mcp.WithObject("contract_params", mcp.Description("Structured contract fields for generation")),
		mcp.WithString("contract_type", mcp.Description("Contract type")),
	), rs.runWorkflow)

	srv.AddTool(mcp.NewTool("grammar_check",
		mcp.WithDescription("Review contract text for grammar, spelling and clarity issues"),
		mcp.WithString("contract_text", mcp.Required(), mcp.Description("Contract text to review")),
	), rs.grammarCheck)

	srv.AddTool(mcp.NewTool("fix_contract",
		mcp.WithDescription("Rewrite contract text into a corrected, policy-compliant version"),
		mcp.WithString("contract_text", mcp.Required(), mcp.Description("Contract text to fix")),
		mcp.WithString("contract_type", mcp.Description("Contract type")),
	), rs.fixContract)

	srv.AddTool(mcp.NewTool("batch_compliance",
		mcp.WithDescription("Check compliance for multiple contracts in one call"),
		mcp.WithArray("contracts", mcp.Required(), mcp.Description("List of {text, contract_type} objects")),
	), rs.batchCompliance)

	return srv
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(string(raw)), nil
}

func stringArg(request mcp.CallToolRequest, key, fallback string) string {
	if v, ok := request.GetArguments()[key].(string); ok && v != "" {
		return v
	}

	return fallback
}

func objectArg(request mcp.CallToolRequest, key string) map[string]any {
	if v, ok := request.GetArguments()[key].(map[string]any); ok {
		return v
	}

	return nil
}

func (rs *ragServer) searchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	q := docstore.Query{
		Text: query,
		TopK: rs.topK,
	}
	if cat := stringArg(request, "category", ""); cat != "" {
		parsed, err := docstore.ParseCategory(cat)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		q.Category = parsed
	}
	if v, ok := request.GetArguments()["top_k"].(float64); ok {
		q.TopK = int(v)
	}
	if raw := objectArg(request, "filters"); raw != nil {
		q.Filters = make(map[string]string, len(raw))
		for k, v := range raw {
			q.Filters[k] = fmt.Sprint(v)
		}
	}

	res, err := rs.store.Search(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(res)
}

func (rs *ragServer) ingestDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !rs.extractor.CanRead(path) {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported file type: %s", path)), nil
	}

	var category docstore.Category
	if cat := stringArg(request, "category", ""); cat != "" {
		parsed, err := docstore.ParseCategory(cat)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		category = parsed
	}

	ex, err := rs.extractor.Extract(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	receipt, err := rs.ingestor.Store(ctx, ex.Text, ex.Filename, nil, category)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(receipt)
}

func (rs *ragServer) listDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(rs.store.List())
}

func (rs *ragServer) deleteDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	n, err := rs.store.Delete(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"document_id":    id,
		"chunks_deleted": n,
	})
}

func (rs *ragServer) sessionInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(rs.store.Info())
}

func (rs *ragServer) clearSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := rs.store.Reset(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("session cleared, all documents removed"), nil
}

func (rs *ragServer) generateContract(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := objectArg(request, "contract_params")
	if params == nil {
		return mcp.NewToolResultError("contract_params is required"), nil
	}

	contract, err := rs.flow.GenerateContract(ctx, params, stringArg(request, "contract_type", "general"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(contract), nil
}

func (rs *ragServer) checkCompliance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("contract_text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	analysis, err := rs.flow.CheckCompliance(ctx, text, stringArg(request, "contract_type", "general"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(analysis), nil
}

func (rs *ragServer) suggestClauses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("contract_text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	suggestions, err := rs.flow.SuggestClauses(ctx, text, stringArg(request, "contract_type", "general"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(suggestions), nil
}

func (rs *ragServer) runWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	run, err := rs.flow.Run(ctx, workflow.Request{
		InitialDraft:   stringArg(request, "initial_draft", ""),
		ContractParams: objectArg(request, "contract_params"),
		ContractType:   stringArg(request, "contract_type", "general"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(run)
}

func (rs *ragServer) grammarCheck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("contract_text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	review, err := rs.flow.GrammarCheck(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(review), nil
}

func (rs *ragServer) fixContract(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("contract_text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	fixed, err := rs.flow.FixContract(ctx, text, stringArg(request, "contract_type", "general"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fixed), nil
}

type batchResult struct {
	Index    int    `json:"index"`
	Status   string `json:"status"`
	Analysis string `json:"analysis,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (rs *ragServer) batchCompliance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, ok := request.GetArguments()["contracts"].([]any)
	if !ok {
		return mcp.NewToolResultError("contracts must be a list"), nil
	}

	results := make([]batchResult, 0, len(raw))
	for i, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			results = append(results, batchResult{Index: i, Status: workflow.StatusError, Error: "contract entry must be an object"})
			continue
		}

		text, _ := entry["text"].(string)
		if text == "" {
			results = append(results, batchResult{Index: i, Status: workflow.StatusError, Error: "missing 'text' field"})
			continue
		}

		contractType, _ := entry["contract_type"].(string)
		if contractType == "" {
			contractType = "general"
		}

		analysis, err := rs.flow.CheckCompliance(ctx, text, contractType)
		if err != nil {
			results = append(results, batchResult{Index: i, Status: workflow.StatusError, Error: err.Error()})
			continue
		}

		results = append(results, batchResult{Index: i, Status: workflow.StatusSuccess, Analysis: analysis})
	}

	return jsonResult(map[string]any{
		"total_contracts": len(raw),
		"results":         results,
	})
}
