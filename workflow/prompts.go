package workflow

import "fmt"

func compliancePrompt(policyContext, contractText string) string {
	return fmt.Sprintf(`You are a procurement compliance expert. Analyze the following contract text against the provided procurement policies.

UPLOADED PROCUREMENT POLICIES (from current session):
%s

CONTRACT TEXT TO ANALYZE:
%s

Please provide a detailed compliance analysis with:

1. COMPLIANCE STATUS: Overall assessment (Compliant/Non-Compliant/Partially Compliant)

2. VIOLATIONS: List any specific policy violations or non-compliant sections with:
   - The violated policy requirement
   - The problematic section in the contract
   - Severity (Critical/High/Medium/Low)

3. MISSING CLAUSES: Identify required clauses that are missing based on policies:
   - Clause name
   - Why it's required
   - Policy reference

4. RECOMMENDATIONS: Specific suggestions to achieve compliance

Format your response as a structured analysis that's easy to parse.`, policyContext, contractText)
}

func missingClausesPrompt(policyContext, contractText string) string {
	return fmt.Sprintf(`You are a procurement legal expert. Review the contract text and identify missing clauses based on the uploaded procurement policies.

UPLOADED PROCUREMENT POLICIES (from current session):
%s

CURRENT CONTRACT TEXT:
%s

Analyze what's missing and provide:

1. MISSING CRITICAL CLAUSES: Essential clauses that MUST be included
   - Clause title
   - Purpose and importance
   - Template/example text
   - Policy reference

2. MISSING RECOMMENDED CLAUSES: Important but not critical clauses
   - Clause title
   - Benefits of inclusion
   - Template/example text

3. ENHANCEMENT SUGGESTIONS: Ways to strengthen existing clauses
   - Current clause reference
   - Suggested improvements
   - Rationale

Provide detailed, actionable suggestions with example text for each missing clause.`, policyContext, contractText)
}

func generatePrompt(policyContext, params, contractType string) string {
	return fmt.Sprintf(`You are an expert procurement contract drafter. Generate a complete, legally sound contract based on the provided parameters and the uploaded procurement policies.

UPLOADED PROCUREMENT POLICIES AND REQUIREMENTS (from current session):
%s

CONTRACT PARAMETERS:
%s

CONTRACT TYPE: %s

Generate a comprehensive contract that:

1. Follows all procurement policies and compliance requirements from the uploaded documents
2. Includes all mandatory clauses (payment terms, termination, liability, warranties, etc.)
3. Is professionally formatted with proper sections and numbering
4. Uses clear, unambiguous legal language
5. Incorporates the specific parameters provided

Structure the contract with:
- Title and Contract Number
- Parties section
- Recitals/Background
- Definitions
- Scope of Work/Services
- Payment Terms
- Term and Termination
- Warranties and Representations
- Liability and Indemnification
- Compliance clauses
- General Provisions
- Signature blocks

Generate the complete contract ready for review and execution.`, policyContext, params, contractType)
}

func improvementPrompt(contractText, complianceAnalysis, missingClauses string) string {
	return fmt.Sprintf(`Based on the compliance check and missing clause analysis, generate an improved version of this contract using the uploaded policies.

ORIGINAL CONTRACT:
%s

COMPLIANCE ISSUES:
%s

MISSING CLAUSES:
%s

Generate a complete, corrected contract that addresses all issues and includes all missing clauses.`, contractText, complianceAnalysis, missingClauses)
}

func grammarPrompt(contractText string) string {
	return fmt.Sprintf(`You are an expert legal editor. Review the following contract text for grammar, spelling, punctuation and clarity issues.

CONTRACT TEXT:
%s

Provide:

1. ISSUES FOUND: Each grammar, spelling or clarity problem with its location and a corrected version
2. CLARITY SUGGESTIONS: Sentences that are ambiguous or convoluted, with clearer rewrites
3. CORRECTED TEXT: The full contract text with all corrections applied

Do not change the legal meaning of any clause.`, contractText)
}

func fixPrompt(policyContext, contractText string) string {
	return fmt.Sprintf(`You are a procurement contract expert. Rewrite the following contract so that it is free of errors and fully compliant with the uploaded procurement policies.

UPLOADED PROCUREMENT POLICIES (from current session):
%s

CONTRACT TEXT TO FIX:
%s

Produce the complete corrected contract: fix grammar and clarity issues, bring every clause in line with the policies, and add any clauses the policies require. Return only the corrected contract text.`, policyContext, contractText)
}
