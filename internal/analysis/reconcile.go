package analysis

import (
	"fmt"
	"net/http"

	"github.com/cuongbtq/audio-analysis-proxy/internal/domain"
)

// Rule names, in evaluation order
const (
	RuleTransportFailure  = "transport_failure"
	RuleNotFoundYet       = "not_found_yet"
	RuleUpstreamHTTPError = "upstream_http_error"
	RuleUnparseableBody   = "unparseable_body"
	RuleContentReady      = "content_ready"
	RulePendingCode       = "pending_code"
	RuleUpstreamCode      = "upstream_code"
	RuleNoContent         = "no_content"
)

// Observation is everything one poll learned from the upstream
type Observation struct {
	Err        error // request or body read failed, including timeouts
	StatusCode int
	Body       Decoded
	Truncated  bool
}

// code returns the top-level response code, or "" when absent
func (o Observation) code() string {
	if !o.Body.OK() {
		return ""
	}
	return stringAt(o.Body.Value, "code")
}

// Outcome is the reconciled status of a single poll
type Outcome struct {
	Status     domain.JobStatus
	Rule       string
	HTTPStatus int
	Code       string
	Result     *domain.AnalysisResult
	Err        *domain.PollError
}

// Rule maps a matching observation to an outcome
type Rule struct {
	Name    string
	Match   func(Observation) bool
	Resolve func(Observation) Outcome
}

// Reconciler evaluates rules in order; the first match wins
type Reconciler struct {
	rules        []Rule
	pending      map[string]struct{}
	excerptLimit int
}

// NewReconciler builds the rule list for the given "not ready" codes
func NewReconciler(pendingCodes []string, excerptLimit int) *Reconciler {
	r := &Reconciler{
		pending:      make(map[string]struct{}, len(pendingCodes)),
		excerptLimit: excerptLimit,
	}
	for _, code := range pendingCodes {
		r.pending[code] = struct{}{}
	}

	r.rules = []Rule{
		{
			Name:    RuleTransportFailure,
			Match:   func(o Observation) bool { return o.Err != nil },
			Resolve: r.status(domain.JobStatusProcessing),
		},
		{
			Name:    RuleNotFoundYet,
			Match:   func(o Observation) bool { return o.StatusCode == http.StatusNotFound },
			Resolve: r.status(domain.JobStatusProcessing),
		},
		{
			Name:    RuleUpstreamHTTPError,
			Match:   func(o Observation) bool { return !isSuccess(o.StatusCode) },
			Resolve: r.upstreamHTTPError,
		},
		{
			Name:    RuleUnparseableBody,
			Match:   func(o Observation) bool { return !o.Body.OK() },
			Resolve: r.parseFailure,
		},
		{
			Name:    RuleContentReady,
			Match:   func(o Observation) bool { return firstContent(o.Body.Value) != nil },
			Resolve: r.completed,
		},
		{
			Name:    RulePendingCode,
			Match:   func(o Observation) bool { return r.isPending(o.code()) },
			Resolve: r.status(domain.JobStatusProcessing),
		},
		{
			Name:    RuleUpstreamCode,
			Match:   func(o Observation) bool { return o.code() != "" },
			Resolve: r.upstreamCode,
		},
		{
			Name:    RuleNoContent,
			Match:   func(Observation) bool { return true },
			Resolve: r.status(domain.JobStatusNoContent),
		},
	}
	return r
}

// Rules returns the ordered rule list
func (r *Reconciler) Rules() []Rule {
	return r.rules
}

// Reconcile maps one observation to an outcome. It depends on nothing but its input.
func (r *Reconciler) Reconcile(o Observation) Outcome {
	for _, rule := range r.rules {
		if rule.Match(o) {
			out := rule.Resolve(o)
			out.Rule = rule.Name
			out.HTTPStatus = o.StatusCode
			if out.Code == "" {
				out.Code = o.code()
			}
			return out
		}
	}
	// unreachable: the last rule always matches
	return Outcome{Status: domain.JobStatusNoContent, Rule: RuleNoContent, HTTPStatus: o.StatusCode}
}

func (r *Reconciler) isPending(code string) bool {
	if code == "" {
		return false
	}
	_, ok := r.pending[code]
	return ok
}

func (r *Reconciler) status(s domain.JobStatus) func(Observation) Outcome {
	return func(Observation) Outcome {
		return Outcome{Status: s}
	}
}

func (r *Reconciler) upstreamHTTPError(o Observation) Outcome {
	return Outcome{
		Status: domain.JobStatusError,
		Err: &domain.PollError{
			Kind:       domain.PollErrorUpstreamStatus,
			HTTPStatus: o.StatusCode,
			Excerpt:    Excerpt(o.Body.Text, r.excerptLimit),
		},
	}
}

func (r *Reconciler) parseFailure(o Observation) Outcome {
	excerpt := Excerpt(o.Body.Text, r.excerptLimit)
	cause := o.Body.Err
	if o.Truncated {
		cause = fmt.Errorf("%w: %w", errBodyTruncated, o.Body.Err)
	}
	return Outcome{
		Status: domain.JobStatusError,
		Err: &domain.PollError{
			Kind:       domain.PollErrorParseFailure,
			HTTPStatus: o.StatusCode,
			Excerpt:    excerpt,
			Cause:      &domain.ParseFailure{Excerpt: excerpt, Cause: cause},
		},
	}
}

func (r *Reconciler) completed(o Observation) Outcome {
	entry := firstContent(o.Body.Value)
	return Outcome{
		Status: domain.JobStatusCompleted,
		Result: &domain.AnalysisResult{
			Classification:   stringAt(entry, "ansDog"),
			Filter:           stringAt(entry, "ansFilter"),
			OriginalFileName: stringAt(entry, "fileNameOrigin"),
			StartOffset:      stringAt(entry, "startTime"),
			EndOffset:        stringAt(entry, "endTime"),
		},
	}
}

func (r *Reconciler) upstreamCode(o Observation) Outcome {
	code := o.code()
	return Outcome{
		Status: domain.JobStatusError,
		Code:   code,
		Err: &domain.PollError{
			Kind:       domain.PollErrorUpstreamCode,
			HTTPStatus: o.StatusCode,
			Code:       code,
			Excerpt:    Excerpt(o.Body.Text, r.excerptLimit),
		},
	}
}

// firstContent returns the most recent entry of data.content, or nil when the
// list is missing or empty. A non-object entry is returned as an empty object.
func firstContent(v any) any {
	found, ok := lookup(v, "data", "content")
	if !ok {
		return nil
	}
	list, ok := found.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	if entry, ok := list[0].(map[string]any); ok {
		return entry
	}
	return map[string]any{}
}
