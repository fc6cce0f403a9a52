package retrieval

// Step is one attempt in a retrieval plan: a generated query from one prompt
// variant, or the unconditional category scan for the question's strategy.
type Step struct {
	Stage      string
	Variant    Variant
	DirectScan bool
}

// DefaultPlan stops at the first substantive step. The direct scan is always
// terminal.
var DefaultPlan = []Step{
	{Stage: "primary", Variant: VariantPrimary},
	{Stage: "secondary", Variant: VariantSecondary},
	{Stage: "direct_scan", DirectScan: true},
}

// RecoveryPlan runs once when DefaultPlan fails unexpectedly.
var RecoveryPlan = []Step{
	{Stage: "recovery", Variant: VariantSecondary},
}
