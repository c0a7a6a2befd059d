package model

// Field identifies a semantic field of an extracted policy record.
type Field string

const (
	FieldClientName     Field = "client.name"
	FieldClientDocument Field = "client.document_id"
	FieldClientEmail    Field = "client.email"
	FieldClientPhone    Field = "client.phone"
	FieldClientAddress  Field = "client.address"
	FieldPolicyNumber   Field = "policy.number"
	FieldInsurer        Field = "policy.insurer_name"
	FieldBranch         Field = "policy.branch"
	FieldStartDate      Field = "policy.start_date"
	FieldEndDate        Field = "policy.end_date"
	FieldPeriod         Field = "policy.period" // "vigência": a start/end pair under one label
	FieldInsuredObject  Field = "insured_object.description"
	FieldNetPremium     Field = "values.net_premium"
	FieldTotalPremium   Field = "values.total_premium"
)

// Pin fields select an existing catalog id during review.
const (
	FieldClientID  Field = "client.id"
	FieldInsurerID Field = "insurer.id"
	FieldBranchID  Field = "branch.id"
)
