package importer

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/extract"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/reconcile"
)

// FieldDocumentType overrides the detected document type.
const FieldDocumentType model.Field = "document_type"

// maxOverrideText caps free-text override values.
const maxOverrideText = 200

// applyOverrides validates overrides with the extraction parsers and applies
// them to rec and pins. An empty value clears the field. Nothing is applied
// when any value is invalid.
func applyOverrides(rec *model.ExtractedPolicyRecord, pins *reconcile.Pins, dict *extract.Dictionary, overrides map[string]string) error {
	out, outPins := *rec, *pins

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := strings.TrimSpace(overrides[key])
		if err := applyOverride(&out, &outPins, dict, model.Field(key), raw); err != nil {
			return eris.Wrapf(ErrInvalidOverride, "%s: %v", key, err)
		}
	}

	*rec, *pins = out, outPins
	return nil
}

func applyOverride(rec *model.ExtractedPolicyRecord, pins *reconcile.Pins, dict *extract.Dictionary, field model.Field, raw string) error {
	switch field {
	case model.FieldClientName:
		rec.Client.Name = extract.CleanFreeText(raw, maxOverrideText)
		rec.Client.MatchedID = ""
	case model.FieldClientDocument:
		if raw == "" {
			rec.Client.DocumentID = ""
			break
		}
		id, ok := extract.ParseIdentifier(raw)
		if !ok {
			return eris.Errorf("%q is not an 11-digit CPF or 14-digit CNPJ", raw)
		}
		rec.Client.DocumentID = id.Digits
		rec.Client.MatchedID = ""
	case model.FieldClientEmail:
		return setParsed(&rec.Client.Email, raw, extract.FindEmail, "e-mail address")
	case model.FieldClientPhone:
		return setParsed(&rec.Client.Phone, raw, extract.FindPhone, "phone number")
	case model.FieldClientAddress:
		rec.Client.Address = extract.CleanFreeText(raw, maxOverrideText)
	case model.FieldPolicyNumber:
		rec.Policy.Number = strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	case model.FieldInsurer:
		rec.Policy.InsurerName, rec.Policy.InsurerCode = classifyOverride(raw, dict.InferInsurer)
	case model.FieldBranch:
		rec.Policy.Branch, rec.Policy.BranchCode = classifyOverride(raw, dict.InferBranch)
	case model.FieldStartDate:
		return setDate(&rec.Policy.StartDate, raw)
	case model.FieldEndDate:
		return setDate(&rec.Policy.EndDate, raw)
	case model.FieldInsuredObject:
		rec.InsuredObject.Description = extract.CleanFreeText(raw, maxOverrideText)
	case model.FieldNetPremium:
		return setAmount(&rec.Values.NetPremium, raw)
	case model.FieldTotalPremium:
		return setAmount(&rec.Values.TotalPremium, raw)
	case FieldDocumentType:
		dt := model.DocumentType(strings.ToLower(raw))
		if dt != model.DocumentUnknown && !dt.Valid() {
			return eris.Errorf("unknown document type %q", raw)
		}
		rec.DocumentType = dt
	case model.FieldClientID:
		pins.ClientID = raw
	case model.FieldInsurerID:
		pins.InsurerID = raw
	case model.FieldBranchID:
		pins.BranchID = raw
	default:
		return eris.New("unknown field")
	}
	return nil
}

func setParsed(dst *string, raw string, find func(string) (string, int, bool), what string) error {
	if raw == "" {
		*dst = ""
		return nil
	}
	v, _, ok := find(raw)
	if !ok {
		return eris.Errorf("%q is not a valid %s", raw, what)
	}
	*dst = v
	return nil
}

func setDate(dst *string, raw string) error {
	if raw == "" {
		*dst = ""
		return nil
	}
	v, ok := extract.ParseDate(raw)
	if !ok {
		return eris.Errorf("%q is not a valid date", raw)
	}
	*dst = v
	return nil
}

func setAmount(dst *decimal.NullDecimal, raw string) error {
	if raw == "" {
		*dst = decimal.NullDecimal{}
		return nil
	}
	v, ok := extract.ParseAmount(raw)
	if !ok {
		return eris.Errorf("%q is not a valid non-negative amount", raw)
	}
	*dst = decimal.NewNullDecimal(v)
	return nil
}

// classifyOverride maps a reviewer-typed insurer or branch to its dictionary
// entry when one matches, keeping the typed name otherwise.
func classifyOverride(raw string, infer func(string) (extract.Tag, bool)) (name, code string) {
	if raw == "" {
		return "", ""
	}
	if tag, ok := infer(raw); ok {
		return tag.Name, tag.Code
	}
	return extract.CleanFreeText(raw, maxOverrideText), ""
}
