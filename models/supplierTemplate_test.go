package models

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const validMappingJson = `{
	"commission_percent": "5",
	"header": {
		"Agent": "agent_name",
		"Type": "contract_type",
		"Sum": "total_amount",
		"Fees": "total_commission"
	},
	"deals": {
		"Contract No": "contract_number",
		"Client": "customer_name",
		"Agent": "agent_name",
		"Sum": "total_amount",
		"Fee": "commission_amount"
	}
}`

func TestParseTemplateMapping_Valid(t *testing.T) {
	mapping, err := ParseTemplateMapping(validMappingJson)
	if err != nil {
		t.Fatalf("expected a valid mapping: %v", err)
	}
	if !mapping.Commission().Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected commission 5, got %s", mapping.Commission())
	}
	if got := mapping.DealColumn(FieldContractNumber); got != "Contract No" {
		t.Errorf("expected Contract No, got %q", got)
	}
	if got := mapping.DealColumn(FieldBranch); got != "" {
		t.Errorf("unmapped fields resolve to empty, got %q", got)
	}
}

func TestParseTemplateMapping_RejectsBadJson(t *testing.T) {
	if _, err := ParseTemplateMapping(`{"deals": `); err == nil {
		t.Fatalf("expected an error for truncated JSON")
	}
}

func TestParseTemplateMapping_RejectsMissingRequiredFields(t *testing.T) {
	missingContract := strings.Replace(validMappingJson, `"Contract No": "contract_number",`, "", 1)
	_, err := ParseTemplateMapping(missingContract)
	if err == nil || !strings.Contains(err.Error(), "contract_number") {
		t.Fatalf("expected an error naming the missing deal field, got %v", err)
	}

	missingType := strings.Replace(validMappingJson, `"Type": "contract_type",`, "", 1)
	_, err = ParseTemplateMapping(missingType)
	if err == nil || !strings.Contains(err.Error(), "contract_type") {
		t.Fatalf("expected an error naming the missing header field, got %v", err)
	}
}

func TestParseTemplateMapping_RejectsEmptySections(t *testing.T) {
	if _, err := ParseTemplateMapping(`{"header": {"A": "agent_name"}, "deals": {}}`); err == nil {
		t.Fatalf("expected an error for an empty deals section")
	}
	if _, err := ParseTemplateMapping(`{"header": {}, "deals": {"A": "contract_number"}}`); err == nil {
		t.Fatalf("expected an error for an empty header section")
	}
}

func TestParseTemplateMapping_CommissionBounds(t *testing.T) {
	over := strings.Replace(validMappingJson, `"commission_percent": "5"`, `"commission_percent": "101"`, 1)
	if _, err := ParseTemplateMapping(over); err == nil {
		t.Fatalf("expected an error for a commission over 100")
	}
	negative := strings.Replace(validMappingJson, `"commission_percent": "5"`, `"commission_percent": "-1"`, 1)
	if _, err := ParseTemplateMapping(negative); err == nil {
		t.Fatalf("expected an error for a negative commission")
	}
}

func TestTemplateMapping_CommissionDefault(t *testing.T) {
	var mapping *TemplateMapping
	if !mapping.Commission().Equal(DefaultCommissionPercent) {
		t.Fatalf("a nil mapping falls back to the default commission")
	}
	withoutOverride := &TemplateMapping{}
	if !withoutOverride.Commission().Equal(DefaultCommissionPercent) {
		t.Fatalf("a mapping without an override falls back to the default commission")
	}
}
