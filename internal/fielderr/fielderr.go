// Package fielderr resolves validation failures to dotted field paths.
//
// Two producers feed the same field-error map: local draft validation
// messages and backend write-rejection payloads. Both are free text, so
// resolution is substring scanning against a fixed table. Brittle, but it
// is the contract: the backend does not return structured field paths
// today, and the local messages are shared with it. Keep the table in
// sync with internal/validate.
package fielderr

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/matthewbaird/proforma/internal/types"
)

// aggregateRules maps message substrings to unindexed field paths. These
// apply to aggregate-level rules and to backend messages, which carry no
// record index.
var aggregateRules = []struct {
	substr string
	path   string
}{
	{"Building Size (SF)", "propertyDetails.buildingSizeSf"},
	{"Est Start Date is invalid", "underwritingInputs.estStartDate"},
	{"Hold Period (Yrs)", "underwritingInputs.holdPeriodYears"},
	{"Total tenant square footage", "tenants.squareFeet"},
	{"square footage", "tenants.squareFeet"},
}

// brokerFieldRules maps lowercase detail substrings of "Broker {n}: …"
// messages to the broker field name.
var brokerFieldRules = []struct {
	substr string
	field  string
}{
	{"name", "name"},
	{"phone", "phone"},
	{"email", "email"},
	{"company", "company"},
}

// tenantFieldRules maps lowercase detail substrings of "Tenant {n}: …"
// messages to the tenant field name. Order matters: "tenant name" must
// win before the looser matches.
var tenantFieldRules = []struct {
	substr string
	field  string
}{
	{"tenant name", "tenantName"},
	{"square feet", "squareFeet"},
	{"rent", "rentPsf"},
	{"escalation", "annualEscalations"},
	{"downtime", "downtimeMonths"},
	{"lease start", "leaseStart"},
	{"lease end", "leaseEnd"},
}

var (
	brokerMsg = regexp.MustCompile(`^Broker (\d+): (.+)$`)
	tenantMsg = regexp.MustCompile(`^Tenant (\d+): (.+)$`)
)

// FromValidation maps local validation messages to dotted field paths.
// Enumerated "Broker {n}" / "Tenant {n}" messages are numbered by the
// record's 1-based position among active rows; the resulting path uses
// the record's index in the full draft collection, so the rendering
// layer can address the row directly.
func FromValidation(messages []string, draft *types.PropertyVersion) map[string]string {
	fieldErrors := map[string]string{}
	if draft == nil {
		return fieldErrors
	}
	activeBrokers := draft.ActiveBrokers()
	activeTenants := draft.ActiveTenants()

	for _, message := range messages {
		for _, rule := range aggregateRules {
			if strings.Contains(message, rule.substr) {
				fieldErrors[rule.path] = message
				break
			}
		}

		if m := brokerMsg.FindStringSubmatch(message); m != nil {
			n, _ := strconv.Atoi(m[1])
			if n < 1 || n > len(activeBrokers) {
				continue
			}
			index := indexOfBroker(draft, activeBrokers[n-1].ID)
			detail := strings.ToLower(m[2])
			for _, rule := range brokerFieldRules {
				if strings.Contains(detail, rule.substr) {
					fieldErrors["brokers."+strconv.Itoa(index)+"."+rule.field] = message
					break
				}
			}
		}

		if m := tenantMsg.FindStringSubmatch(message); m != nil {
			n, _ := strconv.Atoi(m[1])
			if n < 1 || n > len(activeTenants) {
				continue
			}
			index := indexOfTenant(draft, activeTenants[n-1].ID)
			detail := strings.ToLower(m[2])
			for _, rule := range tenantFieldRules {
				if strings.Contains(detail, rule.substr) {
					fieldErrors["tenants."+strconv.Itoa(index)+"."+rule.field] = message
					break
				}
			}
		}
	}

	return fieldErrors
}

// FromBackend maps backend violation messages to field paths. Backend
// messages carry no draft context, so only unindexed paths are produced:
// explicit dotted paths embedded in the message are taken verbatim, then
// the substring table applies.
func FromBackend(messages []string) map[string]string {
	fieldErrors := map[string]string{}
	for _, message := range messages {
		if path := dottedPath.FindString(message); path != "" {
			fieldErrors[path] = message
			continue
		}
		for _, rule := range aggregateRules {
			if strings.Contains(message, rule.substr) {
				fieldErrors[rule.path] = message
				break
			}
		}
	}
	return fieldErrors
}

// dottedPath recognizes literal field paths like propertyDetails.address
// or tenants.2.squareFeet inside a backend message.
var dottedPath = regexp.MustCompile(`\b(?:propertyDetails|underwritingInputs|brokers|tenants)\.(?:\d+\.)?[A-Za-z]+\b`)

// Lookup returns the message for a field path. Indexed paths win over
// coarse ones: when an exact match is missing and the path carries a
// record index, the unindexed form is consulted as a fallback.
func Lookup(fieldErrors map[string]string, path string) string {
	if msg, ok := fieldErrors[path]; ok {
		return msg
	}
	if coarse := stripIndex(path); coarse != path {
		return fieldErrors[coarse]
	}
	return ""
}

func stripIndex(path string) string {
	parts := strings.Split(path, ".")
	if len(parts) == 3 {
		if _, err := strconv.Atoi(parts[1]); err == nil {
			return parts[0] + "." + parts[2]
		}
	}
	return path
}

func indexOfBroker(draft *types.PropertyVersion, id string) int {
	for i := range draft.Brokers {
		if draft.Brokers[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfTenant(draft *types.PropertyVersion, id string) int {
	for i := range draft.Tenants {
		if draft.Tenants[i].ID == id {
			return i
		}
	}
	return -1
}

// Merge overlays src onto dst, with src winning on conflicts. Both local
// and backend producers write into one map; the most recent producer's
// message is the one displayed.
func Merge(dst, src map[string]string) map[string]string {
	out := make(map[string]string, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}
