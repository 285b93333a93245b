// Package types defines the property aggregate exchanged with the backend.
// A PropertyVersion is one versioned snapshot of a property: scalar detail
// sections plus the broker and tenant collections. Field names follow the
// wire contract of the property API, which uses camelCase JSON.
package types

import "strings"

// VacantTenantID is the reserved id of the system-managed vacant row.
// The vacant row represents unleased space; it is never created, edited,
// or deleted through normal tenant operations.
const VacantTenantID = "vacant-row"

// Broker is a listing broker attached to a property version.
// Brokers are soft-deleted: IsDeleted rows stay in the collection.
type Broker struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Company   string `json:"company"`
	IsDeleted bool   `json:"isDeleted"`
}

// Tenant is a rent-roll row. Exactly one row per version is the vacant
// row (IsVacant with the reserved id); every other row is a lease.
type Tenant struct {
	ID                string  `json:"id"`
	TenantName        string  `json:"tenantName"`
	CreditType        string  `json:"creditType"`
	SquareFeet        float64 `json:"squareFeet"`
	RentPsf           float64 `json:"rentPsf"`
	AnnualEscalations float64 `json:"annualEscalations"`
	LeaseStart        string  `json:"leaseStart"`
	LeaseEnd          string  `json:"leaseEnd"`
	LeaseType         string  `json:"leaseType"`
	Renew             string  `json:"renew"`
	DowntimeMonths    float64 `json:"downtimeMonths"`
	TiPsf             float64 `json:"tiPsf"`
	LcPsf             float64 `json:"lcPsf"`
	IsVacant          bool    `json:"isVacant"`
	IsDeleted         bool    `json:"isDeleted"`
}

// PropertyDetails holds the structured description of the asset.
type PropertyDetails struct {
	Address           string  `json:"address"`
	Market            string  `json:"market"`
	SubMarket         string  `json:"subMarket"`
	PropertyType      string  `json:"propertyType"`
	PropertySubType   string  `json:"propertySubType"`
	Zoning            string  `json:"zoning"`
	ZoningDetails     string  `json:"zoningDetails"`
	ListingType       string  `json:"listingType"`
	BusinessPlan      string  `json:"businessPlan"`
	SellerType        string  `json:"sellerType"`
	LastTradePrice    float64 `json:"lastTradePrice"`
	LastTradeDate     string  `json:"lastTradeDate"`
	AskingPrice       float64 `json:"askingPrice"`
	BidAmount         float64 `json:"bidAmount"`
	YearOneCapRate    float64 `json:"yearOneCapRate"`
	StabilizedCapRate float64 `json:"stabilizedCapRate"`
	Vintage           int     `json:"vintage"`
	BuildingSizeSf    float64 `json:"buildingSizeSf"`
	WarehouseSf       float64 `json:"warehouseSf"`
	OfficeSf          float64 `json:"officeSf"`
	PropertySizeAcres float64 `json:"propertySizeAcres"`
	CoverageRatio     float64 `json:"coverageRatio"`
	OutdoorStorage    string  `json:"outdoorStorage"`
	ConstructionType  string  `json:"constructionType"`
	ClearHeightFt     float64 `json:"clearHeightFt"`
	DockDoors         int     `json:"dockDoors"`
	DriveInDoors      int     `json:"driveInDoors"`
	HeavyPower        string  `json:"heavyPower"`
	SprinklerType     string  `json:"sprinklerType"`
}

// UnderwritingInputs holds the deal assumptions.
type UnderwritingInputs struct {
	ListPrice              float64 `json:"listPrice"`
	Bid                    float64 `json:"bid"`
	GpEquityStack          float64 `json:"gpEquityStack"`
	LpEquityStack          float64 `json:"lpEquityStack"`
	AcqFee                 float64 `json:"acqFee"`
	AmFee                  float64 `json:"amFee"`
	Promote                float64 `json:"promote"`
	PrefHurdle             float64 `json:"prefHurdle"`
	PropMgmtFee            float64 `json:"propMgmtFee"`
	EstStartDate           string  `json:"estStartDate"`
	HoldPeriodYears        float64 `json:"holdPeriodYears"`
	ClosingCostsPct        float64 `json:"closingCostsPct"`
	SaleCostsPct           float64 `json:"saleCostsPct"`
	VacancyPct             float64 `json:"vacancyPct"`
	AnnualCapexReservesPct float64 `json:"annualCapexReservesPct"`
	AnnualAdminExpPct      float64 `json:"annualAdminExpPct"`
	ExpenseInflationPct    float64 `json:"expenseInflationPct"`
	ExitCapRate            float64 `json:"exitCapRate"`
}

// PropertyVersion is the aggregate: one versioned property snapshot.
// Revision only advances on a successful persisted write.
type PropertyVersion struct {
	PropertyID         string             `json:"propertyId"`
	Version            string             `json:"version"`
	Revision           int64              `json:"revision"`
	IsLatest           bool               `json:"isLatest"`
	IsHistorical       bool               `json:"isHistorical"`
	PropertyDetails    PropertyDetails    `json:"propertyDetails"`
	UnderwritingInputs UnderwritingInputs `json:"underwritingInputs"`
	Brokers            []Broker           `json:"brokers"`
	Tenants            []Tenant           `json:"tenants"`
}

// VersionOption is a version-list summary row.
type VersionOption struct {
	Version      string `json:"version"`
	Revision     int64  `json:"revision"`
	IsHistorical bool   `json:"isHistorical"`
}

// Clone returns a deep copy. The draft store relies on the draft and the
// persisted snapshot never sharing mutable substructure, so every
// read-modify-write goes through an explicit copy.
func (p *PropertyVersion) Clone() *PropertyVersion {
	if p == nil {
		return nil
	}
	out := *p
	out.Brokers = append([]Broker(nil), p.Brokers...)
	out.Tenants = append([]Tenant(nil), p.Tenants...)
	return &out
}

// FindBroker returns the broker with the given id, or nil.
func (p *PropertyVersion) FindBroker(id string) *Broker {
	for i := range p.Brokers {
		if p.Brokers[i].ID == id {
			return &p.Brokers[i]
		}
	}
	return nil
}

// FindTenant returns the tenant with the given id, or nil.
func (p *PropertyVersion) FindTenant(id string) *Tenant {
	for i := range p.Tenants {
		if p.Tenants[i].ID == id {
			return &p.Tenants[i]
		}
	}
	return nil
}

// ActiveBrokers returns the non-deleted brokers in draft order.
func (p *PropertyVersion) ActiveBrokers() []Broker {
	var out []Broker
	for _, b := range p.Brokers {
		if !b.IsDeleted {
			out = append(out, b)
		}
	}
	return out
}

// ActiveTenants returns the non-deleted, non-vacant tenants in draft order.
func (p *PropertyVersion) ActiveTenants() []Tenant {
	var out []Tenant
	for _, t := range p.Tenants {
		if !t.IsDeleted && !t.IsVacant {
			out = append(out, t)
		}
	}
	return out
}

// BrokerPayload is the broker wire shape for create/update requests:
// trimmed text fields, no id or lifecycle flags.
type BrokerPayload struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Company string `json:"company"`
}

// Sanitize trims the broker's free-text fields into a request payload.
func (b Broker) Sanitize() BrokerPayload {
	return BrokerPayload{
		Name:    strings.TrimSpace(b.Name),
		Phone:   strings.TrimSpace(b.Phone),
		Email:   strings.TrimSpace(b.Email),
		Company: strings.TrimSpace(b.Company),
	}
}

// TenantPayload is the tenant wire shape for create/update requests:
// trimmed name, no id or lifecycle flags.
type TenantPayload struct {
	TenantName        string  `json:"tenantName"`
	CreditType        string  `json:"creditType"`
	SquareFeet        float64 `json:"squareFeet"`
	RentPsf           float64 `json:"rentPsf"`
	AnnualEscalations float64 `json:"annualEscalations"`
	LeaseStart        string  `json:"leaseStart"`
	LeaseEnd          string  `json:"leaseEnd"`
	LeaseType         string  `json:"leaseType"`
	Renew             string  `json:"renew"`
	DowntimeMonths    float64 `json:"downtimeMonths"`
	TiPsf             float64 `json:"tiPsf"`
	LcPsf             float64 `json:"lcPsf"`
}

// Sanitize trims the tenant's name into a request payload.
func (t Tenant) Sanitize() TenantPayload {
	return TenantPayload{
		TenantName:        strings.TrimSpace(t.TenantName),
		CreditType:        t.CreditType,
		SquareFeet:        t.SquareFeet,
		RentPsf:           t.RentPsf,
		AnnualEscalations: t.AnnualEscalations,
		LeaseStart:        t.LeaseStart,
		LeaseEnd:          t.LeaseEnd,
		LeaseType:         t.LeaseType,
		Renew:             t.Renew,
		DowntimeMonths:    t.DowntimeMonths,
		TiPsf:             t.TiPsf,
		LcPsf:             t.LcPsf,
	}
}

// SavePayload is the body of a full save or save-as request. Every broker
// and tenant row is carried, including soft-deleted ones, restricted to
// acceptable wire fields.
type SavePayload struct {
	ExpectedRevision   int64              `json:"expectedRevision"`
	PropertyDetails    PropertyDetails    `json:"propertyDetails"`
	UnderwritingInputs UnderwritingInputs `json:"underwritingInputs"`
	Brokers            []Broker           `json:"brokers"`
	Tenants            []Tenant           `json:"tenants"`
}
