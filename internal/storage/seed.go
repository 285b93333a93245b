package storage

import (
	"context"
	"errors"

	"github.com/matthewbaird/proforma/internal/types"
)

// DemoPropertyID is the property seeded for local development.
const DemoPropertyID = "property-1"

// Seed inserts the demo property if it is not present yet.
func (r *Repo) Seed(ctx context.Context) error {
	if _, err := r.GetVersion(ctx, DemoPropertyID, "1.1"); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return r.InsertVersion(ctx, DemoProperty())
}

// DemoProperty returns the seeded aggregate: a multi-tenant industrial
// asset with one broker, one lease, and the vacant row.
func DemoProperty() *types.PropertyVersion {
	return &types.PropertyVersion{
		PropertyID:   DemoPropertyID,
		Version:      "1.1",
		Revision:     0,
		IsLatest:     true,
		IsHistorical: false,
		PropertyDetails: types.PropertyDetails{
			Address:           "504 N Ashe Ave",
			Market:            "Charlotte",
			SubMarket:         "Southwest Charlotte",
			PropertyType:      "Industrial",
			PropertySubType:   "Multi Tenant",
			Zoning:            "M-1",
			ZoningDetails:     "M-1",
			ListingType:       "Broker Listed",
			BusinessPlan:      "Light Value Add",
			SellerType:        "Private",
			LastTradePrice:    8_250_000,
			LastTradeDate:     "2021-06-15",
			AskingPrice:       10_500_000,
			BidAmount:         9_800_000,
			YearOneCapRate:    6.1,
			StabilizedCapRate: 7.2,
			Vintage:           1998,
			BuildingSizeSf:    96_000,
			WarehouseSf:       82_000,
			OfficeSf:          14_000,
			PropertySizeAcres: 8.4,
			CoverageRatio:     26,
			OutdoorStorage:    "Yes",
			ConstructionType:  "Tilt-Up",
			ClearHeightFt:     28,
			DockDoors:         12,
			DriveInDoors:      2,
			HeavyPower:        "Yes",
			SprinklerType:     "Wet",
		},
		UnderwritingInputs: types.UnderwritingInputs{
			ListPrice:              10_500_000,
			Bid:                    9_800_000,
			GpEquityStack:          10,
			LpEquityStack:          90,
			AcqFee:                 1,
			AmFee:                  1.5,
			Promote:                20,
			PrefHurdle:             8,
			PropMgmtFee:            3,
			EstStartDate:           "2025-01-01",
			HoldPeriodYears:        5,
			ClosingCostsPct:        2,
			SaleCostsPct:           1.5,
			VacancyPct:             5,
			AnnualCapexReservesPct: 0.5,
			AnnualAdminExpPct:      0.5,
			ExpenseInflationPct:    3,
			ExitCapRate:            7.5,
		},
		Brokers: []types.Broker{
			{
				ID:      "broker-seed-1",
				Name:    "Dana Whitfield",
				Phone:   "(704) 555-0163",
				Email:   "dana.whitfield@example.com",
				Company: "Whitfield Industrial Advisors",
			},
		},
		Tenants: []types.Tenant{
			{
				ID:                "tenant-seed-1",
				TenantName:        "Carolina Freight Co",
				CreditType:        "National",
				SquareFeet:        64_000,
				RentPsf:           7.25,
				AnnualEscalations: 3,
				LeaseStart:        "2025-01-01",
				LeaseEnd:          "2029-12-31",
				LeaseType:         "NNN",
				Renew:             "Yes",
				DowntimeMonths:    0,
				TiPsf:             2,
				LcPsf:             1,
			},
			{
				ID:         types.VacantTenantID,
				TenantName: "VACANT",
				CreditType: "N/A",
				SquareFeet: 32_000,
				LeaseStart: "2025-01-01",
				LeaseEnd:   "2029-12-31",
				LeaseType:  "N/A",
				Renew:      "N/A",
				IsVacant:   true,
			},
		},
	}
}
