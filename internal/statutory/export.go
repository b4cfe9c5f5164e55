package statutory

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-erp/meridian-erp/internal/companies"
)

// ExportFormat enumerates supported export encodings. JSON is the reference
// format and round-trips every report field losslessly.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// ExportFile is a rendered report ready for download.
type ExportFile struct {
	FileName    string
	ContentType string
	Bytes       []byte
}

// exportEnvelope wraps the report with company header fields for filing.
type exportEnvelope struct {
	CompanyName    string          `json:"company_name"`
	CompanyTaxID   string          `json:"company_tax_id"`
	CompanyAddress string          `json:"company_address"`
	Report         StatutoryReport `json:"report"`
}

// ExportReport renders the report in the requested format.
func ExportReport(report StatutoryReport, company companies.Company, format ExportFormat) (ExportFile, error) {
	switch format {
	case FormatJSON:
		return exportJSON(report, company)
	case FormatCSV:
		return exportCSV(report, company)
	default:
		return ExportFile{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func exportJSON(report StatutoryReport, company companies.Company) (ExportFile, error) {
	payload, err := json.MarshalIndent(exportEnvelope{
		CompanyName:    company.Name,
		CompanyTaxID:   company.TaxID,
		CompanyAddress: company.Address,
		Report:         report,
	}, "", "  ")
	if err != nil {
		return ExportFile{}, err
	}
	return ExportFile{
		FileName:    exportFileName(report, company, "json"),
		ContentType: "application/json",
		Bytes:       payload,
	}, nil
}

func exportCSV(report StatutoryReport, company companies.Company) (ExportFile, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	printer := message.NewPrinter(language.English)
	amount := func(v float64) string {
		return printer.Sprintf("%.2f", v)
	}

	rows := [][]string{
		{"Company", company.Name},
		{"Tax ID", company.TaxID},
		{"Tax Year", fmt.Sprintf("%d", report.TaxYear)},
		{"Period", report.PeriodStart.Format("2006-01-02") + " - " + report.PeriodEnd.Format("2006-01-02")},
		{"Status", string(report.Status)},
		{"Content Hash", report.ContentHash},
		{},
		{"Profit and Loss", ""},
		{"Sales Revenue", amount(report.ProfitLoss.SalesRevenue)},
		{"Service Revenue", amount(report.ProfitLoss.ServiceRevenue)},
		{"Other Revenue", amount(report.ProfitLoss.OtherRevenue)},
		{"Total Revenue", amount(report.ProfitLoss.TotalRevenue)},
		{"Opening Inventory", amount(report.ProfitLoss.OpeningInventory)},
		{"Closing Inventory", amount(report.ProfitLoss.ClosingInventory)},
		{"Cost of Sales", amount(report.ProfitLoss.TotalCostOfSales)},
		{"Manufacturing Costs", amount(report.ProfitLoss.TotalManufacturingCosts)},
		{"Research and Development", amount(report.ProfitLoss.ResearchDevelopmentExpenses)},
		{"Sales Expenses", amount(report.ProfitLoss.TotalSalesExpenses)},
		{"Administrative Expenses", amount(report.ProfitLoss.TotalAdministrativeExpenses)},
		{"Finance Expenses", amount(report.ProfitLoss.TotalFinanceExpenses)},
		{"Finance Income", amount(report.ProfitLoss.TotalFinanceIncome)},
		{"Other Income", amount(report.ProfitLoss.OtherIncome)},
		{"Other Expenses", amount(report.ProfitLoss.OtherExpenses)},
		{"Total Profit / Loss", amount(report.ProfitLoss.TotalProfitLoss)},
		{},
		{"Balance Sheet", ""},
		{"Cash and Equivalents", amount(report.BalanceSheet.Cash)},
		{"Securities", amount(report.BalanceSheet.Securities)},
		{"Receivables", amount(report.BalanceSheet.Receivables)},
		{"Other Receivables", amount(report.BalanceSheet.OtherReceivables)},
		{"Inventory", amount(report.BalanceSheet.Inventory)},
		{"Total Current Assets", amount(report.BalanceSheet.TotalCurrentAssets)},
		{"Fixed Assets", amount(report.BalanceSheet.TotalFixedAssets)},
		{"Total Assets", amount(report.BalanceSheet.TotalAssets)},
		{"Short Term Loans", amount(report.BalanceSheet.ShortTermLoans)},
		{"Payables", amount(report.BalanceSheet.Payables)},
		{"Other Payables", amount(report.BalanceSheet.OtherPayables)},
		{"Total Current Liabilities", amount(report.BalanceSheet.TotalCurrentLiabilities)},
		{"Long Term Liabilities", amount(report.BalanceSheet.TotalLongTermLiabilities)},
		{"Share Capital", amount(report.BalanceSheet.ShareCapital)},
		{"Retained Earnings", amount(report.BalanceSheet.RetainedEarnings)},
		{"Total Equity", amount(report.BalanceSheet.TotalEquity)},
		{"Total Liabilities and Equity", amount(report.BalanceSheet.TotalLiabilitiesAndEquity)},
		{"Balance Difference", amount(report.BalanceSheet.BalanceDifference)},
		{},
		{"Tax Adjustment", ""},
		{"Profit Before Tax", amount(report.TaxAdjustment.ProfitLossBeforeTax)},
	}
	for _, adj := range report.TaxAdjustment.Adjustments {
		rows = append(rows, []string{"Adjustment: " + adj.Name, amount(adj.Amount)})
	}
	rows = append(rows,
		[]string{"Total Adjustments", amount(report.TaxAdjustment.TotalAdjustments)},
		[]string{"Taxable Income", amount(report.TaxAdjustment.TaxableIncome)},
	)

	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return ExportFile{}, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return ExportFile{}, err
	}
	return ExportFile{
		FileName:    exportFileName(report, company, "csv"),
		ContentType: "text/csv; charset=utf-8",
		Bytes:       buf.Bytes(),
	}, nil
}

func exportFileName(report StatutoryReport, company companies.Company, ext string) string {
	taxID := strings.ReplaceAll(company.TaxID, " ", "")
	if taxID == "" {
		taxID = fmt.Sprintf("company-%d", report.CompanyID)
	}
	return fmt.Sprintf("statutory_%s_%d_%s.%s", taxID, report.TaxYear, report.Reference, ext)
}
