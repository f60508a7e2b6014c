package tally

import "time"

// ConfidenceBoost is the percentage added to the assistant's self-assessed
// confidence once real books are imported.
const ConfidenceBoost = 18

// CompanyInfo is the company block of a Tally ERP export.
type CompanyInfo struct {
	Name               string `json:"name"`
	GSTIN              string `json:"gstin,omitempty"`
	Address            string `json:"address,omitempty"`
	State              string `json:"state,omitempty"`
	FinancialYearStart string `json:"financialYearStart"`
	FinancialYearEnd   string `json:"financialYearEnd"`
	ExportDate         string `json:"exportDate"`
}

// GSTDetails is the tax breakdown attached to a voucher.
type GSTDetails struct {
	GSTIN         string  `json:"gstin,omitempty"`
	TaxRate       float64 `json:"taxRate"`
	CGST          float64 `json:"cgst"`
	SGST          float64 `json:"sgst"`
	IGST          float64 `json:"igst"`
	Cess          float64 `json:"cess"`
	TotalTax      float64 `json:"totalTax"`
	PlaceOfSupply string  `json:"placeOfSupply,omitempty"`
	ReverseCharge bool    `json:"reverseCharge"`
}

// SalesVoucher is one sales invoice.
type SalesVoucher struct {
	VoucherNumber string     `json:"voucherNumber"`
	Date          string     `json:"date"`
	PartyName     string     `json:"partyName"`
	LedgerName    string     `json:"ledgerName"`
	Amount        float64    `json:"amount"`
	TaxableValue  float64    `json:"taxableValue"`
	GST           GSTDetails `json:"gstDetails"`
	InvoiceNumber string     `json:"invoiceNumber,omitempty"`
	Narration     string     `json:"narration,omitempty"`
}

// PurchaseVoucher is one purchase bill.
type PurchaseVoucher struct {
	VoucherNumber string     `json:"voucherNumber"`
	Date          string     `json:"date"`
	SupplierName  string     `json:"supplierName"`
	LedgerName    string     `json:"ledgerName"`
	Amount        float64    `json:"amount"`
	TaxableValue  float64    `json:"taxableValue"`
	GST           GSTDetails `json:"gstDetails"`
	BillNumber    string     `json:"billNumber,omitempty"`
	Narration     string     `json:"narration,omitempty"`
}

// InventoryItem is one stock item with its closing position.
type InventoryItem struct {
	Name           string  `json:"name"`
	PartNumber     string  `json:"partNumber,omitempty"`
	Group          string  `json:"group"`
	Category       string  `json:"category,omitempty"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
	Rate           float64 `json:"rate"`
	Value          float64 `json:"value"`
	ClosingBalance float64 `json:"closingBalance"`
	OpeningBalance float64 `json:"openingBalance"`
	HSNCode        string  `json:"hsnCode,omitempty"`
}

// BankPayment is one bank payment or receipt voucher.
type BankPayment struct {
	VoucherNumber   string  `json:"voucherNumber"`
	Date            string  `json:"date"`
	BankName        string  `json:"bankName"`
	PayeeName       string  `json:"payeeName"`
	Amount          float64 `json:"amount"`
	TransactionType string  `json:"transactionType"`
	ReferenceNumber string  `json:"referenceNumber,omitempty"`
	ChequeNumber    string  `json:"chequeNumber,omitempty"`
	Narration       string  `json:"narration,omitempty"`
	Cleared         bool    `json:"cleared"`
}

// LedgerSummary is one ledger account's opening/closing position.
type LedgerSummary struct {
	LedgerName     string  `json:"ledgerName"`
	OpeningBalance float64 `json:"openingBalance"`
	ClosingBalance float64 `json:"closingBalance"`
	DebitTotal     float64 `json:"debitTotal"`
	CreditTotal    float64 `json:"creditTotal"`
	Group          string  `json:"group"`
}

// Metadata carries totals computed at import time.
type Metadata struct {
	TotalSales          float64   `json:"totalSales"`
	TotalPurchases      float64   `json:"totalPurchases"`
	TotalInventoryValue float64   `json:"totalInventoryValue"`
	TotalBankPayments   float64   `json:"totalBankPayments"`
	VoucherCount        int       `json:"voucherCount"`
	ImportedAt          time.Time `json:"importedAt"`
	ConfidenceBoost     int       `json:"confidenceBoost"`
}

// Import is a fully parsed Tally export.
type Import struct {
	Company          CompanyInfo       `json:"company"`
	SalesVouchers    []SalesVoucher    `json:"salesVouchers"`
	PurchaseVouchers []PurchaseVoucher `json:"purchaseVouchers"`
	InventoryItems   []InventoryItem   `json:"inventoryItems"`
	BankPayments     []BankPayment     `json:"bankPayments"`
	LedgerSummaries  []LedgerSummary   `json:"ledgerSummaries"`
	Metadata         Metadata          `json:"metadata"`
	Warnings         []string          `json:"warnings,omitempty"`
}
