package tally

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Parse reads a Tally ERP XML export and extracts vouchers, inventory and
// ledger positions. Tally exports vary wildly between versions; extraction
// tries several known tag spellings per field and records what it had to
// skip in Warnings rather than failing the import.
func Parse(data []byte) (*Import, error) {
	root, err := parseTree(data)
	if err != nil {
		return nil, fmt.Errorf("invalid XML: %w", err)
	}

	imp := &Import{
		Company:          extractCompany(root),
		SalesVouchers:    []SalesVoucher{},
		PurchaseVouchers: []PurchaseVoucher{},
		InventoryItems:   []InventoryItem{},
		BankPayments:     []BankPayment{},
		LedgerSummaries:  []LedgerSummary{},
	}

	vouchers := root.findAll("VOUCHER")
	for i, v := range vouchers {
		switch voucherType(v) {
		case "Sales":
			imp.SalesVouchers = append(imp.SalesVouchers, extractSales(v, i))
		case "Purchase":
			imp.PurchaseVouchers = append(imp.PurchaseVouchers, extractPurchase(v, i))
		case "Receipt":
			ledger := strings.ToLower(firstText(v, "LEDGERNAME", "PARTYLEDGERNAME"))
			if strings.Contains(ledger, "sales") || strings.Contains(ledger, "revenue") {
				imp.SalesVouchers = append(imp.SalesVouchers, extractSales(v, i))
			} else if payment, ok := extractBankTxn(v, "receipt", i); ok {
				imp.BankPayments = append(imp.BankPayments, payment)
			}
		case "Payment", "Bank Payment":
			if payment, ok := extractBankTxn(v, "payment", i); ok {
				imp.BankPayments = append(imp.BankPayments, payment)
			}
		default:
			imp.Warnings = append(imp.Warnings,
				fmt.Sprintf("skipped voucher %d with unrecognized type %q", i, voucherType(v)))
		}
	}

	for i, n := range root.findAll("STOCKITEM", "INVENTORYENTRIES.LIST", "ALLINVENTORYENTRIES.LIST") {
		imp.InventoryItems = append(imp.InventoryItems, extractInventory(n, i))
	}
	for _, n := range root.findAll("LEDGER") {
		if summary, ok := extractLedgerSummary(n); ok {
			imp.LedgerSummaries = append(imp.LedgerSummaries, summary)
		}
	}

	imp.Metadata = buildMetadata(imp)
	return imp, nil
}

func buildMetadata(imp *Import) Metadata {
	md := Metadata{
		ImportedAt:      time.Now(),
		ConfidenceBoost: ConfidenceBoost,
		VoucherCount:    len(imp.SalesVouchers) + len(imp.PurchaseVouchers) + len(imp.BankPayments),
	}
	for _, v := range imp.SalesVouchers {
		md.TotalSales += v.Amount
	}
	for _, v := range imp.PurchaseVouchers {
		md.TotalPurchases += v.Amount
	}
	for _, item := range imp.InventoryItems {
		md.TotalInventoryValue += item.Value
	}
	for _, p := range imp.BankPayments {
		md.TotalBankPayments += p.Amount
	}
	return md
}

// Summary renders the import for display in a chat reply.
func (imp *Import) Summary() string {
	var sb strings.Builder
	sb.WriteString("Tally Import Summary\n")
	fmt.Fprintf(&sb, "Company: %s\n", imp.Company.Name)
	fmt.Fprintf(&sb, "FY: %s to %s\n\n", imp.Company.FinancialYearStart, imp.Company.FinancialYearEnd)
	fmt.Fprintf(&sb, "Total Sales: INR %.2f\n", imp.Metadata.TotalSales)
	fmt.Fprintf(&sb, "Total Purchases: INR %.2f\n", imp.Metadata.TotalPurchases)
	fmt.Fprintf(&sb, "Inventory Value: INR %.2f\n", imp.Metadata.TotalInventoryValue)
	fmt.Fprintf(&sb, "Bank Transactions: INR %.2f\n\n", imp.Metadata.TotalBankPayments)
	fmt.Fprintf(&sb, "Sales Vouchers: %d\n", len(imp.SalesVouchers))
	fmt.Fprintf(&sb, "Purchase Vouchers: %d\n", len(imp.PurchaseVouchers))
	fmt.Fprintf(&sb, "Inventory Items: %d\n", len(imp.InventoryItems))
	fmt.Fprintf(&sb, "Bank Payments: %d\n\n", len(imp.BankPayments))
	fmt.Fprintf(&sb, "Confidence Boost: +%d%%", imp.Metadata.ConfidenceBoost)
	return sb.String()
}

func extractCompany(root *node) CompanyInfo {
	company := root.find("COMPANY")
	if company == nil {
		company = root
	}

	name := firstText(company, "NAME", "COMPANYNAME")
	if name == "" {
		name = firstText(root, "COMPANYNAME")
	}
	if name == "" {
		name = "Unknown Company"
	}

	year := time.Now().Year()
	fyStart := fmt.Sprintf("%d-04-01", year)
	fyEnd := fmt.Sprintf("%d-03-31", year+1)
	if fy := firstText(company, "FINANCIALYEAR", "BOOKSDATE"); fy != "" {
		if parts := strings.Split(fy, "-"); len(parts) == 2 {
			fyStart = formatDate(parts[0])
			fyEnd = formatDate(parts[1])
		}
	}

	return CompanyInfo{
		Name:               name,
		GSTIN:              firstText(company, "GSTIN", "PARTYGSTIN", "GSTREGISTRATIONNUMBER"),
		Address:            firstText(company, "ADDRESS", "MAILINGNAME"),
		State:              firstText(company, "STATENAME", "STATE"),
		FinancialYearStart: fyStart,
		FinancialYearEnd:   fyEnd,
		ExportDate:         time.Now().Format("2006-01-02"),
	}
}

// voucherType reads the type from the VCHTYPE attribute or the
// VOUCHERTYPENAME child, whichever the exporting Tally version used.
func voucherType(v *node) string {
	if t := v.attrs["VCHTYPE"]; t != "" {
		return t
	}
	return firstText(v, "VOUCHERTYPENAME")
}

func extractSales(v *node, index int) SalesVoucher {
	gst := extractGST(v)
	amount := abs(parseAmount(firstText(v, "AMOUNT")))

	number := firstText(v, "VOUCHERNUMBER", "NUMBER")
	if number == "" {
		number = fmt.Sprintf("SALE-%d", index+1)
	}
	party := firstText(v, "PARTYNAME", "PARTYLEDGERNAME")
	if party == "" {
		party = "Unknown Party"
	}
	ledger := firstText(v, "LEDGERNAME", "BASICBUYERNAME")
	if ledger == "" {
		ledger = "Sales"
	}

	return SalesVoucher{
		VoucherNumber: number,
		Date:          formatDate(firstText(v, "DATE", "VOUCHERDATE")),
		PartyName:     party,
		LedgerName:    ledger,
		Amount:        amount,
		TaxableValue:  amount - gst.TotalTax,
		GST:           gst,
		InvoiceNumber: firstText(v, "INVOICENUMBER", "REFERENCENUMBER"),
		Narration:     firstText(v, "NARRATION"),
	}
}

func extractPurchase(v *node, index int) PurchaseVoucher {
	gst := extractGST(v)
	amount := abs(parseAmount(firstText(v, "AMOUNT")))

	number := firstText(v, "VOUCHERNUMBER", "NUMBER")
	if number == "" {
		number = fmt.Sprintf("PUR-%d", index+1)
	}
	supplier := firstText(v, "PARTYNAME", "PARTYLEDGERNAME")
	if supplier == "" {
		supplier = "Unknown Supplier"
	}
	ledger := firstText(v, "LEDGERNAME")
	if ledger == "" {
		ledger = "Purchase"
	}

	return PurchaseVoucher{
		VoucherNumber: number,
		Date:          formatDate(firstText(v, "DATE", "VOUCHERDATE")),
		SupplierName:  supplier,
		LedgerName:    ledger,
		Amount:        amount,
		TaxableValue:  amount - gst.TotalTax,
		GST:           gst,
		BillNumber:    firstText(v, "BILLNUMBER", "REFERENCE"),
		Narration:     firstText(v, "NARRATION"),
	}
}

// extractBankTxn returns ok=false for vouchers that are not bank
// transactions (no bank ledger and no instrument number).
func extractBankTxn(v *node, txnType string, index int) (BankPayment, bool) {
	bankLedger := firstText(v, "LEDGERNAME")
	cheque := firstText(v, "INSTRUMENTNUMBER", "CHEQUENUMBER")
	if !strings.Contains(strings.ToLower(bankLedger), "bank") && cheque == "" {
		return BankPayment{}, false
	}

	number := firstText(v, "VOUCHERNUMBER")
	if number == "" {
		number = fmt.Sprintf("%s-%d", strings.ToUpper(txnType), index+1)
	}
	if bankLedger == "" {
		bankLedger = "Bank Account"
	}
	payee := firstText(v, "PARTYNAME", "PARTYLEDGERNAME")
	if payee == "" {
		payee = "Unknown"
	}

	return BankPayment{
		VoucherNumber:   number,
		Date:            formatDate(firstText(v, "DATE")),
		BankName:        bankLedger,
		PayeeName:       payee,
		Amount:          abs(parseAmount(firstText(v, "AMOUNT"))),
		TransactionType: txnType,
		ReferenceNumber: firstText(v, "REFERENCE", "REFERENCENUMBER"),
		ChequeNumber:    cheque,
		Narration:       firstText(v, "NARRATION"),
		Cleared:         firstText(v, "ISCLEARED") == "Yes",
	}, true
}

func extractInventory(n *node, index int) InventoryItem {
	name := firstText(n, "NAME", "STOCKITEMNAME")
	if name == "" {
		name = fmt.Sprintf("Item-%d", index+1)
	}
	group := firstText(n, "PARENT", "STOCKGROUP")
	if group == "" {
		group = "Default"
	}
	unit := firstText(n, "BASEUNITS", "UNIT")
	if unit == "" {
		unit = "Nos"
	}

	quantity := parseAmount(firstText(n, "CLOSINGBALANCE", "BILLEDQTY", "ACTUALQTY"))
	rate := parseAmount(firstText(n, "RATE", "STANDARDCOST"))
	value := parseAmount(firstText(n, "CLOSINGVALUE", "AMOUNT"))
	if value == 0 {
		value = quantity * rate
	}

	return InventoryItem{
		Name:           name,
		PartNumber:     firstText(n, "PARTNUMBER", "ITEMCODE"),
		Group:          group,
		Category:       firstText(n, "CATEGORY", "STOCKCATEGORY"),
		Quantity:       quantity,
		Unit:           unit,
		Rate:           rate,
		Value:          value,
		ClosingBalance: quantity,
		OpeningBalance: parseAmount(firstText(n, "OPENINGBALANCE")),
		HSNCode:        firstText(n, "HSNCODE"),
	}
}

func extractLedgerSummary(n *node) (LedgerSummary, bool) {
	name := firstText(n, "NAME", "LEDGERNAME")
	if name == "" {
		return LedgerSummary{}, false
	}
	group := firstText(n, "PARENT", "GROUP")
	if group == "" {
		group = "Unknown"
	}
	return LedgerSummary{
		LedgerName:     name,
		OpeningBalance: parseAmount(firstText(n, "OPENINGBALANCE")),
		ClosingBalance: parseAmount(firstText(n, "CLOSINGBALANCE")),
		DebitTotal:     parseAmount(firstText(n, "DEBITTOTAL")),
		CreditTotal:    parseAmount(firstText(n, "CREDITTOTAL")),
		Group:          group,
	}, true
}

func extractGST(v *node) GSTDetails {
	scope := v.find("GSTDETAILS")
	if scope == nil {
		scope = v
	}
	cgst := abs(parseAmount(firstText(scope, "CGSTAMOUNT", "CGST")))
	sgst := abs(parseAmount(firstText(scope, "SGSTAMOUNT", "SGST")))
	igst := abs(parseAmount(firstText(scope, "IGSTAMOUNT", "IGST")))
	cess := abs(parseAmount(firstText(scope, "CESSAMOUNT", "CESS")))

	return GSTDetails{
		GSTIN:         firstText(scope, "PARTYGSTIN", "GSTIN"),
		TaxRate:       parseAmount(firstText(scope, "GSTRATE", "TAXRATE")),
		CGST:          cgst,
		SGST:          sgst,
		IGST:          igst,
		Cess:          cess,
		TotalTax:      cgst + sgst + igst + cess,
		PlaceOfSupply: firstText(scope, "PLACEOFSUPPLY"),
		ReverseCharge: firstText(scope, "ISREVERSECHARGE") == "Yes",
	}
}

// node is one element of the parsed XML tree.
type node struct {
	name     string
	attrs    map[string]string
	text     string
	children []*node
}

// parseTree builds a full element tree from the document. Tally exports are
// small enough that holding the tree in memory beats streaming.
func parseTree(data []byte) (*node, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false

	root := &node{name: ""}
	stack := []*node{root}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local, attrs: make(map[string]string)}
			for _, attr := range t.Attr {
				n.attrs[attr.Name.Local] = attr.Value
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			current := stack[len(stack)-1]
			current.text += string(t)
		}
	}

	if len(root.children) == 0 {
		return nil, fmt.Errorf("document has no elements")
	}
	return root, nil
}

// find returns the first descendant with the given name, depth first.
func (n *node) find(name string) *node {
	for _, child := range n.children {
		if child.name == name {
			return child
		}
		if found := child.find(name); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every descendant matching any of the names, in document
// order.
func (n *node) findAll(names ...string) []*node {
	var out []*node
	var walk func(*node)
	walk = func(cur *node) {
		for _, child := range cur.children {
			for _, name := range names {
				if child.name == name {
					out = append(out, child)
					break
				}
			}
			walk(child)
		}
	}
	walk(n)
	return out
}

// firstText tries each name in order and returns the first non-empty
// descendant text.
func firstText(n *node, names ...string) string {
	if n == nil {
		return ""
	}
	for _, name := range names {
		if found := n.find(name); found != nil {
			if text := strings.TrimSpace(found.text); text != "" {
				return text
			}
		}
	}
	return ""
}

// parseAmount handles Tally's numeric formats, including comma grouping and
// trailing Dr/Cr markers.
func parseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, " Dr")
	s = strings.TrimSuffix(s, " Cr")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// formatDate converts Tally's YYYYMMDD dates to ISO. Unparseable dates fall
// back to today, matching how exports with missing dates are treated
// elsewhere in the import.
func formatDate(s string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)

	if len(digits) == 8 {
		return digits[:4] + "-" + digits[4:6] + "-" + digits[6:8]
	}
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(s)); err == nil {
		return t.Format("2006-01-02")
	}
	return time.Now().Format("2006-01-02")
}
