package tally

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const masterResponse = `<ENVELOPE>
 <BODY><DATA><COLLECTION>
  <TALLYMESSAGE><LEDGER NAME="Acme Traders" RESERVEDNAME=""/></TALLYMESSAGE>
  <TALLYMESSAGE><LEDGER NAME="IGST"/></TALLYMESSAGE>
  <TALLYMESSAGE><STOCKITEM NAME="Steel Bracket"/></TALLYMESSAGE>
  <TALLYMESSAGE><UNIT NAME="Nos"/></TALLYMESSAGE>
 </COLLECTION></DATA></BODY>
</ENVELOPE>`

func TestParseMasterNames(t *testing.T) {
	tests := []struct {
		tag  string
		want []string
	}{
		{"LEDGER", []string{"Acme Traders", "IGST"}},
		{"STOCKITEM", []string{"Steel Bracket"}},
		{"UNIT", []string{"Nos"}},
		{"GODOWN", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			names, err := parseMasterNames(strings.NewReader(masterResponse), tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestParseMasterNamesMalformed(t *testing.T) {
	_, err := parseMasterNames(strings.NewReader("<ENVELOPE><TALLYMESSAGE>"), "LEDGER")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed master response")
}

func TestParseImportResult(t *testing.T) {
	ok := `<ENVELOPE><BODY><DATA><IMPORTRESULT>
		<CREATED>1</CREATED><ALTERED>0</ALTERED><ERRORS>0</ERRORS>
	</IMPORTRESULT></DATA></BODY></ENVELOPE>`

	res, err := parseImportResult(strings.NewReader(ok))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Zero(t, res.Errors)
	assert.Empty(t, res.LineError)

	rejected := `<RESPONSE><CREATED>0</CREATED><ERRORS>1</ERRORS>
		<LINEERROR>Ledger 'X' does not exist</LINEERROR></RESPONSE>`

	res, err = parseImportResult(strings.NewReader(rejected))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errors)
	assert.Contains(t, res.LineError, "does not exist")
}

func TestVoucherXML(t *testing.T) {
	v := &Voucher{
		Type:          "Sales",
		Date:          "20250601",
		Reference:     "INV-001",
		ReferenceDate: "20250601",
		Narration:     "June supply",
		PlaceOfSupply: "Maharashtra",
		Ledgers: []VoucherLedger{
			{Name: "Acme Traders", Amount: -236},
			{Name: "IGST", Amount: 36},
		},
		Inventory: []InventoryAllocation{{
			StockItem: "Steel Bracket",
			Quantity:  2,
			Unit:      "Nos",
			Rate:      100,
			Amount:    200,
			Ledgers:   []VoucherLedger{{Name: "TallAi - Sales Account", Amount: 200}},
		}},
	}

	payload, err := xml.Marshal(newImportRequest("Vouchers", "Demo Co", tallyMessage{Voucher: voucherToXML(v)}))
	require.NoError(t, err)
	out := string(payload)

	assert.Contains(t, out, `<TALLYREQUEST>Import Data</TALLYREQUEST>`)
	assert.Contains(t, out, `<SVCURRENTCOMPANY>Demo Co</SVCURRENTCOMPANY>`)
	assert.Contains(t, out, `VCHTYPE="Sales"`)
	assert.Contains(t, out, `ACTION="Create"`)
	assert.Contains(t, out, `<PLACEOFSUPPLY>Maharashtra</PLACEOFSUPPLY>`)
	assert.Contains(t, out, `<STOCKITEMNAME>Steel Bracket</STOCKITEMNAME>`)
	assert.Contains(t, out, `<ACTUALQTY>2 Nos</ACTUALQTY>`)
	assert.Contains(t, out, `<LEDGERNAME>TallAi - Sales Account</LEDGERNAME>`)
	// party line is a debit: negative amount, deemed positive
	assert.Contains(t, out, `<LEDGERNAME>Acme Traders</LEDGERNAME><ISDEEMEDPOSITIVE>Yes</ISDEEMEDPOSITIVE><AMOUNT>-236</AMOUNT>`)
	assert.Contains(t, out, `<LEDGERNAME>IGST</LEDGERNAME><ISDEEMEDPOSITIVE>No</ISDEEMEDPOSITIVE><AMOUNT>36</AMOUNT>`)
}

func TestLedgerXML(t *testing.T) {
	l := Ledger{
		Name:  "Acme Traders",
		Group: "Sundry Debtors",
		GSTRegistration: &GSTRegistration{
			GSTIN:            "27AAPFU0939F1ZV",
			State:            "Maharashtra",
			RegistrationType: "Regular",
			ApplicableFrom:   "20250401",
		},
		Mailing: &Mailing{
			Name:           "Acme Traders",
			Address:        "12 MG Road, Pune",
			State:          "Maharashtra",
			Country:        "India",
			ApplicableFrom: "20250401",
		},
	}

	payload, err := xml.Marshal(newImportRequest("All Masters", "", tallyMessage{Ledger: ledgerToXML(l)}))
	require.NoError(t, err)
	out := string(payload)

	assert.Contains(t, out, `LEDGER NAME="Acme Traders"`)
	assert.Contains(t, out, `<PARENT>Sundry Debtors</PARENT>`)
	assert.Contains(t, out, `<GSTIN>27AAPFU0939F1ZV</GSTIN>`)
	assert.Contains(t, out, `<ADDRESS>12 MG Road, Pune</ADDRESS>`)
	assert.Contains(t, out, `<COUNTRY>India</COUNTRY>`)
	assert.NotContains(t, out, "SVCURRENTCOMPANY", "company variable omitted when unset")
}

func TestFormatAmountRoundsToOneDecimal(t *testing.T) {
	assert.Equal(t, "236", formatAmount(236.0))
	assert.Equal(t, "236.1", formatAmount(236.06))
	assert.Equal(t, "-118.5", formatAmount(-118.46))
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"01/06/2025", "01-06-2025", "2025-06-01"} {
		d, err := ParseDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, Date("20250601"), d)
	}

	_, err := ParseDate("June 1st")
	assert.Error(t, err)
}

func TestFinancialYearStart(t *testing.T) {
	d := string(FinancialYearStart())
	require.Len(t, d, 8)
	assert.Equal(t, "0401", d[4:])
}
