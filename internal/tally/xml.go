package tally

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// exportEnvelope asks the gateway for a master collection.
type exportEnvelope struct {
	XMLName      xml.Name `xml:"ENVELOPE"`
	Request      string   `xml:"HEADER>TALLYREQUEST"`
	ReportName   string   `xml:"BODY>EXPORTDATA>REQUESTDESC>REPORTNAME"`
	ExportFormat string   `xml:"BODY>EXPORTDATA>REQUESTDESC>STATICVARIABLES>SVEXPORTFORMAT"`
	AccountType  string   `xml:"BODY>EXPORTDATA>REQUESTDESC>STATICVARIABLES>ACCOUNTTYPE,omitempty"`
	Company      string   `xml:"BODY>EXPORTDATA>REQUESTDESC>STATICVARIABLES>SVCURRENTCOMPANY,omitempty"`
}

func newExportRequest(accountType, company string) exportEnvelope {
	return exportEnvelope{
		Request:      "Export Data",
		ReportName:   "List of Accounts",
		ExportFormat: "$$SysName:XML",
		AccountType:  accountType,
		Company:      company,
	}
}

// importEnvelope submits one master or voucher to the gateway.
type importEnvelope struct {
	XMLName    xml.Name     `xml:"ENVELOPE"`
	Request    string       `xml:"HEADER>TALLYREQUEST"`
	ReportName string       `xml:"BODY>IMPORTDATA>REQUESTDESC>REPORTNAME"`
	Company    string       `xml:"BODY>IMPORTDATA>REQUESTDESC>STATICVARIABLES>SVCURRENTCOMPANY,omitempty"`
	Message    tallyMessage `xml:"BODY>IMPORTDATA>REQUESTDATA>TALLYMESSAGE"`
}

func newImportRequest(reportName, company string, msg tallyMessage) importEnvelope {
	return importEnvelope{
		Request:    "Import Data",
		ReportName: reportName,
		Company:    company,
		Message:    msg,
	}
}

type tallyMessage struct {
	Ledger    *ledgerXML    `xml:"LEDGER,omitempty"`
	Unit      *unitXML      `xml:"UNIT,omitempty"`
	StockItem *stockItemXML `xml:"STOCKITEM,omitempty"`
	Voucher   *voucherXML   `xml:"VOUCHER,omitempty"`
}

type ledgerXML struct {
	Name          string               `xml:"NAME,attr"`
	Action        string               `xml:"ACTION,attr"`
	LedgerName    string               `xml:"NAME"`
	Parent        string               `xml:"PARENT"`
	TaxType       string               `xml:"TAXTYPE,omitempty"`
	GSTDutyHead   string               `xml:"GSTDUTYHEAD,omitempty"`
	Registrations []gstRegistrationXML `xml:"LEDGSTREGDETAILS.LIST,omitempty"`
	Mailing       []mailingXML         `xml:"LEDMAILINGDETAILS.LIST,omitempty"`
}

type gstRegistrationXML struct {
	ApplicableFrom   Date   `xml:"APPLICABLEFROM"`
	RegistrationType string `xml:"GSTREGISTRATIONTYPE"`
	State            string `xml:"STATE"`
	GSTIN            string `xml:"GSTIN"`
}

type mailingXML struct {
	ApplicableFrom Date     `xml:"APPLICABLEFROM"`
	MailingName    string   `xml:"MAILINGNAME"`
	Address        []string `xml:"ADDRESS.LIST>ADDRESS,omitempty"`
	State          string   `xml:"STATE"`
	Country        string   `xml:"COUNTRY"`
}

type unitXML struct {
	Name     string `xml:"NAME,attr"`
	Action   string `xml:"ACTION,attr"`
	UnitName string `xml:"NAME"`
}

type stockItemXML struct {
	Name      string         `xml:"NAME,attr"`
	Action    string         `xml:"ACTION,attr"`
	ItemName  string         `xml:"NAME"`
	BaseUnits string         `xml:"BASEUNITS"`
	HSN       []hsnDetailXML `xml:"HSNDETAILS.LIST,omitempty"`
	GST       []gstDetailXML `xml:"GSTDETAILS.LIST,omitempty"`
}

type hsnDetailXML struct {
	ApplicableFrom Date   `xml:"APPLICABLEFROM"`
	HSNCode        string `xml:"HSNCODE"`
	Source         string `xml:"SRCOFHSNDETAILS"`
}

type gstDetailXML struct {
	ApplicableFrom Date               `xml:"APPLICABLEFROM"`
	Taxability     string             `xml:"TAXABILITY"`
	Source         string             `xml:"SRCOFGSTDETAILS"`
	StateWise      []stateWiseGSTXML  `xml:"STATEWISEDETAILS.LIST"`
}

type stateWiseGSTXML struct {
	StateName string           `xml:"STATENAME"`
	Rates     []gstRateXML     `xml:"RATEDETAILS.LIST"`
}

type gstRateXML struct {
	DutyHead      string `xml:"GSTRATEDUTYHEAD"`
	ValuationType string `xml:"GSTRATEVALUATIONTYPE"`
	Rate          string `xml:"GSTRATE"`
}

type voucherXML struct {
	VoucherType   string               `xml:"VCHTYPE,attr"`
	Action        string               `xml:"ACTION,attr"`
	Date          Date                 `xml:"DATE"`
	TypeName      string               `xml:"VOUCHERTYPENAME"`
	Reference     string               `xml:"REFERENCE,omitempty"`
	ReferenceDate Date                 `xml:"REFERENCEDATE,omitempty"`
	Narration     string               `xml:"NARRATION,omitempty"`
	PlaceOfSupply string               `xml:"PLACEOFSUPPLY,omitempty"`
	Inventory     []inventoryEntryXML  `xml:"ALLINVENTORYENTRIES.LIST,omitempty"`
	Ledgers       []ledgerEntryXML     `xml:"ALLLEDGERENTRIES.LIST,omitempty"`
}

type ledgerEntryXML struct {
	LedgerName       string `xml:"LEDGERNAME"`
	IsDeemedPositive string `xml:"ISDEEMEDPOSITIVE"`
	Amount           string `xml:"AMOUNT"`
}

type inventoryEntryXML struct {
	StockItemName    string           `xml:"STOCKITEMNAME"`
	IsDeemedPositive string           `xml:"ISDEEMEDPOSITIVE"`
	Rate             string           `xml:"RATE"`
	ActualQty        string           `xml:"ACTUALQTY"`
	BilledQty        string           `xml:"BILLEDQTY"`
	Amount           string           `xml:"AMOUNT"`
	Allocations      []ledgerEntryXML `xml:"ACCOUNTINGALLOCATIONS.LIST"`
}

func ledgerToXML(l Ledger) *ledgerXML {
	out := &ledgerXML{
		Name:        l.Name,
		Action:      "Create",
		LedgerName:  l.Name,
		Parent:      l.Group,
		TaxType:     l.TaxType,
		GSTDutyHead: l.GSTTaxType,
	}
	if l.GSTRegistration != nil {
		out.Registrations = []gstRegistrationXML{{
			ApplicableFrom:   l.GSTRegistration.ApplicableFrom,
			RegistrationType: l.GSTRegistration.RegistrationType,
			State:            l.GSTRegistration.State,
			GSTIN:            l.GSTRegistration.GSTIN,
		}}
	}
	if l.Mailing != nil {
		m := mailingXML{
			ApplicableFrom: l.Mailing.ApplicableFrom,
			MailingName:    l.Mailing.Name,
			State:          l.Mailing.State,
			Country:        l.Mailing.Country,
		}
		if l.Mailing.Address != "" {
			m.Address = []string{l.Mailing.Address}
		}
		out.Mailing = []mailingXML{m}
	}
	return out
}

func unitToXML(u Unit) *unitXML {
	return &unitXML{Name: u.Name, Action: "Create", UnitName: u.Name}
}

func stockItemToXML(s StockItem) *stockItemXML {
	out := &stockItemXML{
		Name:      s.Name,
		Action:    "Create",
		ItemName:  s.Name,
		BaseUnits: s.BaseUnit,
	}
	if s.HSN != nil {
		out.HSN = []hsnDetailXML{{
			ApplicableFrom: s.HSN.ApplicableFrom,
			HSNCode:        s.HSN.Code,
			Source:         "Specify Details Here",
		}}
	}
	if s.GSTRate != nil {
		out.GST = []gstDetailXML{{
			ApplicableFrom: s.GSTRate.ApplicableFrom,
			Taxability:     "Taxable",
			Source:         "Specify Details Here",
			StateWise: []stateWiseGSTXML{{
				StateName: s.GSTRate.StateName,
				Rates: []gstRateXML{{
					DutyHead:      s.GSTRate.DutyHead,
					ValuationType: "Based on Value",
					Rate:          formatAmount(s.GSTRate.Rate),
				}},
			}},
		}}
	}
	return out
}

func voucherToXML(v *Voucher) *voucherXML {
	out := &voucherXML{
		VoucherType:   v.Type,
		Action:        "Create",
		Date:          v.Date,
		TypeName:      v.Type,
		Reference:     v.Reference,
		ReferenceDate: v.ReferenceDate,
		Narration:     v.Narration,
		PlaceOfSupply: v.PlaceOfSupply,
	}

	for _, inv := range v.Inventory {
		entry := inventoryEntryXML{
			StockItemName:    inv.StockItem,
			IsDeemedPositive: deemedPositive(inv.Amount),
			Rate:             formatAmount(inv.Rate),
			ActualQty:        formatQuantity(inv.Quantity, inv.Unit),
			BilledQty:        formatQuantity(inv.Quantity, inv.Unit),
			Amount:           formatAmount(inv.Amount),
		}
		for _, l := range inv.Ledgers {
			entry.Allocations = append(entry.Allocations, ledgerEntryXML{
				LedgerName:       l.Name,
				IsDeemedPositive: deemedPositive(l.Amount),
				Amount:           formatAmount(l.Amount),
			})
		}
		out.Inventory = append(out.Inventory, entry)
	}

	for _, l := range v.Ledgers {
		out.Ledgers = append(out.Ledgers, ledgerEntryXML{
			LedgerName:       l.Name,
			IsDeemedPositive: deemedPositive(l.Amount),
			Amount:           formatAmount(l.Amount),
		})
	}

	return out
}

// deemedPositive marks debit lines; Tally treats negative amounts as debits.
func deemedPositive(amount float64) string {
	if amount < 0 {
		return "Yes"
	}
	return "No"
}

// formatAmount renders a wire amount, rounded to one decimal place.
func formatAmount(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

func formatQuantity(qty float64, unit string) string {
	q := strconv.FormatFloat(qty, 'f', -1, 64)
	if unit == "" {
		return q
	}
	return fmt.Sprintf("%s %s", q, unit)
}

// parseMasterNames collects the NAME attributes of every <tag> element
// found inside a TALLYMESSAGE block of a collection export response.
func parseMasterNames(r io.Reader, tag string) ([]string, error) {
	decoder := xml.NewDecoder(r)
	names := []string{}
	inMessage := 0

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed master response: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "TALLYMESSAGE" {
				inMessage++
				continue
			}
			if inMessage > 0 && strings.EqualFold(el.Name.Local, tag) {
				for _, attr := range el.Attr {
					if attr.Name.Local == "NAME" {
						names = append(names, attr.Value)
					}
				}
			}
		case xml.EndElement:
			if el.Name.Local == "TALLYMESSAGE" {
				inMessage--
			}
		}
	}
	return names, nil
}

// importResult is the gateway's verdict on an import request.
type importResult struct {
	Created   int
	Altered   int
	Errors    int
	LineError string
}

// parseImportResult walks the response tolerantly; gateways nest the result
// block differently across versions.
func parseImportResult(r io.Reader) (importResult, error) {
	decoder := xml.NewDecoder(r)
	var res importResult
	var current string

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fmt.Errorf("malformed import response: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			current = el.Name.Local
		case xml.CharData:
			text := strings.TrimSpace(string(el))
			if text == "" {
				continue
			}
			switch current {
			case "CREATED":
				res.Created, _ = strconv.Atoi(text)
			case "ALTERED":
				res.Altered, _ = strconv.Atoi(text)
			case "ERRORS":
				res.Errors, _ = strconv.Atoi(text)
			case "LINEERROR":
				res.LineError = text
			}
		case xml.EndElement:
			current = ""
		}
	}
	return res, nil
}

// parseFunctionResult extracts the RESULT value of a function-call response.
func parseFunctionResult(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	inResult := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("malformed function response: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			inResult = el.Name.Local == "RESULT"
		case xml.CharData:
			if inResult {
				if text := strings.TrimSpace(string(el)); text != "" {
					return text, nil
				}
			}
		case xml.EndElement:
			inResult = false
		}
	}
	return "", fmt.Errorf("no RESULT in function response")
}
