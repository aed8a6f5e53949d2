package tally

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Config holds the gateway connection settings
type Config struct {
	URL     string
	Company string
	Timeout time.Duration
}

// Client talks to a running Tally gateway. It implements Backend.
type Client struct {
	baseURL    string
	company    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new gateway client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.URL,
		company:    cfg.Company,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

var _ Backend = (*Client)(nil)

// Ping checks that the gateway is reachable
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tally gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tally gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// ActiveCompany returns the company currently open in the gateway
func (c *Client) ActiveCompany(ctx context.Context) (string, error) {
	// function-call envelope, built literally: the HEADER layout of
	// function requests does not fit the export/import structs
	body := `<ENVELOPE><HEADER><VERSION>1</VERSION><TALLYREQUEST>Export</TALLYREQUEST><TYPE>Function</TYPE><ID>$$CurrentCompany</ID></HEADER><BODY><DESC><FUNCPARAMLIST/></DESC></BODY></ENVELOPE>`

	resp, err := c.post(ctx, []byte(body))
	if err != nil {
		return "", err
	}

	name, err := parseFunctionResult(bytes.NewReader(resp))
	if err != nil {
		return "", err
	}
	return name, nil
}

// Ledgers returns the names of all ledgers
func (c *Client) Ledgers(ctx context.Context) ([]string, error) {
	return c.masterNames(ctx, "Ledgers", "LEDGER")
}

// StockItems returns the names of all stock items
func (c *Client) StockItems(ctx context.Context) ([]string, error) {
	return c.masterNames(ctx, "Stock Items", "STOCKITEM")
}

// Units returns the names of all units of measure
func (c *Client) Units(ctx context.Context) ([]string, error) {
	return c.masterNames(ctx, "Units", "UNIT")
}

func (c *Client) masterNames(ctx context.Context, accountType, tag string) ([]string, error) {
	payload, err := xml.Marshal(newExportRequest(accountType, c.company))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", accountType, err)
	}

	resp, err := c.post(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", accountType, err)
	}

	names, err := parseMasterNames(bytes.NewReader(resp), tag)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", accountType, err)
	}

	c.logger.Debug("Fetched master names",
		zap.String("collection", accountType),
		zap.Int("count", len(names)))
	return names, nil
}

// CreateLedger creates a ledger master
func (c *Client) CreateLedger(ctx context.Context, ledger Ledger) error {
	msg := tallyMessage{Ledger: ledgerToXML(ledger)}
	if err := c.importMessage(ctx, "All Masters", msg); err != nil {
		return fmt.Errorf("failed to create ledger %q: %w", ledger.Name, err)
	}
	c.logger.Info("Created ledger",
		zap.String("name", ledger.Name),
		zap.String("group", ledger.Group))
	return nil
}

// CreateUnit creates a unit master
func (c *Client) CreateUnit(ctx context.Context, unit Unit) error {
	msg := tallyMessage{Unit: unitToXML(unit)}
	if err := c.importMessage(ctx, "All Masters", msg); err != nil {
		return fmt.Errorf("failed to create unit %q: %w", unit.Name, err)
	}
	c.logger.Info("Created unit", zap.String("name", unit.Name))
	return nil
}

// CreateStockItem creates a stock item master
func (c *Client) CreateStockItem(ctx context.Context, item StockItem) error {
	msg := tallyMessage{StockItem: stockItemToXML(item)}
	if err := c.importMessage(ctx, "All Masters", msg); err != nil {
		return fmt.Errorf("failed to create stock item %q: %w", item.Name, err)
	}
	c.logger.Info("Created stock item",
		zap.String("name", item.Name),
		zap.String("base_unit", item.BaseUnit))
	return nil
}

// PostVoucher submits a voucher posting
func (c *Client) PostVoucher(ctx context.Context, voucher *Voucher) error {
	msg := tallyMessage{Voucher: voucherToXML(voucher)}
	if err := c.importMessage(ctx, "Vouchers", msg); err != nil {
		return fmt.Errorf("failed to post %s voucher: %w", voucher.Type, err)
	}
	c.logger.Info("Posted voucher",
		zap.String("type", voucher.Type),
		zap.String("reference", voucher.Reference),
		zap.Int("ledger_lines", len(voucher.Ledgers)),
		zap.Int("inventory_lines", len(voucher.Inventory)))
	return nil
}

func (c *Client) importMessage(ctx context.Context, reportName string, msg tallyMessage) error {
	payload, err := xml.Marshal(newImportRequest(reportName, c.company, msg))
	if err != nil {
		return fmt.Errorf("failed to build import request: %w", err)
	}

	resp, err := c.post(ctx, payload)
	if err != nil {
		return err
	}

	result, err := parseImportResult(bytes.NewReader(resp))
	if err != nil {
		return err
	}

	if result.LineError != "" {
		return fmt.Errorf("gateway rejected import: %s", result.LineError)
	}
	if result.Errors > 0 {
		return fmt.Errorf("gateway reported %d import errors", result.Errors)
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return body, nil
}
