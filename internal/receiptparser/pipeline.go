package receiptparser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var (
	defaultQuantity  = decimal.NewFromInt(1)
	defaultUnitPrice = decimal.Zero
)

// Pipeline runs one parse attempt per call. It never retries.
type Pipeline struct {
	files     FileOpener
	extractor Extractor
	store     Store
	log       zerolog.Logger
}

func NewPipeline(files FileOpener, extractor Extractor, store Store, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		files:     files,
		extractor: extractor,
		store:     store,
		log:       log.With().Str("component", "receiptparser").Logger(),
	}
}

// Parse reads the stored file, asks the extractor for structured data and
// writes the result back. Any failure along the way is recorded on the
// receipt as the failure marker and returned to the caller for logging.
func (p *Pipeline) Parse(ctx context.Context, receiptID uuid.UUID, filePath string) error {
	start := time.Now()
	log := p.log.With().Str("receipt_id", receiptID.String()).Logger()

	parsed, err := p.extract(ctx, filePath)
	if err == nil {
		err = p.store.ApplyParsedReceipt(ctx, receiptID, parsed)
		if err != nil {
			err = fmt.Errorf("save parsed receipt: %w", err)
		}
	}

	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("receipt parsing failed")
		if markErr := p.store.MarkReceiptParseFailed(context.WithoutCancel(ctx), receiptID, FailureMarker); markErr != nil {
			log.Error().Err(markErr).Msg("could not record parse failure")
		}
		return err
	}

	log.Info().
		Int("line_items", len(parsed.LineItems)).
		Str("total", parsed.Total.StringFixed(2)).
		Dur("elapsed", time.Since(start)).
		Msg("receipt parsed")
	return nil
}

func (p *Pipeline) extract(ctx context.Context, filePath string) (ParsedReceipt, error) {
	doc, err := p.load(ctx, filePath)
	if err != nil {
		return ParsedReceipt{}, err
	}

	raw, err := p.extractor.Extract(ctx, Prompt, doc)
	if err != nil {
		return ParsedReceipt{}, fmt.Errorf("extract: %w", err)
	}

	return Decode(raw)
}

func (p *Pipeline) load(ctx context.Context, filePath string) (Document, error) {
	rc, err := p.files.Open(ctx, filePath)
	if err != nil {
		return Document{}, fmt.Errorf("open receipt file: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return Document{}, fmt.Errorf("read receipt file: %w", err)
	}

	return Document{
		FileName:    filepath.Base(filePath),
		ContentType: DetectContentType(filePath, data),
		Data:        data,
	}, nil
}

// DetectContentType prefers the file extension and falls back to sniffing
// the bytes. Stored names usually carry no extension.
func DetectContentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

// reply mirrors the extraction output shape after schema validation.
type reply struct {
	Vendor    *string         `json:"vendor"`
	Date      *string         `json:"date"`
	Total     decimal.Decimal `json:"total"`
	LineItems []struct {
		Description string           `json:"description"`
		Quantity    *decimal.Decimal `json:"quantity"`
		UnitPrice   *decimal.Decimal `json:"unitPrice"`
		TotalPrice  decimal.Decimal  `json:"totalPrice"`
		SKU         *string          `json:"sku"`
	} `json:"lineItems"`
}

// Decode validates an extraction reply and converts it into a
// ParsedReceipt, applying quantity 1 and unit price 0 where the reply has
// none. A date that is not YYYY-MM-DD becomes nil.
func Decode(raw []byte) (ParsedReceipt, error) {
	raw = []byte(strings.TrimSpace(string(raw)))
	if err := ValidateReply(raw); err != nil {
		return ParsedReceipt{}, err
	}

	var r reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return ParsedReceipt{}, fmt.Errorf("decode reply: %w", err)
	}

	out := ParsedReceipt{
		Vendor:  r.Vendor,
		Total:   r.Total,
		Payload: json.RawMessage(raw),
	}
	if r.Date != nil {
		if d, err := time.Parse(dateLayout, strings.TrimSpace(*r.Date)); err == nil {
			out.Date = &d
		}
	}

	for _, li := range r.LineItems {
		item := ParsedLineItem{
			Description: li.Description,
			Quantity:    defaultQuantity,
			UnitPrice:   defaultUnitPrice,
			TotalPrice:  li.TotalPrice,
			SKU:         li.SKU,
		}
		if li.Quantity != nil {
			item.Quantity = *li.Quantity
		}
		if li.UnitPrice != nil {
			item.UnitPrice = *li.UnitPrice
		}
		out.LineItems = append(out.LineItems, item)
	}
	return out, nil
}
