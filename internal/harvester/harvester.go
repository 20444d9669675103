package harvester

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sundaybox/weekplanner/internal/database"
	"github.com/sundaybox/weekplanner/internal/logger"
)

// Harvester scrapes the week's subscription cart page into the seed list
// consumed by plan creation. It is an external collaborator to the engine:
// its output is ordinary seed data, already resolved, with no pool locks
// involved.
type Harvester struct {
	client *http.Client
}

func New() *Harvester {
	return &Harvester{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchCart downloads the cart page and extracts its ingredient lines.
func (h *Harvester) FetchCart(ctx context.Context, url string) ([]database.SeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build cart request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cart page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cart page returned status %d", resp.StatusCode)
	}

	return ParseCart(resp.Body)
}

// ParseCart extracts {name, quantity, unit} lines from the cart DOM.
// Quantity and unit come from data attributes with text fallbacks; rows
// without a usable name or quantity are skipped.
func ParseCart(r io.Reader) ([]database.SeedItem, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cart page: %w", err)
	}

	var items []database.SeedItem
	doc.Find(".cart-item").Each(func(i int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Find(".item-name").Text())
		if name == "" {
			name = strings.TrimSpace(sel.AttrOr("data-name", ""))
		}
		if name == "" {
			logger.Warn("Skipping cart row without a name", "row", i)
			return
		}

		rawQty := sel.AttrOr("data-quantity", "")
		if rawQty == "" {
			rawQty = strings.TrimSpace(sel.Find(".item-quantity").Text())
		}
		quantity, err := strconv.ParseFloat(strings.TrimSpace(rawQty), 64)
		if err != nil || quantity < 0 {
			logger.Warn("Skipping cart row with unusable quantity", "name", name, "quantity", rawQty)
			return
		}

		unit := sel.AttrOr("data-unit", "")
		if unit == "" {
			unit = strings.TrimSpace(sel.Find(".item-unit").Text())
		}

		items = append(items, database.SeedItem{
			Name:     name,
			Quantity: quantity,
			Unit:     unit,
		})
	})

	return items, nil
}
