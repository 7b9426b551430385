package plans

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config selects where the Stripe price table comes from. Both sources may
// be set; inline entries are applied after the file.
type Config struct {
	PriceTable     string `env:"STRIPE_PRICE_TABLE"`
	PriceTableFile string `env:"STRIPE_PRICE_TABLE_FILE"`
}

// PriceTable maps Stripe price ids to plan tiers and back.
type PriceTable struct {
	byPrice map[string]Plan
	byPlan  map[Plan]string
}

// NewPriceTable builds a table from a price id to plan map.
func NewPriceTable(prices map[string]Plan) (*PriceTable, error) {
	t := &PriceTable{
		byPrice: make(map[string]Plan, len(prices)),
		byPlan:  make(map[Plan]string, len(prices)),
	}
	for id, p := range prices {
		if err := t.add(id, p); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// PlanForPrice resolves a Stripe price id.
func (t *PriceTable) PlanForPrice(priceID string) (Plan, bool) {
	if t == nil {
		return "", false
	}
	p, ok := t.byPrice[priceID]
	return p, ok
}

// PriceForPlan returns the price id used for new checkouts on p. When several
// prices map to one plan the lexically smallest id is used.
func (t *PriceTable) PriceForPlan(p Plan) (string, bool) {
	if t == nil {
		return "", false
	}
	id, ok := t.byPlan[p]
	return id, ok
}

// Len counts mapped price ids.
func (t *PriceTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byPrice)
}

func (t *PriceTable) add(priceID string, p Plan) error {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return fmt.Errorf("%w: empty price id", ErrInvalidPriceMap)
	}
	p, err := ParsePlan(string(p))
	if err != nil {
		return errors.Join(ErrInvalidPriceMap, err)
	}
	if p == Free {
		return fmt.Errorf("%w: price %q cannot map to the free plan", ErrInvalidPriceMap, priceID)
	}
	if existing, ok := t.byPrice[priceID]; ok && existing != p {
		return fmt.Errorf("%w: price %q mapped to both %s and %s", ErrInvalidPriceMap, priceID, existing, p)
	}
	t.byPrice[priceID] = p
	if cur, ok := t.byPlan[p]; !ok || priceID < cur {
		t.byPlan[p] = priceID
	}
	return nil
}

// ParsePriceTable parses "price_a:STARTER,price_b:PRO".
func ParsePriceTable(s string) (*PriceTable, error) {
	t, _ := NewPriceTable(nil)
	if err := t.parseInline(s); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *PriceTable) parseInline(s string) error {
	for pair := range strings.SplitSeq(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, plan, ok := strings.Cut(pair, ":")
		if !ok {
			return fmt.Errorf("%w: entry %q is not price_id:PLAN", ErrInvalidPriceMap, pair)
		}
		if err := t.add(id, Plan(plan)); err != nil {
			return err
		}
	}
	return nil
}

type priceFile struct {
	Prices map[string]string `yaml:"prices"`
}

// LoadPriceTableFile reads a YAML document of the form
//
//	prices:
//	  price_starter_monthly: STARTER
//	  price_pro_monthly: PRO
func LoadPriceTableFile(path string) (*PriceTable, error) {
	t, _ := NewPriceTable(nil)
	if err := t.loadFile(path); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *PriceTable) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Join(ErrInvalidPriceMap, err)
	}
	var doc priceFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return errors.Join(ErrInvalidPriceMap, err)
	}
	for id, plan := range doc.Prices {
		if err := t.add(id, Plan(plan)); err != nil {
			return err
		}
	}
	return nil
}

// LoadPriceTable builds the table described by cfg. An empty config yields an
// empty table.
func LoadPriceTable(cfg Config) (*PriceTable, error) {
	t, _ := NewPriceTable(nil)
	if cfg.PriceTableFile != "" {
		if err := t.loadFile(cfg.PriceTableFile); err != nil {
			return nil, err
		}
	}
	if err := t.parseInline(cfg.PriceTable); err != nil {
		return nil, err
	}
	return t, nil
}
