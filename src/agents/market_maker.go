package agents

import (
	"fmt"

	"proteus/src/core"
)

// MarketMakerConfig tunes the inventory-aware spread model. Zero values fall
// back to the calibrated defaults.
type MarketMakerConfig struct {
	BeliefInit       float64
	H0               float64
	KappaInventory   float64
	AInventorySpread float64
	BVolSpread       float64
	CASSpread        float64
	MinHalfSpread    float64
	BaseSize         float64
	MinSize          float64
	MaxInventory     float64
	BeliefAlpha      float64
	VolAlpha         float64
	ASAlpha          float64
}

// DefaultMarketMakerConfig mirrors the baseline quoting regime.
func DefaultMarketMakerConfig() MarketMakerConfig {
	return MarketMakerConfig{
		BeliefInit:       0.5,
		H0:               0.01,
		KappaInventory:   0.01,
		AInventorySpread: 0.002,
		BVolSpread:       0.5,
		CASSpread:        0.5,
		MinHalfSpread:    0.0025,
		BaseSize:         1.0,
		MinSize:          0.1,
		MaxInventory:     20.0,
		BeliefAlpha:      0.35,
		VolAlpha:         0.25,
		ASAlpha:          0.2,
	}
}

// MarketMaker quotes both sides around an inventory-skewed reservation price.
// Spread widens with inventory, realized volatility, and estimated adverse
// selection; at the risk limit only the inventory-reducing side is quoted.
type MarketMaker struct {
	id  string
	cfg MarketMakerConfig

	belief    float64
	inventory float64
	sigmaHat  float64
	asHat     float64
	lastMid   float64
	hasMid    bool
	intentSeq int64
}

func NewMarketMaker(agentID string, cfg MarketMakerConfig) *MarketMaker {
	return &MarketMaker{
		id:     agentID,
		cfg:    cfg,
		belief: clip01(cfg.BeliefInit),
	}
}

func (m *MarketMaker) AgentID() string { return m.id }

func (m *MarketMaker) Inventory() float64 { return m.inventory }

func (m *MarketMaker) OnEvent(event core.Event) {
	switch event.Type {
	case core.EventNews:
		if signal, ok := extractFloat(event.Payload, "signal", "belief", "p_t"); ok {
			m.belief = clip01((1.0-m.cfg.BeliefAlpha)*m.belief + m.cfg.BeliefAlpha*signal)
		}
	case core.EventFill:
		size, _ := extractFloat(event.Payload, "size")
		fillPrice, hasPrice := extractFloat(event.Payload, "price")

		bought := event.Payload["buy_agent_id"] == m.id
		sold := event.Payload["sell_agent_id"] == m.id
		if bought {
			m.inventory += size
		} else if sold {
			m.inventory -= size
		}

		if hasPrice && (bought || sold) {
			asSample := abs(m.belief - fillPrice)
			m.asHat = (1.0-m.cfg.ASAlpha)*m.asHat + m.cfg.ASAlpha*asSample
			m.updateVolFromMid(fillPrice)
		}
	default:
		if mid, ok := extractMid(event.Payload); ok {
			m.updateVolFromMid(mid)
		}
	}
}

func (m *MarketMaker) GenerateIntents(tsMs int64) []core.OrderIntent {
	if tsMs < 0 {
		return nil
	}

	reservation := clip01(m.belief - m.cfg.KappaInventory*m.inventory)
	halfSpread := m.cfg.H0 +
		m.cfg.AInventorySpread*abs(m.inventory) +
		m.cfg.BVolSpread*m.sigmaHat +
		m.cfg.CASSpread*m.asHat
	if halfSpread < m.cfg.MinHalfSpread {
		halfSpread = m.cfg.MinHalfSpread
	}

	maxInv := m.cfg.MaxInventory
	if maxInv < 1e-9 {
		maxInv = 1e-9
	}
	sizeScale := 1.0 - abs(m.inventory)/maxInv
	if sizeScale < 0.2 {
		sizeScale = 0.2
	}
	orderSize := m.cfg.BaseSize * sizeScale
	if orderSize < m.cfg.MinSize {
		orderSize = m.cfg.MinSize
	}

	// At the risk limit, quote only the inventory-reducing side.
	if m.inventory >= m.cfg.MaxInventory {
		ask := clip01(reservation + halfSpread)
		return []core.OrderIntent{m.makeIntent(tsMs, core.SideSell, ask, orderSize)}
	}
	if m.inventory <= -m.cfg.MaxInventory {
		bid := clip01(reservation - halfSpread)
		return []core.OrderIntent{m.makeIntent(tsMs, core.SideBuy, bid, orderSize)}
	}

	bid := clip01(reservation - halfSpread)
	ask := clip01(reservation + halfSpread)
	if bid >= ask {
		epsilon := m.cfg.MinHalfSpread
		if epsilon > 0.001 {
			epsilon = 0.001
		}
		bid = clip01(reservation - epsilon)
		ask = clip01(reservation + epsilon)
	}

	return []core.OrderIntent{
		m.makeIntent(tsMs, core.SideBuy, bid, orderSize),
		m.makeIntent(tsMs, core.SideSell, ask, orderSize),
	}
}

func (m *MarketMaker) makeIntent(tsMs int64, side core.Side, price, size float64) core.OrderIntent {
	m.intentSeq++
	return core.NewOrderIntent(
		fmt.Sprintf("%s-%d-%d", m.id, tsMs, m.intentSeq),
		m.id, tsMs, side, price, size,
	)
}

func (m *MarketMaker) updateVolFromMid(mid float64) {
	mid = clip01(mid)
	if !m.hasMid {
		m.lastMid = mid
		m.hasMid = true
		return
	}
	delta := abs(mid - m.lastMid)
	m.sigmaHat = (1.0-m.cfg.VolAlpha)*m.sigmaHat + m.cfg.VolAlpha*delta
	m.lastMid = mid
}

func abs(value float64) float64 {
	if value < 0 {
		return -value
	}
	return value
}
