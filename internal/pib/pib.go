package pib

import (
	"errors"
	"fmt"
	"rtb-engine/internal/models"
	"strings"
	"sync"
)

var (
	ErrUnsupportedAttribute = errors.New("unsupported attribute")
	ErrReadOnly             = errors.New("attribute is read-only")
	ErrOutOfRange           = errors.New("value out of range")
)

type Attribute uint8

const (
	RangingEnabled Attribute = iota + 1
	RangingMethod
	PMUFreqStart
	PMUFreqStep
	PMUFreqStop
	PMUVerboseLevel
	DefaultAntenna
	EnableAntennaDiv
	ProvideAntennaDivResults
	RangingTransmitPower
	ProvideRangingTransmitPower
	ApplyMinDistThreshold
)

var attributeNames = map[Attribute]string{
	RangingEnabled:              "RangingEnabled",
	RangingMethod:               "RangingMethod",
	PMUFreqStart:                "PMUFreqStart",
	PMUFreqStep:                 "PMUFreqStep",
	PMUFreqStop:                 "PMUFreqStop",
	PMUVerboseLevel:             "PMUVerboseLevel",
	DefaultAntenna:              "DefaultAntenna",
	EnableAntennaDiv:            "EnableAntennaDiv",
	ProvideAntennaDivResults:    "ProvideAntennaDivResults",
	RangingTransmitPower:        "RangingTransmitPower",
	ProvideRangingTransmitPower: "ProvideRangingTransmitPower",
	ApplyMinDistThreshold:       "ApplyMinDistThreshold",
}

func (a Attribute) String() string {
	if name, ok := attributeNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Attribute(%d)", uint8(a))
}

func ParseAttribute(name string) (Attribute, error) {
	for attr, candidate := range attributeNames {
		if strings.EqualFold(candidate, name) {
			return attr, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedAttribute, name)
}

// PIB holds the global ranging parameters and optional per-peer overrides.
// Sessions work on a Snapshot so later changes never reach them.
type PIB struct {
	mu     sync.RWMutex
	global Values
	peers  map[models.PeerAddress]Values
}

func New() *PIB {
	return &PIB{
		global: Defaults(),
		peers:  make(map[models.PeerAddress]Values),
	}
}

func (p *PIB) Get(attr Attribute) (uint32, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.global.Get(attr)
}

func (p *PIB) GetFor(peer models.PeerAddress, attr Attribute) (uint32, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if values, ok := p.peers[peer]; ok {
		return values.Get(attr)
	}
	return p.global.Get(attr)
}

func (p *PIB) Set(attr Attribute, value uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.global
	if err := next.Set(attr, value); err != nil {
		return err
	}
	p.global = next
	return nil
}

// SetFor changes one attribute for a single peer. The override starts as a
// copy of the global values.
func (p *PIB) SetFor(peer models.PeerAddress, attr Attribute, value uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, ok := p.peers[peer]
	if !ok {
		next = p.global
	}
	if err := next.Set(attr, value); err != nil {
		return err
	}
	p.peers[peer] = next
	return nil
}

func (p *PIB) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.global = Defaults()
	p.peers = make(map[models.PeerAddress]Values)
}

func (p *PIB) ResetPeer(peer models.PeerAddress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.peers, peer)
}

func (p *PIB) Snapshot() Values {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.global
}

func (p *PIB) SnapshotFor(peer models.PeerAddress) Values {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if values, ok := p.peers[peer]; ok {
		return values
	}
	return p.global
}
