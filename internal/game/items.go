package game

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/config"
	"github.com/google/uuid"
)

// ItemKind separates items a player uses on themselves from items aimed
// at an opponent. Target validation hangs off this.
type ItemKind string

const (
	ItemSelf     ItemKind = "self"
	ItemOpponent ItemKind = "opponent"
)

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// The closed item catalog.
const (
	ItemExtraHint      = "extra_hint"
	ItemTimeBonus      = "time_bonus"
	ItemScrambleColors = "scramble_colors"
	ItemFreezeTime     = "freeze_time"
	ItemReduceAttempts = "reduce_attempts"
	ItemDoubleScore    = "double_score"
	ItemSkipMastermind = "skip_mastermind"
	ItemAddMastermind  = "add_mastermind"
)

// ItemSpec describes one item type: who it targets, how rare it is, how
// long its effect lasts (0 = instant), and its effect magnitude.
type ItemSpec struct {
	Type     string
	Kind     ItemKind
	Rarity   Rarity
	Duration time.Duration
	Value    int
}

var (
	itemRegistry = make(map[string]ItemSpec)
	itemRegMu    sync.RWMutex
)

func RegisterItem(spec ItemSpec) {
	itemRegMu.Lock()
	defer itemRegMu.Unlock()
	if _, exists := itemRegistry[spec.Type]; exists {
		panic(fmt.Sprintf("item already registered: %s", spec.Type))
	}
	itemRegistry[spec.Type] = spec
}

// ItemSpecByType retrieves an item spec from the registry.
func ItemSpecByType(itemType string) (ItemSpec, bool) {
	itemRegMu.RLock()
	defer itemRegMu.RUnlock()
	spec, ok := itemRegistry[itemType]
	return spec, ok
}

func itemsOfRarity(rarity Rarity) []ItemSpec {
	itemRegMu.RLock()
	defer itemRegMu.RUnlock()

	var specs []ItemSpec
	for _, spec := range itemRegistry {
		if spec.Rarity == rarity {
			specs = append(specs, spec)
		}
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Type < specs[j].Type })
	return specs
}

func init() {
	RegisterItem(ItemSpec{Type: ItemExtraHint, Kind: ItemSelf, Rarity: RarityCommon, Value: 1})
	RegisterItem(ItemSpec{Type: ItemTimeBonus, Kind: ItemSelf, Rarity: RarityCommon, Duration: 60 * time.Second, Value: 30})
	RegisterItem(ItemSpec{Type: ItemScrambleColors, Kind: ItemOpponent, Rarity: RarityRare, Duration: 45 * time.Second})
	RegisterItem(ItemSpec{Type: ItemFreezeTime, Kind: ItemOpponent, Rarity: RarityRare, Duration: 30 * time.Second})
	RegisterItem(ItemSpec{Type: ItemReduceAttempts, Kind: ItemOpponent, Rarity: RarityEpic, Value: 2})
	RegisterItem(ItemSpec{Type: ItemDoubleScore, Kind: ItemSelf, Rarity: RarityEpic, Duration: 120 * time.Second})
	RegisterItem(ItemSpec{Type: ItemSkipMastermind, Kind: ItemSelf, Rarity: RarityLegendary, Value: 200})
	RegisterItem(ItemSpec{Type: ItemAddMastermind, Kind: ItemOpponent, Rarity: RarityLegendary, Value: 1})
}

// Item is one collected instance in a player's inventory.
type Item struct {
	ID         uuid.UUID
	Type       string
	Rarity     Rarity
	Used       bool
	ObtainedAt time.Time
}

// rarityForRoll maps a uniform [0,1) roll onto a rarity tier through the
// cumulative weight table.
func rarityForRoll(w config.RarityWeights, roll float64) Rarity {
	switch {
	case roll < w.Common:
		return RarityCommon
	case roll < w.Common+w.Rare:
		return RarityRare
	case roll < w.Common+w.Rare+w.Epic:
		return RarityEpic
	default:
		return RarityLegendary
	}
}

// drawCount rewards efficient solves: finishing within half the attempt
// cap draws two items instead of one.
func drawCount(attemptsUsed, attemptCap int) int {
	if attemptCap > 0 && attemptsUsed*2 <= attemptCap {
		return 2
	}
	return 1
}

// drawItems rolls count random items from the rarity table.
func drawItems(w config.RarityWeights, count int, now time.Time) []Item {
	items := make([]Item, 0, count)
	for i := 0; i < count; i++ {
		rarity := rarityForRoll(w, rand.Float64())
		specs := itemsOfRarity(rarity)
		if len(specs) == 0 {
			continue
		}
		spec := specs[rand.Intn(len(specs))]
		items = append(items, Item{
			ID:         uuid.New(),
			Type:       spec.Type,
			Rarity:     spec.Rarity,
			ObtainedAt: now,
		})
	}
	return items
}
