package review

import (
	"sort"
	"strings"
	"unicode"

	"github.com/theirongolddev/costfall/internal/model"
)

// PoolMode selects how unpooled units are grouped into new pools.
type PoolMode string

const (
	// ByServiceAndLE creates one "<Service> - <LE>" pool per service and LE.
	ByServiceAndLE PoolMode = "service-le"
	// ByLE creates one "<LE> Pool" per legal entity across services.
	ByLE PoolMode = "le"
)

// PoolSuggestion is a pool to create (or reuse, when Existing is set) and
// the units to assign to it.
type PoolSuggestion struct {
	Pool     model.CostPool
	Existing bool
	Units    []string
}

// SuggestPools groups every unpooled unit by mode. ByServiceAndLE skips
// units without a service. A pool with the same name, service and LE is
// reused instead of duplicated.
func SuggestPools(s *model.State, mode PoolMode) []PoolSuggestion {
	byKey := make(map[string]*PoolSuggestion)
	for _, unitID := range s.UnitIDs() {
		if s.PoolOf[unitID] != "" {
			continue
		}
		u := s.Units[unitID]
		svcID := s.ServiceOf[unitID]

		var pool model.CostPool
		switch mode {
		case ByLE:
			pool = model.CostPool{Name: u.LegalEntity + " Pool", SourceLE: u.LegalEntity}
		default:
			if svcID == "" {
				continue
			}
			name := svcID
			if svc, ok := s.Services[svcID]; ok {
				name = svc.Name
			}
			pool = model.CostPool{Name: name + " - " + u.LegalEntity, ServiceID: svcID, SourceLE: u.LegalEntity}
		}

		key := pool.Name + "\x00" + pool.ServiceID + "\x00" + pool.SourceLE
		sg, ok := byKey[key]
		if !ok {
			sg = &PoolSuggestion{Pool: pool}
			if existing, found := findPool(s, pool); found {
				sg.Pool = existing
				sg.Existing = true
			} else {
				sg.Pool.ID = "pool-" + slug(pool.Name)
			}
			byKey[key] = sg
		}
		sg.Units = append(sg.Units, unitID)
	}

	out := make([]PoolSuggestion, 0, len(byKey))
	for _, sg := range byKey {
		out = append(out, *sg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pool.Name < out[j].Pool.Name })
	return out
}

func findPool(s *model.State, want model.CostPool) (model.CostPool, bool) {
	for _, id := range s.PoolIDs() {
		p := s.Pools[id]
		if p.Name == want.Name && p.ServiceID == want.ServiceID && p.SourceLE == want.SourceLE {
			return p, true
		}
	}
	return model.CostPool{}, false
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
