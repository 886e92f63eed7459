package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sort"
)

// TeamDigest computes a canonical sha256 over a team state. Field order is
// fixed and map keys are sorted, so equal states always hash equal. Recorded
// per team in the round's audit trail and re-checked on replay.
func TeamDigest(st *TeamState) string {
	h := sha256.New()
	var tmp [8]byte

	writeF64(h, &tmp, st.Cash)
	writeF64(h, &tmp, st.TotalRevenue)
	writeF64(h, &tmp, st.TotalCosts)

	writeU64(h, &tmp, uint64(len(st.Products)))
	for _, p := range st.Products {
		h.Write([]byte(p.ID))
		h.Write([]byte(p.Segment))
		h.Write([]byte(p.Status))
		h.Write([]byte(p.PlatformID))
		writeF64(h, &tmp, p.Price)
		writeFloatMap(h, &tmp, p.Features)
	}

	writeStrings(h, &tmp, st.Technologies)
	writeU64(h, &tmp, uint64(len(st.ActiveResearch)))
	for _, r := range st.ActiveResearch {
		h.Write([]byte(r.TechID))
		h.Write([]byte(r.RiskLevel))
		writeU64(h, &tmp, uint64(r.RemainingRounds))
		writeU64(h, &tmp, uint64(r.Delays))
		writeF64(h, &tmp, r.BudgetedCost)
		writeF64(h, &tmp, r.SpentCost)
	}
	writeU64(h, &tmp, uint64(len(st.Completed)))
	for _, c := range st.Completed {
		h.Write([]byte(c.TechID))
		writeU64(h, &tmp, uint64(c.CompletedRound))
		writeU64(h, &tmp, uint64(c.Delays))
		writeF64(h, &tmp, c.TotalCost)
	}

	writeFloatMap(h, &tmp, st.QualityBonus)
	writeF64(h, &tmp, st.CostReduction)
	writeFloatMap(h, &tmp, st.SegmentBonus)
	writeStrings(h, &tmp, st.UnlockedFeatures)

	writeF64(h, &tmp, st.PlatformInvestment)
	writeU64(h, &tmp, uint64(len(st.Platforms)))
	for _, pl := range st.Platforms {
		h.Write([]byte(pl.ID))
		writeStrings(h, &tmp, pl.Segments)
		writeF64(h, &tmp, pl.CostReduction)
		writeU64(h, &tmp, uint64(pl.SpeedBonus))
	}

	writeStrings(h, &tmp, st.PatentsOwned)
	writeStrings(h, &tmp, st.Licenses)
	writeFloatMap(h, &tmp, st.MarketShare)

	writeU64(h, &tmp, uint64(len(st.Achievements)))
	for _, a := range st.Achievements {
		h.Write([]byte(a.ID))
		writeU64(h, &tmp, uint64(a.Round))
		writeF64(h, &tmp, a.Points)
	}

	writeU64(h, &tmp, uint64(st.IdleResearchRounds))

	return hex.EncodeToString(h.Sum(nil))
}

// RegistryDigest hashes the patent registry in sorted patent-id order.
func RegistryDigest(reg *PatentRegistry) string {
	h := sha256.New()
	var tmp [8]byte
	for _, id := range sortedPatentIDs(reg) {
		p := reg.Patents[id]
		h.Write([]byte(p.ID))
		h.Write([]byte(p.TechID))
		h.Write([]byte(p.Family))
		h.Write([]byte(p.Owner))
		h.Write([]byte(p.Status))
		writeU64(h, &tmp, uint64(p.FiledRound))
		writeU64(h, &tmp, uint64(p.ExpiryRound))
		writeF64(h, &tmp, p.LicenseFee)
		writeF64(h, &tmp, p.BlockingPower)
		writeF64(h, &tmp, p.ExclusiveBonus)
		writeU64(h, &tmp, uint64(len(p.Licensees)))
		for _, l := range p.Licensees {
			h.Write([]byte(l))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// MarketDigest hashes the market state in sorted segment order.
func MarketDigest(m *MarketState) string {
	h := sha256.New()
	var tmp [8]byte
	writeU64(h, &tmp, uint64(m.Round))
	writeFloatMap(h, &tmp, m.ExpectedPrice)
	writeFloatMap(h, &tmp, m.Volatility)
	return hex.EncodeToString(h.Sum(nil))
}

func writeU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func writeF64(h hash.Hash, tmp *[8]byte, v float64) {
	writeU64(h, tmp, math.Float64bits(v))
}

func writeStrings(h hash.Hash, tmp *[8]byte, list []string) {
	writeU64(h, tmp, uint64(len(list)))
	for _, s := range list {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
}

func writeFloatMap(h hash.Hash, tmp *[8]byte, m map[string]float64) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeU64(h, tmp, uint64(len(keys)))
	for _, k := range keys {
		h.Write([]byte(k))
		writeF64(h, tmp, m[k])
	}
}
